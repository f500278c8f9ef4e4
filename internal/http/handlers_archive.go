package http

import (
	"net/http"

	applog "finreport/internal/log"
)

type archiveRequest struct {
	Year  int `json:"year" validate:"required,min=1900,max=9999"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// handleCreateArchive snapshots the month report and queues it for export.
func (s *Server) handleCreateArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	arch, err := s.deps.Archives.Archive(r.Context(), sessionFrom(r.Context()), req.Year, req.Month)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogArchiveSaved(r.Context(), arch.ID, arch.UserID, arch.Version, arch.Year, arch.Month)

	status := http.StatusCreated
	if arch.Version > 1 {
		status = http.StatusOK
	}
	NewJSONResponse().Status(status).JSON(newArchiveView(arch)).Write(w)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Archives.List(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]archiveView, len(list))
	for i, a := range list {
		out[i] = newArchiveView(a)
	}
	NewJSONResponse().JSON(out).Write(w)
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	arch, err := s.deps.Archives.Get(r.Context(), sessionFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(newArchiveView(arch)).Write(w)
}

func (s *Server) handleDeleteArchive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Archives.Delete(r.Context(), sessionFrom(r.Context()), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Report archive deleted", applog.FieldArchiveID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
