package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finreport/internal/api"
	"finreport/internal/core"
	"finreport/internal/storage"
)

// ErrNoUser is returned when the session does not identify a user, so the
// archive cannot be attributed to anyone.
var ErrNoUser = errors.New("session has no user id")

// Publisher announces archived report versions to the export worker.
type Publisher interface {
	PublishReportSync(ctx context.Context, id, version int64) error
}

// Reporter builds the month report to archive.
type Reporter interface {
	MonthlyReport(ctx context.Context, s *api.Session, year, month int) (core.MonthReport, error)
}

// ArchiveService snapshots monthly reports into the archive store and queues
// them for export.
type ArchiveService struct {
	reports   Reporter
	store     storage.ArchiveStore
	publisher Publisher
}

// NewArchiveService wires the service. publisher may be nil when no broker is
// configured; the export worker then finds the archive on its pending sweep.
func NewArchiveService(reports Reporter, store storage.ArchiveStore, publisher Publisher) *ArchiveService {
	return &ArchiveService{
		reports:   reports,
		store:     store,
		publisher: publisher,
	}
}

// Archive builds the report for the month, stores it as a new version and
// publishes a sync message.
func (a *ArchiveService) Archive(ctx context.Context, s *api.Session, year, month int) (core.ReportArchive, error) {
	userID := s.UserID()
	if userID == 0 {
		return core.ReportArchive{}, ErrNoUser
	}

	rep, err := a.reports.MonthlyReport(ctx, s, year, month)
	if err != nil {
		return core.ReportArchive{}, err
	}

	saved, err := a.store.SaveArchive(ctx, rep.Archive(userID))
	if err != nil {
		return core.ReportArchive{}, fmt.Errorf("save archive: %w", err)
	}

	if err := a.publishSyncMessage(ctx, saved.ID, saved.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish report sync message",
			"archive_id", saved.ID, "version", saved.Version, "error", err)
	}
	return saved, nil
}

func (a *ArchiveService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if a.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping report sync message")
		return nil
	}
	return a.publisher.PublishReportSync(ctx, id, version)
}

// Get returns one of the user's archives. Archives of other users are
// reported as not found.
func (a *ArchiveService) Get(ctx context.Context, s *api.Session, id int64) (core.ReportArchive, error) {
	userID := s.UserID()
	if userID == 0 {
		return core.ReportArchive{}, ErrNoUser
	}
	arch, err := a.store.GetArchive(ctx, id)
	if err != nil {
		return core.ReportArchive{}, err
	}
	if arch.UserID != userID {
		return core.ReportArchive{}, storage.ErrNotFound
	}
	return arch, nil
}

func (a *ArchiveService) List(ctx context.Context, s *api.Session) ([]core.ReportArchive, error) {
	userID := s.UserID()
	if userID == 0 {
		return nil, ErrNoUser
	}
	return a.store.ListArchives(ctx, userID)
}

func (a *ArchiveService) Delete(ctx context.Context, s *api.Session, id int64) error {
	if _, err := a.Get(ctx, s, id); err != nil {
		return err
	}
	return a.store.DeleteArchive(ctx, id)
}

// Close closes the store and the publisher when it holds a connection.
func (a *ArchiveService) Close() error {
	var errs []error

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := a.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close archive service: %v", errs)
	}
	return nil
}
