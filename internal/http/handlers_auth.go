package http

import (
	"net/http"
	"strconv"
	"strings"

	"finreport/internal/api"
	"finreport/internal/avatar"
	applog "finreport/internal/log"
)

// handleLogin proxies the login to the backend and returns the token with
// the user it belongs to. The server keeps no session state.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "login", err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	sess := api.NewSession("")
	res, err := s.deps.Auth.Login(r.Context(), sess, req)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	out := loginView{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		User:        newUserView(sess.User()),
	}
	if exp := sess.ExpiresAt(); !exp.IsZero() {
		out.ExpiresAt = &exp
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged in", applog.FieldUserID, sess.UserID())
	NewJSONResponse().JSON(out).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = sanitizeInput(req.Username)
	req.FullName = sanitizeInput(req.FullName)

	if err := s.deps.Auth.Register(r.Context(), req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered", "username", req.Username)
	NewJSONResponse().Status(http.StatusCreated).JSON(map[string]string{"message": "registered"}).Write(w)
}

// handleForgotPassword always answers 202 once the backend accepted the
// request, whether or not the address has an account.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := s.deps.Auth.ForgotPassword(r.Context(), req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).JSON(map[string]string{"message": "reset link sent"}).Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.deps.Auth.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout invalidates the token on the backend and drops the user's
// cached reports.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	uid := sess.UserID()
	if s.deps.Reports != nil {
		s.deps.Reports.Invalidate(r.Context(), sess)
	}
	if err := s.deps.Auth.Logout(r.Context(), sess); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged out", applog.FieldUserID, uid)
	w.WriteHeader(http.StatusNoContent)
}

// avatarParams reads name and userId, falling back to the user of a valid
// bearer token when userId is absent.
func (s *Server) avatarParams(r *http.Request) (int64, string, error) {
	q := r.URL.Query()
	name := sanitizeInput(q.Get("name"))

	var userID int64
	if v := strings.TrimSpace(q.Get("userId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return 0, "", &paramError{name: "userId", value: v}
		}
		userID = id
	} else if token := bearerToken(r); token != "" {
		if sess, err := api.VerifySession(token, s.deps.TokenSecret, s.now()); err == nil {
			userID = sess.UserID()
		}
	}
	return userID, name, nil
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	userID, name, err := s.avatarParams(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	uri := avatar.DataURI(name, 0)
	if userID != 0 && s.deps.Avatars != nil {
		uri = s.deps.Avatars.Get(userID, name)
	}
	NewJSONResponse().JSON(avatarView{Initials: avatar.Initials(name), DataURI: uri}).Write(w)
}

// handleRegenerateAvatar picks a new colour for the user's avatar.
func (s *Server) handleRegenerateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, name, err := s.avatarParams(r)
	if err != nil {
		writeError(w, r, applog.OpRefresh, err)
		return
	}
	if userID == 0 || s.deps.Avatars == nil {
		BadRequestError("userId is required").Write(w)
		return
	}
	uri := s.deps.Avatars.Regenerate(userID, name)
	NewJSONResponse().JSON(avatarView{Initials: avatar.Initials(name), DataURI: uri}).Write(w)
}
