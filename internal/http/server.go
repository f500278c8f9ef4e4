package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"finreport/internal/api"
	"finreport/internal/core"
	applog "finreport/internal/log"
	"finreport/internal/middleware/ratelimit"
	"finreport/internal/middleware/security"
	"finreport/internal/middleware/trace"
	"finreport/internal/services"
)

// Authenticator proxies the account flows of the backend.
type Authenticator interface {
	Login(ctx context.Context, s *api.Session, req api.LoginRequest) (api.LoginResult, error)
	Logout(ctx context.Context, s *api.Session) error
	Register(ctx context.Context, req api.RegisterRequest) error
	ForgotPassword(ctx context.Context, req api.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req api.ResetPasswordRequest) error
}

// Expenses manages the calling user's transactions.
type Expenses interface {
	List(ctx context.Context, s *api.Session, year, month int) ([]core.Transaction, error)
	Create(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, s *api.Session, id int64) error
	CategoryTotal(ctx context.Context, s *api.Session, categoryName string) (decimal.Decimal, error)
}

// Reports builds report views for the calling user.
type Reports interface {
	MonthlyReport(ctx context.Context, s *api.Session, year, month int) (core.MonthReport, error)
	YearSeries(ctx context.Context, s *api.Session, year int) (services.SeriesReport, error)
	Budgets(ctx context.Context, s *api.Session, year, month int) ([]core.BudgetLimit, error)
	UpdateBudget(ctx context.Context, s *api.Session, categoryName string, limit decimal.Decimal) error
	Invalidate(ctx context.Context, s *api.Session)
}

// Archives manages the calling user's archived reports.
type Archives interface {
	Archive(ctx context.Context, s *api.Session, year, month int) (core.ReportArchive, error)
	Get(ctx context.Context, s *api.Session, id int64) (core.ReportArchive, error)
	List(ctx context.Context, s *api.Session) ([]core.ReportArchive, error)
	Delete(ctx context.Context, s *api.Session, id int64) error
}

// Avatars returns cached avatar data URIs.
type Avatars interface {
	Get(userID int64, name string) string
	Regenerate(userID int64, name string) string
}

// Deps are the services the server routes to. Ready, when set, backs /readyz.
type Deps struct {
	Auth     Authenticator
	Reports  Reports
	Archives Archives
	Expenses Expenses
	Avatars  Avatars
	Ready    func(context.Context) error
	Logger   *applog.Logger
	// TokenSecret is the HMAC key bearer tokens must be signed with. It is
	// shared with the finance backend.
	TokenSecret []byte
	// RequestsPerMinute limits mutating requests per client IP.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	deps Deps

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.FromContext(context.Background())
	}

	rlCfg := ratelimit.DefaultConfig()
	if deps.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = deps.RequestsPerMinute
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		deps:     deps,
		limiter:  ratelimit.NewLimiter(rlCfg),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		s.tracer.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detector.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
			TooManyRequestsError().Write(w)
		}),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError("").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/forgot-password", s.handleForgotPassword)
		r.Post("/auth/reset-password", s.handleResetPassword)
		r.Get("/avatar", s.handleAvatar)
		r.Post("/avatar/regenerate", s.handleRegenerateAvatar)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/logout", s.handleLogout)

			r.Get("/expenses", s.handleListExpenses)
			r.Post("/expenses", s.handleCreateExpense)
			r.Get("/expenses/total", s.handleCategoryTotal)
			r.Put("/expenses/{id}", s.handleUpdateExpense)
			r.Delete("/expenses/{id}", s.handleDeleteExpense)

			r.Get("/reports/monthly", s.handleMonthlyReport)
			r.Get("/reports/monthly.xlsx", s.handleMonthlyReportXLSX)
			r.Get("/reports/series", s.handleSeries)

			r.Get("/budgets", s.handleBudgets)
			r.Put("/budgets", s.handleUpdateBudget)

			r.Post("/reports/archive", s.handleCreateArchive)
			r.Get("/reports/archive", s.handleListArchives)
			r.Get("/reports/archive/{id}", s.handleGetArchive)
			r.Delete("/reports/archive/{id}", s.handleDeleteArchive)
		})
	})
	return r
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type sessionKey struct{}

// requireSession turns the bearer token into a request-scoped session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			UnauthorizedError("missing bearer token").Write(w)
			return
		}
		sess, err := api.VerifySession(token, s.deps.TokenSecret, s.now())
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Bearer token rejected", applog.FieldError, err)
			UnauthorizedError(msg).Write(w)
			return
		}

		ctx := r.Context()
		if uid := sess.UserID(); uid != 0 {
			ctx = context.WithValue(ctx, applog.LoggerContextKey,
				applog.FromContext(ctx).With(applog.FieldUserID, uid))
		}
		ctx = context.WithValue(ctx, sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *api.Session {
	if s, ok := ctx.Value(sessionKey{}).(*api.Session); ok {
		return s
	}
	return api.NewSession("")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "component", "http", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ready")
}
