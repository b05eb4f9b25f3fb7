package api

import (
	"net/http"

	"github.com/userapi/backend/internal/auth"
	apperrors "github.com/userapi/backend/internal/errors"
	"github.com/userapi/backend/internal/health"
	"github.com/userapi/backend/internal/logger"
	"github.com/userapi/backend/internal/metrics"
	"github.com/userapi/backend/internal/middleware"
	"github.com/userapi/backend/internal/users"
)

// RouterConfig wires the HTTP surface. Health and Metrics are optional.
type RouterConfig struct {
	Users         *users.Service
	Sessions      *auth.SessionManager
	Guard         *auth.Guard
	Health        *health.Handler
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	CORSOrigins   []string
	SecureCookies bool
}

type Router struct {
	mux      *http.ServeMux
	handler  http.Handler
	handlers *Handlers
	guard    *auth.Guard
	health   *health.Handler
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	r := &Router{
		mux:      http.NewServeMux(),
		handlers: NewHandlers(cfg.Users, cfg.Sessions, cfg.SecureCookies),
		guard:    cfg.Guard,
		health:   cfg.Health,
		metrics:  cfg.Metrics,
		log:      log.WithComponent("http"),
	}
	r.setupRoutes()

	var inner http.Handler = r.mux
	if r.metrics != nil {
		inner = r.metrics.Middleware(inner)
	}
	r.handler = middleware.Chain(inner,
		middleware.RequestID,
		middleware.Logging(r.log),
		middleware.Recoverer(r.log),
		middleware.CORS(cfg.CORSOrigins),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	h := r.handlers

	if r.health != nil {
		r.mux.HandleFunc("GET /api/health", r.health.HealthHandler)
		r.mux.HandleFunc("GET /health/live", r.health.LivenessHandler)
		r.mux.HandleFunc("GET /health/ready", r.health.ReadinessHandler)
	}
	if r.metrics != nil {
		r.mux.Handle("GET /metrics", r.metrics.Handler())
	}

	// Public
	r.mux.Handle("POST /api/users/login", r.handle(h.Login))
	r.mux.Handle("POST /api/users/refresh", r.handle(h.Refresh))

	// Authenticated
	r.mux.Handle("GET /api/users/me", r.withAuth(h.Me))
	r.mux.Handle("POST /api/users", r.withAuth(h.CreateUser))
	r.mux.Handle("POST /api/users/logout", r.withAuth(h.Logout))
	r.mux.Handle("POST /api/users/logout-all", r.withAuth(h.LogoutAll))

	// Admin
	r.mux.Handle("GET /api/users", r.withAdmin(h.ListUsers))
	r.mux.Handle("GET /api/users/{id}", r.withAdmin(h.GetUser))
	r.mux.Handle("PUT /api/users/{id}", r.withAdmin(h.UpdateUser))
	r.mux.Handle("DELETE /api/users/{id}", r.withAdmin(h.DeleteUser))

	r.mux.HandleFunc("/", notFound)
}

func (r *Router) handle(h apperrors.Handler) http.Handler {
	return apperrors.HandleFunc(func(w http.ResponseWriter, req *http.Request) error {
		if err := h(w, req); err != nil {
			return toAppError(err)
		}
		return nil
	}, errorLogger(r.log))
}

func (r *Router) withAuth(h apperrors.Handler) http.Handler {
	return r.guard.Authenticate(r.handle(h))
}

func (r *Router) withAdmin(h apperrors.Handler) http.Handler {
	return r.guard.Authenticate(r.guard.RequireAdmin(r.handle(h)))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteError(w, apperrors.GetRequestID(r.Context()),
		apperrors.New(apperrors.CodeNotFound, "Route not found", apperrors.CategoryClient, http.StatusNotFound))
}
