package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/calendar"
	"hrsched/internal/domain/notifications"
	"hrsched/internal/domain/org"
	"hrsched/internal/domain/reports"
	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/config"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/platform/metrics"
	audithandler "hrsched/internal/transport/http/handlers/audit"
	authhandler "hrsched/internal/transport/http/handlers/auth"
	calendarhandler "hrsched/internal/transport/http/handlers/calendar"
	jobshandler "hrsched/internal/transport/http/handlers/jobs"
	notificationshandler "hrsched/internal/transport/http/handlers/notifications"
	orghandler "hrsched/internal/transport/http/handlers/org"
	reportshandler "hrsched/internal/transport/http/handlers/reports"
	requesthandler "hrsched/internal/transport/http/handlers/requests"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

// Services is everything the router dispatches to. Nil Idempotency disables
// replay protection and nil Metrics hides /metrics.
type Services struct {
	Auth          *auth.Service
	Org           *org.Service
	Requests      *requests.Service
	Calendar      *calendar.Service
	Reports       *reports.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Jobs          *jobs.Service
	JobRuns       *jobs.Store
	Tasks         map[string]jobs.RunFunc
	Idempotency   *middleware.IdempotencyStore
	RateStore     limiter.Store
	Metrics       *metrics.Collector
	Ready         func(context.Context) error
}

func NewRouter(cfg config.Config, svc Services) http.Handler {
	perms := auth.RolePermissionStore{}
	var auditor shared.Auditor
	if svc.Audit != nil {
		auditor = svc.Audit
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, uploadLimitBytes))
	if svc.Metrics != nil {
		router.Use(middleware.Metrics(svc.Metrics))
	}
	var sessions middleware.SessionChecker
	if svc.Auth != nil {
		sessions = svc.Auth
	}
	router.Use(middleware.Auth(cfg.JWTSecret, sessions))
	if svc.RateStore != nil {
		router.Use(middleware.RateLimit(svc.RateStore, cfg.RateLimitPerMinute, time.Minute))
		router.Use(middleware.SensitiveRateLimit(svc.RateStore, cfg.RateLimitPerMinute, time.Minute))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := svc.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if svc.Metrics != nil {
		router.Handle("/metrics", svc.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(svc.Auth, auditor).RegisterRoutes(r)
		orghandler.NewHandler(svc.Org, perms, auditor).RegisterRoutes(r)

		var keys middleware.IdempotencyKeys
		if svc.Idempotency != nil {
			keys = svc.Idempotency
		}
		var notifier requesthandler.Notifier
		if svc.Notifications != nil {
			notifier = svc.Notifications
		}
		requestHandler := requesthandler.NewHandler(svc.Requests, perms, notifier, auditor, keys)
		if svc.Jobs != nil {
			requestHandler.Jobs = svc.Jobs
		}
		requestHandler.RegisterRoutes(r)

		calendarhandler.NewHandler(svc.Calendar, perms).RegisterRoutes(r)
		reportshandler.NewHandler(svc.Reports, perms).RegisterRoutes(r)
		notificationshandler.NewHandler(svc.Notifications, perms).RegisterRoutes(r)
		audithandler.NewHandler(svc.Audit, perms).RegisterRoutes(r)
		jobshandler.NewHandler(svc.Jobs, svc.JobRuns, svc.Tasks, perms, auditor).RegisterRoutes(r)
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})

	return withCORS(cfg.CORSOrigins, gziphandler.GzipHandler(router))
}

func withCORS(origins []string, next http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.IdempotencyHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(next)
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

// ServeHTTP serves built frontend assets and falls back to index.html so
// client-side routes resolve.
func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}
	if err == nil || os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
