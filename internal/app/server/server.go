package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/calendar"
	"hrsched/internal/domain/notifications"
	"hrsched/internal/domain/org"
	"hrsched/internal/domain/reports"
	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/cache"
	"hrsched/internal/platform/config"
	"hrsched/internal/platform/db"
	"hrsched/internal/platform/email"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/platform/metrics"
	"hrsched/internal/platform/telegram"
	"hrsched/internal/transport/http/middleware"
)

const (
	uploadLimitBytes = 10 << 20
	shutdownTimeout  = 15 * time.Second
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service
	cache  cache.Cache
}

// New connects the database, optionally migrates and seeds it, and wires
// every service behind the HTTP router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	var redisClient *redis.Client
	var reportCache cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		reportCache = cache.FromClient(redisClient)
	}
	rateStore, err := middleware.NewRateStore(redisClient)
	if err != nil {
		_ = reportCache.Close()
		pool.Close()
		return nil, fmt.Errorf("rate limit store: %w", err)
	}
	chat, err := telegram.New(cfg)
	if err != nil {
		_ = reportCache.Close()
		pool.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	orgService := org.NewService(org.NewStore(pool))
	requestService := requests.NewService(requests.NewStore(pool), requests.Policy{
		MinNoticeDays:            cfg.RequestMinNoticeDays,
		DailyApprovalLimit:       cfg.DailyApprovalLimit,
		MorningShiftMinDeparture: cfg.MorningShiftMinDeparture,
	})
	reportService := reports.NewService(requestService, reportCache, cfg.SummaryCacheTTL)
	requestService.Cache = reportService
	if collector != nil {
		requestService.Metrics = collector
	}

	notifyService := notifications.New(notifications.NewStore(pool), email.New(cfg))
	notifyService.Chat = chat
	notifyService.DefaultFrom = cfg.EmailFrom

	digest := pendingDigestJob(requestService, notifyService)
	jobStore := jobs.NewStore(pool)
	var jobMetrics jobs.Recorder
	if collector != nil {
		jobMetrics = collector
	}
	jobService := jobs.New(jobStore, jobMetrics, jobs.Schedule{
		Type:     jobs.JobPendingDigest,
		Interval: cfg.PendingDigestInterval,
		Run:      digest,
	})

	router := NewRouter(cfg, Services{
		Auth:          auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL),
		Org:           orgService,
		Requests:      requestService,
		Calendar:      calendar.NewService(requestService, orgService),
		Reports:       reportService,
		Notifications: notifyService,
		Audit:         audit.New(pool),
		Jobs:          jobService,
		JobRuns:       jobStore,
		Tasks:         map[string]jobs.RunFunc{jobs.JobPendingDigest: digest},
		Idempotency:   middleware.NewIdempotencyStore(pool),
		RateStore:     rateStore,
		Metrics:       collector,
		Ready:         pool.Ping,
	})

	return &App{
		Config: cfg,
		DB:     pool,
		Router: router,
		Jobs:   jobService,
		cache:  reportCache,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// background jobs.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Jobs.Start(ctx)
	defer a.Jobs.Wait()

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("cache close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
