package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/auth"
	"repair-dashboard/internal/config"
	"repair-dashboard/internal/middleware"
	"repair-dashboard/internal/refresh"
	"repair-dashboard/internal/server"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/sheets"
	"repair-dashboard/internal/store"
)

const (
	loadTimeout      = 30 * time.Second
	sessionPurgeSpec = "@every 10m"
	limiterSweepSpec = "@every 1m"
	sheetSyncJob     = "sheet-sync"
	sessionPurgeJob  = "session-purge"
	limiterSweepJob  = "rate-limit-sweep"
)

// app is everything the web process runs, wired from configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	deps      server.Dependencies
	limiter   *middleware.RateLimiter
	scheduler *refresh.Scheduler
	watcher   *refresh.Watcher
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	analytics := services.NewAnalyticsFromConfig(cfg.Summary, logger)

	importer := sheets.NewImporter(st, logger, sheets.WithTimeout(cfg.Sheets.DownloadTimeout))
	loader := refresh.NewLoader(st, analytics, cfg.Storage.SeedCSV, logger)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	start := time.Now()
	if err := loader.LoadActive(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", "duration", time.Since(start), "records", len(analytics.Records()))

	chats := newChatSessions(cfg.Assistant, analytics, logger)
	authMgr := auth.NewManager(cfg.Auth, auth.WithLogger(logger))
	authMgr.OnLogout(chats.Drop)

	scheduler := refresh.NewScheduler(logger)
	if err := scheduler.Add(sheetSyncJob, cfg.Sheets.SyncSchedule, func(ctx context.Context) error {
		if err := importer.RefreshAll(ctx); err != nil {
			return err
		}
		return loader.ReloadIfShowing(ctx, services.SourceImport)
	}); err != nil {
		st.Close()
		return nil, err
	}
	if err := scheduler.Add(sessionPurgeJob, sessionPurgeSpec, func(context.Context) error {
		authMgr.PurgeExpired()
		return nil
	}); err != nil {
		st.Close()
		return nil, err
	}

	limiter := middleware.NewRateLimiter(cfg.Security)
	if err := scheduler.Add(limiterSweepJob, limiterSweepSpec, func(context.Context) error {
		if n := limiter.Sweep(); n > 0 {
			logger.Debug("dropped idle rate limiters", "count", n)
		}
		return nil
	}); err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		limiter:   limiter,
		scheduler: scheduler,
		deps: server.Dependencies{
			Analytics: analytics,
			Store:     st,
			Importer:  importer,
			Loader:    loader,
			Chats:     chats,
			Auth:      authMgr,
			Logger:    logger,
		},
	}
	if cfg.Storage.SeedCSV != "" && cfg.Storage.WatchSeed {
		a.watcher = refresh.NewWatcher(cfg.Storage.SeedCSV, func(ctx context.Context) error {
			return loader.ReloadIfShowing(ctx, services.SourceFile, services.SourceNone)
		}, logger)
	}
	return a, nil
}

// newChatSessions gives every login its own conversation. All of them share
// one API client and one request budget.
func newChatSessions(cfg config.AssistantConfig, summarizer assistant.Summarizer, logger *slog.Logger) *assistant.Sessions {
	client := assistant.NewOpenAIClient(cfg)
	opts := []assistant.Option{assistant.WithCompleter(client), assistant.WithLogger(logger)}
	if cfg.RequestsPerMinute > 0 {
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
		opts = append(opts, assistant.WithLimiter(limiter))
	}
	return assistant.NewSessions(func() *assistant.Assistant {
		return assistant.New(cfg, summarizer, opts...)
	})
}

func (a *app) handler() http.Handler {
	srv := server.NewServer(a.deps)

	middlewareChain := middleware.Chain(
		middleware.Recovery(a.logger),
		middleware.RequestID(),
		middleware.Logger(a.logger),
		middleware.Metrics(),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(a.cfg.Security),
		middleware.TrustedProxy(a.cfg.Security),
		middleware.RateLimit(a.limiter, a.logger),
	)
	return middlewareChain(srv)
}

// start launches the background jobs. They stop when ctx is done.
func (a *app) start(ctx context.Context) error {
	a.scheduler.Start(ctx)
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// registerShutdownHooks closes the store last: hooks run newest first.
func (a *app) registerShutdownHooks(gs *server.GracefulServer) {
	gs.RegisterShutdownHook(func(context.Context) error {
		a.logger.Info("closing store")
		return a.store.Close()
	})
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		a.logger.Info("stopping scheduled jobs")
		return a.scheduler.Stop(ctx)
	})
	if a.watcher != nil {
		gs.RegisterShutdownHook(func(context.Context) error {
			return a.watcher.Close()
		})
	}
}
