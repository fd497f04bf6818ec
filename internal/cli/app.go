package cli

import (
	"fmt"
	"log/slog"
	"os"

	"repair-dashboard/internal/config"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/refresh"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/sheets"
	"repair-dashboard/internal/store"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Analytics *services.Analytics
	Importer  *sheets.Importer
	Loader    *refresh.Loader
}

// NewAppContext loads configuration and opens the import history. Logs go to
// stderr so command output stays pipeable.
func NewAppContext(verbose bool, importerOpts ...sheets.ImporterOption) (*AppContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !verbose {
		cfg.Logger.Level = "warn"
	}
	logger := observability.NewLoggerWithWriter(cfg.Logger, os.Stderr)

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import history: %w", err)
	}

	analytics := services.NewAnalyticsFromConfig(cfg.Summary, logger)
	opts := append([]sheets.ImporterOption{sheets.WithTimeout(cfg.Sheets.DownloadTimeout)}, importerOpts...)

	return &AppContext{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Analytics: analytics,
		Importer:  sheets.NewImporter(st, logger, opts...),
		Loader:    refresh.NewLoader(st, analytics, cfg.Storage.SeedCSV, logger),
	}, nil
}

// Close releases all resources held by the AppContext.
func (a *AppContext) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
