package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"repair-dashboard/internal/config"
	"repair-dashboard/internal/models"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/sheets"
)

// Source names where the current dataset came from.
const (
	SourceNone      = "none"
	SourceImport    = "import"
	SourceSelection = "selection"
	SourceFile      = "file"
)

type AnalyticsOption func(*Analytics)

func WithAggregator(agg *Aggregator) AnalyticsOption {
	return func(a *Analytics) {
		a.aggregator = agg
	}
}

func WithRenderer(r *Renderer) AnalyticsOption {
	return func(a *Analytics) {
		a.renderer = r
	}
}

func WithLogger(l *slog.Logger) AnalyticsOption {
	return func(a *Analytics) {
		a.logger = l
	}
}

// Analytics holds the dataset the dashboard is showing and answers every
// read the handlers make. Records are replaced wholesale, never mutated.
type Analytics struct {
	mu       sync.RWMutex
	records  []models.RepairRecord
	source   string
	sourceID string
	loadedAt time.Time

	aggregator *Aggregator
	renderer   *Renderer
	logger     *slog.Logger
}

func NewAnalytics(opts ...AnalyticsOption) *Analytics {
	a := &Analytics{
		records: []models.RepairRecord{},
		source:  SourceNone,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.aggregator == nil {
		a.aggregator = NewAggregator(WithAggregatorLogger(a.logger))
	}
	if a.renderer == nil {
		a.renderer = NewRenderer("en", DefaultRenderLimits())
	}
	return a
}

// NewAnalyticsFromConfig builds Analytics with the summary limits, locale and
// caching mode from configuration.
func NewAnalyticsFromConfig(cfg config.SummaryConfig, logger *slog.Logger) *Analytics {
	aggOpts := []AggregatorOption{
		WithLimits(Limits{
			RepairTypes:     cfg.TopRepairTypes,
			VehiclesByCost:  cfg.TopVehiclesByCost,
			VehiclesByCount: cfg.TopVehiclesByCount,
		}),
		WithAggregatorLogger(logger),
	}
	if cfg.ContentFingerprint {
		aggOpts = append(aggOpts, WithContentFingerprint())
	}
	return NewAnalytics(
		WithAggregator(NewAggregator(aggOpts...)),
		WithRenderer(NewRenderer(cfg.Locale, DefaultRenderLimits())),
		WithLogger(logger),
	)
}

// SetData swaps in a new dataset. source is one of the Source constants and
// id the import id or file path it came from.
func (a *Analytics) SetData(records []models.RepairRecord, source, id string) {
	if records == nil {
		records = []models.RepairRecord{}
	}

	a.mu.Lock()
	a.records = records
	a.source = source
	a.sourceID = id
	a.loadedAt = time.Now()
	a.mu.Unlock()

	// A reload may keep the length and boundary ids of the old data.
	a.aggregator.ClearCache()

	observability.DatasetRecords.Set(float64(len(records)))
	a.logger.Info("dataset replaced", "source", source, "id", id, "records", len(records))
}

// LoadFromCSV reads a local CSV export and makes it the current dataset.
func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	_, span := observability.StartSpan(ctx, "analytics.load_csv")
	defer span.Finish()
	span.SetTag("filename", filename)

	start := time.Now()
	file, err := os.Open(filename)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	table, err := sheets.ParseCSV(file)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("process csv: %w", err)
	}

	a.SetData(table.Records, SourceFile, filename)
	a.logger.Info("csv processing complete",
		"filename", filename,
		"records", len(table.Records),
		"columns", len(table.Columns),
		"duration", time.Since(start))
	return nil
}

// Records returns the current dataset. Callers must not modify it.
func (a *Analytics) Records() []models.RepairRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records
}

// Source reports where the current dataset came from.
func (a *Analytics) Source() (source, id string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.source, a.sourceID
}

// Filtered returns the records of the dataset that match params.
func (a *Analytics) Filtered(params models.FilterParams) []models.RepairRecord {
	return Filter(a.Records(), params)
}

func (a *Analytics) Statistics(params models.FilterParams) *models.Statistics {
	return a.aggregator.Compute(a.Filtered(params))
}

// Summary renders the statistics of the filtered dataset as prompt text.
func (a *Analytics) Summary(params models.FilterParams) string {
	return a.Summarize(a.Filtered(params))
}

// Summarize renders the statistics of an arbitrary record set.
func (a *Analytics) Summarize(records []models.RepairRecord) string {
	return a.renderer.Render(a.aggregator.Compute(records))
}

func (a *Analytics) Overview(params models.FilterParams) models.DashboardOverview {
	return Overview(a.Filtered(params))
}

func (a *Analytics) Charts(params models.FilterParams) models.ChartData {
	return Charts(a.Filtered(params))
}

// FilterOptions lists the values the filter dropdowns offer for the whole
// dataset.
func (a *Analytics) FilterOptions() models.FilterOptions {
	return FilterOptions(a.Records())
}

func (a *Analytics) Renderer() *Renderer {
	return a.renderer
}

func (a *Analytics) Aggregator() *Aggregator {
	return a.aggregator
}

func (a *Analytics) ClearCache() {
	a.aggregator.ClearCache()
}

// Stats reports the dataset state for monitoring.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"record_count": len(a.records),
		"source":       a.source,
		"source_id":    a.sourceID,
		"loaded_at":    a.loadedAt,
		"computations": a.aggregator.Computations(),
	}
}
