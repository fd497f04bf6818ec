// Package refresh keeps the in-memory dataset in step with its sources: the
// import history, a local seed CSV and scheduled sheet syncs.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"repair-dashboard/internal/services"
	"repair-dashboard/internal/store"
)

// Loader decides which records the dashboard shows. An active import wins;
// otherwise the seed CSV is used when configured.
type Loader struct {
	store     *store.Store
	analytics *services.Analytics
	seedCSV   string
	logger    *slog.Logger
}

func NewLoader(st *store.Store, analytics *services.Analytics, seedCSV string, logger *slog.Logger) *Loader {
	return &Loader{
		store:     st,
		analytics: analytics,
		seedCSV:   seedCSV,
		logger:    logger,
	}
}

func (l *Loader) SeedCSV() string {
	return l.seedCSV
}

// LoadActive makes the active import the dataset. Without one it falls back
// to the seed CSV, and without that to an empty dataset.
func (l *Loader) LoadActive(ctx context.Context) error {
	rec, err := l.store.Active(ctx)
	switch {
	case err == nil:
		l.analytics.SetData(rec.Data, services.SourceImport, rec.ID)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load active import: %w", err)
	}

	if l.seedCSV != "" {
		return l.analytics.LoadFromCSV(ctx, l.seedCSV)
	}
	l.analytics.SetData(nil, services.SourceNone, "")
	return nil
}

// Select merges several imports into the dataset, in the given order. The
// active import is left unchanged.
func (l *Loader) Select(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, errors.New("no imports selected")
	}
	records, err := l.store.MergedRecords(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("merge imports: %w", err)
	}
	l.analytics.SetData(records, services.SourceSelection, strings.Join(ids, ","))
	return len(records), nil
}

// ReloadIfShowing reloads the dataset when it currently comes from one of
// the given sources.
func (l *Loader) ReloadIfShowing(ctx context.Context, sources ...string) error {
	current, _ := l.analytics.Source()
	for _, s := range sources {
		if s == current {
			l.logger.Debug("reloading dataset", "source", current)
			return l.LoadActive(ctx)
		}
	}
	return nil
}

// Forget reloads the dataset when it was built from import id, which has
// just been removed from the history.
func (l *Loader) Forget(ctx context.Context, id string) error {
	source, current := l.analytics.Source()
	switch source {
	case services.SourceImport:
		if current != id {
			return nil
		}
	case services.SourceSelection:
		if !slices.Contains(strings.Split(current, ","), id) {
			return nil
		}
	default:
		return nil
	}
	return l.LoadActive(ctx)
}
