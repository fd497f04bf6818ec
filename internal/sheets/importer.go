package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/observability"
	"repair-dashboard/internal/store"
)

const (
	defaultExportBase = "https://docs.google.com"
	defaultTimeout    = 60 * time.Second
	maxParallelSync   = 3
)

// ErrNotAccessible is returned when the export host refuses the download,
// usually because the sheet is not shared publicly.
var ErrNotAccessible = errors.New("cannot access the spreadsheet, make sure the link has public view permission")

// Repository is the part of the import history the importer needs.
type Repository interface {
	FindBySheetKey(ctx context.Context, key string) (*models.ImportRecord, error)
	Save(ctx context.Context, rec *models.ImportRecord) error
	SetActive(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.ImportRecord, error)
}

type ImporterOption func(*Importer)

// WithExportBase points downloads at another host, e.g. a test server.
func WithExportBase(base string) ImporterOption {
	return func(i *Importer) {
		i.exportBase = strings.TrimRight(base, "/")
	}
}

func WithTimeout(d time.Duration) ImporterOption {
	return func(i *Importer) {
		if d > 0 {
			i.client.SetTimeout(d)
		}
	}
}

func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) {
		i.now = now
	}
}

type Importer struct {
	client     *resty.Client
	repo       Repository
	logger     *slog.Logger
	exportBase string
	now        func() time.Time
}

func NewImporter(repo Repository, logger *slog.Logger, opts ...ImporterOption) *Importer {
	client := resty.New()
	client.SetTimeout(defaultTimeout)

	i := &Importer{
		client:     client,
		repo:       repo,
		logger:     logger,
		exportBase: defaultExportBase,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import downloads a sheet, stores it in the history and makes it the active
// import. A sheet already in the history keeps its id, creation time and
// name (unless name is given).
func (i *Importer) Import(ctx context.Context, sheetURL, name string) (*models.ImportRecord, error) {
	ctx, span := observability.StartSpan(ctx, "sheets.import")
	defer span.Finish()

	rec, err := i.fetch(ctx, sheetURL, name)
	if err != nil {
		span.SetError(err)
		observability.ImportsTotal.WithLabelValues(string(models.ImportFailed)).Inc()
		return nil, err
	}
	span.SetTag("import_id", rec.ID)
	if err := i.repo.SetActive(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("set active import: %w", err)
	}
	return rec, nil
}

// RefreshAll re-downloads every sheet in the history without changing the
// active import. Failures are logged and the first one is returned.
func (i *Importer) RefreshAll(ctx context.Context) error {
	imports, err := i.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list imports: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSync)
	for _, imp := range imports {
		g.Go(func() error {
			rec, err := i.fetch(ctx, imp.URL, imp.SheetName)
			if err != nil {
				observability.ImportsTotal.WithLabelValues(string(models.ImportFailed)).Inc()
				i.logger.Warn("sheet refresh failed", "import_id", imp.ID, "error", err)
				return fmt.Errorf("refresh %s: %w", imp.ID, err)
			}
			i.logger.Info("sheet refreshed", "import_id", rec.ID, "rows", rec.RowCount)
			return nil
		})
	}
	return g.Wait()
}

func (i *Importer) fetch(ctx context.Context, sheetURL, name string) (*models.ImportRecord, error) {
	csvURL, err := CSVURL(sheetURL)
	if err != nil {
		return nil, err
	}
	if i.exportBase != defaultExportBase {
		csvURL = i.exportBase + strings.TrimPrefix(csvURL, defaultExportBase)
	}

	existing, err := i.repo.FindBySheetKey(ctx, SheetKey(sheetURL))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up import: %w", err)
	}

	resp, err := i.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		Get(csvURL)
	if err != nil {
		return nil, fmt.Errorf("download sheet: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w (status %d)", ErrNotAccessible, resp.StatusCode())
	}

	table, err := ParseCSV(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}

	now := i.now()
	rec := &models.ImportRecord{
		ID:          uuid.NewString(),
		URL:         sheetURL,
		CSVURL:      csvURL,
		SheetKey:    SheetKey(sheetURL),
		SheetName:   name,
		RowCount:    len(table.Records),
		ColumnCount: len(table.Columns),
		Data:        table.Records,
		Status:      models.ImportCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		if rec.SheetName == "" {
			rec.SheetName = existing.SheetName
		}
	}
	if rec.SheetName == "" {
		rec.SheetName = "Import " + now.Format("02/01/2006 15:04")
	}

	if err := i.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save import: %w", err)
	}

	observability.ImportsTotal.WithLabelValues(string(models.ImportCompleted)).Inc()
	if existing != nil {
		i.logger.Info("import updated",
			"import_id", rec.ID,
			"sheet", rec.SheetName,
			"previous_rows", existing.RowCount,
			"rows", rec.RowCount,
		)
	} else {
		i.logger.Info("import created", "import_id", rec.ID, "sheet", rec.SheetName, "rows", rec.RowCount)
	}
	return rec, nil
}
