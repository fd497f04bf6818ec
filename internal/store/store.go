// Package store keeps the import history in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	// sqlite driver
	_ "modernc.org/sqlite"

	"repair-dashboard/internal/models"
)

// MaxImports is how many imports the history keeps; saving an eleventh
// drops the least recently saved one.
const MaxImports = 10

const activeImportKey = "active_import"

var ErrNotFound = errors.New("import not found")

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the settings/imports pair consistent without
	// cross-connection locking.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		csv_url TEXT NOT NULL DEFAULT '',
		sheet_key TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		column_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		data BLOB,
		saved_seq INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_imports_sheet_key ON imports(sheet_key);
	CREATE INDEX IF NOT EXISTS idx_imports_saved_seq ON imports(saved_seq);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Save inserts or replaces an import, moves it to the front of the history
// and trims the history to MaxImports.
func (s *Store) Save(ctx context.Context, rec *models.ImportRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, url, csv_url, sheet_key, sheet_name, row_count, column_count,
			status, error, data, saved_seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(saved_seq), 0) + 1 FROM imports), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			csv_url = excluded.csv_url,
			sheet_key = excluded.sheet_key,
			sheet_name = excluded.sheet_name,
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			status = excluded.status,
			error = excluded.error,
			data = excluded.data,
			saved_seq = excluded.saved_seq,
			updated_at = excluded.updated_at`,
		rec.ID, rec.URL, rec.CSVURL, rec.SheetKey, rec.SheetName, rec.RowCount, rec.ColumnCount,
		string(rec.Status), rec.Error, data,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert import: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM imports WHERE id NOT IN (
			SELECT id FROM imports ORDER BY saved_seq DESC LIMIT ?
		)`, MaxImports)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM settings WHERE key = ? AND value NOT IN (SELECT id FROM imports)`,
		activeImportKey)
	if err != nil {
		return fmt.Errorf("clear dangling active import: %w", err)
	}

	return tx.Commit()
}

const metadataColumns = `id, url, csv_url, sheet_key, sheet_name, row_count, column_count,
	status, error, created_at, updated_at`

// List returns the history, most recently saved first, without record data.
func (s *Store) List(ctx context.Context) ([]models.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+metadataColumns+` FROM imports ORDER BY saved_seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	imports := make([]models.ImportRecord, 0, MaxImports)
	for rows.Next() {
		rec, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, *rec)
	}
	return imports, rows.Err()
}

// Get returns an import including its records.
func (s *Store) Get(ctx context.Context, id string) (*models.ImportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+metadataColumns+`, data FROM imports WHERE id = ?`, id)

	var data []byte
	rec, err := scanMetadata(row, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode records of %s: %w", id, err)
		}
	}
	return rec, nil
}

// FindBySheetKey returns the metadata of the import for a spreadsheet tab.
func (s *Store) FindBySheetKey(ctx context.Context, key string) (*models.ImportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+metadataColumns+` FROM imports WHERE sheet_key = ? ORDER BY saved_seq DESC LIMIT 1`, key)
	rec, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Delete removes an import and clears the active import if it pointed at it.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete import: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ? AND value = ?`, activeImportKey, id); err != nil {
		return fmt.Errorf("clear active import: %w", err)
	}
	return tx.Commit()
}

func (s *Store) SetActive(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM imports WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, activeImportKey, id)
	return err
}

func (s *Store) ClearActive(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, activeImportKey)
	return err
}

// Active returns the active import with its records, or ErrNotFound.
func (s *Store) Active(ctx context.Context) (*models.ImportRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, activeImportKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// MergedRecords concatenates the records of several imports in the order of
// ids. Unknown ids contribute nothing.
func (s *Store) MergedRecords(ctx context.Context, ids []string) ([]models.RepairRecord, error) {
	parts := make([][]models.RepairRecord, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := s.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			parts[i] = rec.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	merged := make([]models.RepairRecord, 0, total)
	for _, p := range parts {
		merged = append(merged, p...)
	}
	return merged, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row scanner, extra ...any) (*models.ImportRecord, error) {
	var (
		rec                  models.ImportRecord
		status               string
		createdAt, updatedAt string
	)
	dest := []any{
		&rec.ID, &rec.URL, &rec.CSVURL, &rec.SheetKey, &rec.SheetName, &rec.RowCount, &rec.ColumnCount,
		&status, &rec.Error, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.Status = models.ImportStatus(status)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
