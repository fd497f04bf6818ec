package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"repair-dashboard/internal/models"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/store"
)

const seedCSV = "repair_no,ngay_gio_yeu_cau,phuong_tien_can_sua_chua,tong_chi_phi_sau_vat\n" +
	"R1,01/02/2024,51B-001,\"1,000,000\"\n" +
	"R2,05/02/2024,51B-002,\"2,000,000\"\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "repairs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func saveImport(t *testing.T, st *store.Store, id string, rows int) {
	t.Helper()
	costs := make([]string, rows)
	for i := range costs {
		costs[i] = "1,000,000"
	}
	saveImportCosts(t, st, id, costs...)
}

// saveImportCosts stores import id with one record per cost. Repair numbers
// depend only on position, so saving again keeps the boundary ids.
func saveImportCosts(t *testing.T, st *store.Store, id string, costs ...string) {
	t.Helper()
	rows := len(costs)
	data := make([]models.RepairRecord, rows)
	for i := range data {
		data[i] = models.RepairRecord{RepairNo: fmt.Sprintf("%s-%d", id, i), CostAfterTax: models.Cell(costs[i])}
	}
	now := time.Now()
	err := st.Save(context.Background(), &models.ImportRecord{
		ID:        id,
		URL:       "https://docs.google.com/spreadsheets/d/" + id + "/edit",
		SheetKey:  id + "_0",
		SheetName: id,
		RowCount:  rows,
		Data:      data,
		Status:    models.ImportCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_LoadActive(t *testing.T) {
	ctx := context.Background()

	t.Run("active import wins", func(t *testing.T) {
		st := newTestStore(t)
		saveImport(t, st, "a", 3)
		if err := st.SetActive(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		a := services.NewAnalytics(services.WithLogger(testLogger()))
		l := NewLoader(st, a, writeSeed(t, seedCSV), testLogger())

		if err := l.LoadActive(ctx); err != nil {
			t.Fatalf("LoadActive() error: %v", err)
		}
		if n := len(a.Records()); n != 3 {
			t.Errorf("records = %d, want 3", n)
		}
		if src, id := a.Source(); src != services.SourceImport || id != "a" {
			t.Errorf("source = %s/%s, want import/a", src, id)
		}
	})

	t.Run("seed csv without active import", func(t *testing.T) {
		st := newTestStore(t)
		a := services.NewAnalytics(services.WithLogger(testLogger()))
		l := NewLoader(st, a, writeSeed(t, seedCSV), testLogger())

		if err := l.LoadActive(ctx); err != nil {
			t.Fatalf("LoadActive() error: %v", err)
		}
		if n := len(a.Records()); n != 2 {
			t.Errorf("records = %d, want 2", n)
		}
		if src, _ := a.Source(); src != services.SourceFile {
			t.Errorf("source = %s, want file", src)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		st := newTestStore(t)
		a := services.NewAnalytics(services.WithLogger(testLogger()))
		a.SetData([]models.RepairRecord{{RepairNo: "stale"}}, services.SourceImport, "gone")
		l := NewLoader(st, a, "", testLogger())

		if err := l.LoadActive(ctx); err != nil {
			t.Fatalf("LoadActive() error: %v", err)
		}
		if n := len(a.Records()); n != 0 {
			t.Errorf("records = %d, want 0", n)
		}
		if src, _ := a.Source(); src != services.SourceNone {
			t.Errorf("source = %s, want none", src)
		}
	})

	t.Run("missing seed file", func(t *testing.T) {
		st := newTestStore(t)
		a := services.NewAnalytics(services.WithLogger(testLogger()))
		l := NewLoader(st, a, filepath.Join(t.TempDir(), "missing.csv"), testLogger())

		if err := l.LoadActive(ctx); err == nil {
			t.Error("expected an error for a missing seed file")
		}
	})
}

func TestLoader_Select(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	saveImport(t, st, "a", 2)
	saveImport(t, st, "b", 3)
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	l := NewLoader(st, a, "", testLogger())

	n, err := l.Select(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if n != 5 {
		t.Errorf("merged %d records, want 5", n)
	}
	if first := a.Records()[0].RepairNo; first != "b-0" {
		t.Errorf("first record = %s, want b-0", first)
	}
	if src, id := a.Source(); src != services.SourceSelection || id != "b,a" {
		t.Errorf("source = %s/%s", src, id)
	}

	if _, err := l.Select(ctx, nil); err == nil {
		t.Error("expected an error for an empty selection")
	}
}

func TestLoader_ReloadIfShowing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	saveImport(t, st, "a", 2)
	saveImport(t, st, "b", 3)
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	l := NewLoader(st, a, "", testLogger())

	if _, err := l.Select(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	if err := l.ReloadIfShowing(ctx, services.SourceImport); err != nil {
		t.Fatal(err)
	}
	if src, _ := a.Source(); src != services.SourceSelection {
		t.Errorf("selection should be kept, source = %s", src)
	}

	if err := l.ReloadIfShowing(ctx, services.SourceSelection); err != nil {
		t.Fatal(err)
	}
	if src, _ := a.Source(); src != services.SourceNone {
		t.Errorf("source = %s, want none after reload", src)
	}
}

func TestLoader_Forget(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	saveImport(t, st, "a", 2)
	saveImport(t, st, "b", 3)
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	l := NewLoader(st, a, "", testLogger())

	if _, err := l.Select(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Forget(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if src, _ := a.Source(); src != services.SourceSelection {
		t.Fatalf("unrelated import should not reload, source = %s", src)
	}

	if err := st.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := l.Forget(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if src, _ := a.Source(); src != services.SourceNone {
		t.Errorf("source = %s, want none", src)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeSeed(t, seedCSV)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 4)
	w := NewWatcher(path, func(context.Context) error {
		calls.Add(1)
		fired <- struct{}{}
		return nil
	}, testLogger(), WithDebounce(50*time.Millisecond))

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer w.Close()

	for range 3 {
		if err := os.WriteFile(path, []byte(seedCSV+"R3,06/02/2024,51B-003,1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called after the file was written")
	}

	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange calls = %d, want 1 for a burst of writes", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeSeed(t, seedCSV)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	w := NewWatcher(path, func(context.Context) error {
		calls.Add(1)
		return nil
	}, testLogger(), WithDebounce(10*time.Millisecond))
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	other := filepath.Join(filepath.Dir(path), "other.csv")
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("onChange calls = %d, want 0", n)
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	w := NewWatcher(writeSeed(t, seedCSV), func(context.Context) error { return nil }, testLogger())
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(testLogger())

	if err := s.Add("disabled", "", func(context.Context) error { return nil }); err != nil {
		t.Errorf("empty spec should disable the job, got %v", err)
	}
	if err := s.Add("broken", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Error("expected an error for an invalid spec")
	}

	var runs atomic.Int32
	if err := s.Add("sync", "@every 1h", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	failing := errors.New("boom")
	if err := s.Add("fail", "0 3 * * *", func(context.Context) error { return failing }); err != nil {
		t.Fatal(err)
	}

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	s.Start(context.Background())
	if err := s.Trigger("sync"); err != nil {
		t.Errorf("Trigger(sync) error: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if err := s.Trigger("fail"); !errors.Is(err, failing) {
		t.Errorf("Trigger(fail) = %v, want %v", err, failing)
	}
	if err := s.Trigger("missing"); err == nil {
		t.Error("expected an error for an unknown job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestWatcher_ReloadRefreshesStatistics(t *testing.T) {
	path := writeSeed(t, seedCSV)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := services.NewAnalytics(services.WithLogger(testLogger()))
	l := NewLoader(newTestStore(t), a, path, testLogger())
	if err := l.LoadActive(ctx); err != nil {
		t.Fatal(err)
	}
	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 3_000_000 {
		t.Fatalf("TotalCost = %v, want 3000000", got)
	}

	reloaded := make(chan error, 4)
	w := NewWatcher(path, func(ctx context.Context) error {
		err := l.ReloadIfShowing(ctx, services.SourceFile, services.SourceNone)
		reloaded <- err
		return err
	}, testLogger(), WithDebounce(50*time.Millisecond))
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	edited := "repair_no,ngay_gio_yeu_cau,phuong_tien_can_sua_chua,tong_chi_phi_sau_vat\n" +
		"R1,01/02/2024,51B-001,\"1,000,000\"\n" +
		"R2,05/02/2024,51B-002,\"9,000,000\"\n"
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dataset was not reloaded after the seed file changed")
	}

	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 10_000_000 {
		t.Errorf("TotalCost after reload = %v, want 10000000", got)
	}
}

func TestScheduler_SyncRefreshesStatistics(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	saveImportCosts(t, st, "a", "1,000,000", "2,000,000", "3,000,000")
	if err := st.SetActive(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	a := services.NewAnalytics(services.WithLogger(testLogger()))
	l := NewLoader(st, a, "", testLogger())
	if err := l.LoadActive(ctx); err != nil {
		t.Fatal(err)
	}
	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 6_000_000 {
		t.Fatalf("TotalCost = %v, want 6000000", got)
	}

	s := NewScheduler(testLogger())
	if err := s.Add("sync", "@every 1h", func(ctx context.Context) error {
		saveImportCosts(t, st, "a", "1,000,000", "7,000,000", "3,000,000")
		return l.ReloadIfShowing(ctx, services.SourceImport)
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("sync"); err != nil {
		t.Fatalf("Trigger(sync) error: %v", err)
	}

	if got := a.Statistics(models.FilterParams{}).TotalCost; got != 11_000_000 {
		t.Errorf("TotalCost after sync = %v, want 11000000", got)
	}
}
