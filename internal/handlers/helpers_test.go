package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"repair-dashboard/internal/assistant"
	"repair-dashboard/internal/config"
	"repair-dashboard/internal/models"
	"repair-dashboard/internal/refresh"
	"repair-dashboard/internal/services"
	"repair-dashboard/internal/sheets"
	"repair-dashboard/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func createTestRecords() []models.RepairRecord {
	return []models.RepairRecord{
		{
			RepairNo:        "SC001",
			RequestedAt:     "15/01/2024 08:00",
			CheckedInAt:     "15/01/2024 09:00",
			CompletedAt:     "15/01/2024 13:00",
			Vehicle:         "51B-001",
			VehicleType:     "Truck",
			RepairType:      "Engine",
			Workshop:        "North",
			LaborCost:       "500,000",
			MaterialPayment: "1,000,000",
			CostAfterTax:    "1,500,000",
		},
		{
			RepairNo:        "SC002",
			RequestedAt:     "10/02/2024 10:00",
			Vehicle:         "51B-002",
			VehicleType:     "Bus",
			RepairType:      "Brakes",
			Workshop:        "South",
			LaborCost:       "200,000",
			MaterialPayment: "300,000",
			CostAfterTax:    "500,000",
		},
		{
			RepairNo:     "SC003",
			RequestedAt:  "20/02/2024 10:00",
			Vehicle:      "51B-001",
			VehicleType:  "Truck",
			RepairType:   "Engine",
			Workshop:     "North",
			Rejected:     "TRUE",
			CostAfterTax: "7,000,000",
		},
	}
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	a.SetData(createTestRecords(), services.SourceImport, "test")
	return a
}

// fakeCompleter answers every request with a fixed reply and records what
// it was sent.
type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []assistant.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req assistant.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestSessions(analytics *services.Analytics, apiKey string, c assistant.Completer) *assistant.Sessions {
	cfg := config.AssistantConfig{APIKey: apiKey, Model: "test-model", MaxTokens: 100, Temperature: 0.1}
	return assistant.NewSessions(func() *assistant.Assistant {
		return assistant.New(cfg, analytics, assistant.WithCompleter(c), assistant.WithLogger(testLogger()))
	})
}

// fakeSheetHost serves CSV exports for spreadsheet ids.
type fakeSheetHost struct {
	mu     sync.Mutex
	sheets map[string]string
}

func newFakeSheetHost(t *testing.T) (*fakeSheetHost, *httptest.Server) {
	t.Helper()
	h := &fakeSheetHost{sheets: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/spreadsheets/d/"), "/export")
		h.mu.Lock()
		body, ok := h.sheets[id]
		h.mu.Unlock()
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *fakeSheetHost) set(id, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sheets[id] = body
}

type testEnv struct {
	analytics *services.Analytics
	store     *store.Store
	importer  *sheets.Importer
	loader    *refresh.Loader
	host      *fakeSheetHost
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "repairs.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	host, srv := newFakeSheetHost(t)
	analytics := createTestAnalytics()
	return &testEnv{
		analytics: analytics,
		store:     st,
		importer:  sheets.NewImporter(st, testLogger(), sheets.WithExportBase(srv.URL), sheets.WithTimeout(5*time.Second)),
		loader:    refresh.NewLoader(st, analytics, "", testLogger()),
		host:      host,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}
