package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"repair-dashboard/internal/assistant"
)

func TestNewSSEHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	logger := testLogger()
	chats := newTestSessions(analytics, "sk-test", &fakeCompleter{})

	handlers := NewSSEHandlers(analytics, chats, logger)

	if handlers == nil {
		t.Fatal("NewSSEHandlers() returned nil")
	}
	if handlers.analytics != analytics {
		t.Error("NewSSEHandlers() should set analytics field")
	}
	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func dashboardRequest(signals string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar="+url.QueryEscape(signals), nil)
}

func TestSSEHandlers_HandleDashboard(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, newTestSessions(analytics, "sk-test", &fakeCompleter{}), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleDashboard(w, dashboardRequest(`{"from": "", "to": "", "vehicle_type": "all"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check SSE headers (DataStar sets these)
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected content-type to contain 'text/event-stream', got %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected cache-control 'no-cache', got %q", cc)
	}

	body := w.Body.String()
	expectedContent := []string{
		"datastar-patch-elements",
		"datastar-patch-signals",
		`id="stat-cards"`,
		`id="chart-panels"`,
		"monthlyData",
		"rejectionData",
		"Engine",
		"North",
	}
	for _, content := range expectedContent {
		if !strings.Contains(body, content) {
			t.Errorf("expected response to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleDashboard_Filtered(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, newTestSessions(analytics, "sk-test", &fakeCompleter{}), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleDashboard(w, dashboardRequest(`{"vehicle_type": "Bus"}`))

	body := w.Body.String()
	if !strings.Contains(body, `"recordCount":1`) {
		t.Errorf("expected one filtered record in the signals, got:\n%s", body)
	}
	if strings.Contains(body, "North") {
		t.Error("workshop of filtered-out records should not be rendered")
	}
}

func TestSSEHandlers_HandleDashboard_InvalidDates(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, newTestSessions(analytics, "sk-test", &fakeCompleter{}), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleDashboard(w, dashboardRequest(`{"from": "yesterday"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestSSEHandlers_HandleChat(t *testing.T) {
	analytics := createTestAnalytics()
	completer := &fakeCompleter{reply: "Brakes are cheapest."}
	chats := newTestSessions(analytics, "sk-test", completer)
	handlers := NewSSEHandlers(analytics, chats, testLogger())

	req := withSession(postJSON("/sse/chat", `{"message": "Which repair is cheapest?"}`), "s1")
	w := httptest.NewRecorder()
	handlers.HandleChat(w, req)

	body := w.Body.String()
	for _, content := range []string{
		`id="chat-messages"`,
		"Which repair is cheapest?",
		"Brakes are cheapest.",
		`"sending": false`,
	} {
		if !strings.Contains(body, content) {
			t.Errorf("expected response to contain %q", content)
		}
	}
	if strings.Contains(body, "AGGREGATED DATA") {
		t.Error("the system prompt should not be rendered")
	}
	if n := len(chats.Get("s1").History()); n != 3 {
		t.Errorf("history = %d, want 3", n)
	}
}

func TestSSEHandlers_HandleChat_NotConfigured(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewSSEHandlers(analytics, newTestSessions(analytics, "", &fakeCompleter{}), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleChat(w, postJSON("/sse/chat", `{"message": "hi"}`))

	if !strings.Contains(w.Body.String(), assistant.NotConfiguredMessage) {
		t.Error("the advisory should be shown as a reply")
	}
}

func TestSSEHandlers_HandleChat_EmptyMessage(t *testing.T) {
	analytics := createTestAnalytics()
	completer := &fakeCompleter{reply: "ok"}
	handlers := NewSSEHandlers(analytics, newTestSessions(analytics, "sk-test", completer), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleChat(w, postJSON("/sse/chat", `{"message": "  "}`))

	if completer.count() != 0 {
		t.Error("empty messages must not be sent")
	}
	if strings.Contains(w.Body.String(), "chat-messages") {
		t.Error("nothing should be rendered for an empty message")
	}
}

func TestTranscript(t *testing.T) {
	sys := assistant.Message{Role: assistant.RoleSystem, Content: "prompt"}
	user := assistant.Message{Role: assistant.RoleUser, Content: "q"}

	tests := []struct {
		name    string
		history []assistant.Message
		reply   string
		want    int
	}{
		{"reply kept in history", []assistant.Message{sys, user, {Role: assistant.RoleAssistant, Content: "a"}}, "a", 3},
		{"failed call keeps the question", []assistant.Message{sys, user}, "Error: boom", 3},
		{"nothing recorded", nil, assistant.NotConfiguredMessage, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transcript(tt.history, "q", tt.reply)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if last := got[len(got)-1]; last.Content != tt.reply {
				t.Errorf("last message = %q, want the reply", last.Content)
			}
		})
	}
}
