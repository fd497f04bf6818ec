package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"repair-dashboard/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(config.AuthConfig{
		Username:   "admin",
		Password:   "1234",
		SessionTTL: time.Hour,
	}, WithClock(clock.Now), WithLogger(testLogger()))
	return m, clock
}

func TestLogin(t *testing.T) {
	m, _ := newTestManager(t)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid credentials", "admin", "1234", false},
		{"wrong password", "admin", "12345", true},
		{"wrong username", "root", "1234", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := m.Login(tt.username, tt.password)
			if tt.wantErr {
				if err != ErrInvalidCredentials {
					t.Fatalf("expected ErrInvalidCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.ID == "" {
				t.Error("expected a session id")
			}
			if _, ok := m.Validate(s.ID); !ok {
				t.Error("new session should validate")
			}
		})
	}
}

func TestValidate_Expiry(t *testing.T) {
	m, clock := newTestManager(t)

	var dropped []string
	m.OnLogout(func(id string) { dropped = append(dropped, id) })

	s, err := m.Login("admin", "1234")
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(59 * time.Minute)
	if _, ok := m.Validate(s.ID); !ok {
		t.Fatal("session should still be valid before TTL")
	}

	clock.Advance(time.Minute)
	if _, ok := m.Validate(s.ID); ok {
		t.Fatal("session should be expired at TTL")
	}
	if m.Len() != 0 {
		t.Errorf("expired session should be removed, %d left", m.Len())
	}
	if len(dropped) != 1 || dropped[0] != s.ID {
		t.Errorf("logout hook calls = %v, want [%s]", dropped, s.ID)
	}
}

func TestLogout_RunsHooksOnce(t *testing.T) {
	m, _ := newTestManager(t)

	calls := 0
	m.OnLogout(func(string) { calls++ })

	s, _ := m.Login("admin", "1234")
	m.Logout(s.ID)
	m.Logout(s.ID)
	m.Logout("unknown")

	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}
	if _, ok := m.Validate(s.ID); ok {
		t.Error("session should be gone after logout")
	}
}

func TestPurgeExpired(t *testing.T) {
	m, clock := newTestManager(t)

	m.Login("admin", "1234")
	m.Login("admin", "1234")
	clock.Advance(30 * time.Minute)
	fresh, _ := m.Login("admin", "1234")
	clock.Advance(45 * time.Minute)

	if n := m.PurgeExpired(); n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
	if _, ok := m.Validate(fresh.ID); !ok {
		t.Error("fresh session should survive the purge")
	}
}

func TestRequire(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Login("admin", "1234")

	protected := m.Require(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := SessionFrom(r.Context())
		if !ok || got.ID != s.ID {
			t.Errorf("session not on context: %+v", got)
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("with session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: s.ID})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("page without session redirects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want 303", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login" {
			t.Errorf("Location = %q, want /login", loc)
		}
	})

	t.Run("api without session is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		var body struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Success || body.Error.Code != "UNAUTHORIZED" {
			t.Errorf("unexpected body: %+v", body)
		}
	})
}

func TestCookies(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := m.Login("admin", "1234")

	w := httptest.NewRecorder()
	m.SetCookie(w, s)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != s.ID {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	w = httptest.NewRecorder()
	m.ClearCookie(w)
	cleared := w.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie, got %+v", cleared)
	}
}
