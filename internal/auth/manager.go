// Package auth implements the demo login: one configured credential pair and
// in-memory session tokens carried in a cookie.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"repair-dashboard/internal/config"
)

const CookieName = "vla_session"

var ErrInvalidCredentials = errors.New("invalid username or password")

type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

type Manager struct {
	mu       sync.RWMutex
	cfg      config.AuthConfig
	sessions map[string]Session
	onLogout []func(sessionID string)
	now      func() time.Time
	logger   *slog.Logger
}

func NewManager(cfg config.AuthConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]Session),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnLogout registers fn to run whenever a session ends, by logout or expiry.
func (m *Manager) OnLogout(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

func (m *Manager) Login(username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.cfg.Password)) == 1
	if !userOK || !passOK {
		m.logger.Warn("login rejected", "username", username)
		return Session{}, ErrInvalidCredentials
	}

	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.SessionTTL),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("login succeeded", "username", username)
	return s, nil
}

// Validate returns the live session for id. Expired sessions are ended.
func (m *Manager) Validate(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.Expired(m.now()) {
		m.Logout(id)
		return Session{}, false
	}
	return s, true
}

func (m *Manager) Logout(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	hooks := append([]func(string){}, m.onLogout...)
	m.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range hooks {
		fn(id)
	}
}

// PurgeExpired ends every expired session and returns how many there were.
func (m *Manager) PurgeExpired() int {
	now := m.now()

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.Expired(now) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Logout(id)
	}
	if len(expired) > 0 {
		m.logger.Info("expired sessions purged", "count", len(expired))
	}
	return len(expired)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) SetCookie(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromRequest resolves the session cookie of r.
func (m *Manager) SessionFromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}, false
	}
	return m.Validate(c.Value)
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}
