package auth

import (
	"log/slog"
	"net/http"
	"strings"

	apperrors "repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
)

// Require lets requests with a live session through and puts the session on
// the request context. Page requests without one are redirected to /login;
// API and SSE requests get a 401.
func (m *Manager) Require(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := m.SessionFromRequest(r)
			if ok {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
				return
			}

			if isAPIRequest(r) {
				apperrors.WriteError(w, logger, apperrors.Unauthorized("login required"),
					observability.GetRequestID(r.Context()))
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/sse/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
