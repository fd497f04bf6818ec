// Package middleware wraps the dashboard's routes with request ids, logging,
// metrics, tracing, security headers and per-client rate limits.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
)

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed runs first.
func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// RequestID keeps an incoming X-Request-ID or assigns a new one, and echoes
// it in the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), requestID)))
		})
	}
}

// Recovery turns a handler panic into a 500 envelope. A streaming response
// that already started is only logged.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrap(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				observability.LoggerFrom(r.Context(), logger).Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				if rw.wroteHeader {
					return
				}
				errors.WriteError(rw, logger, errors.Internal("An unexpected error occurred"),
					observability.GetRequestID(r.Context()))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter records the status and size of a response. It is shared by
// every middleware of a request so the body is counted once.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush keeps SSE streams working through the wrapper.
func (rw *responseWriter) Flush() {
	rw.wroteHeader = true
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var knownRoutes = map[string]bool{
	"/":                true,
	"/login":           true,
	"/logout":          true,
	"/health":          true,
	"/metrics":         true,
	"/admin/stats":     true,
	"/api/statistics":  true,
	"/api/summary":     true,
	"/api/overview":    true,
	"/api/charts":      true,
	"/api/filters":     true,
	"/api/imports":     true,
	"/api/selection":   true,
	"/api/chat":        true,
	"/api/chat/reset":  true,
	"/api/chat/status": true,
	"/sse/dashboard":   true,
	"/sse/chat":        true,
}

// RouteGroup maps a request path to a bounded metric label: import ids
// collapse into "/api/imports/:id" and unknown paths into "other".
func RouteGroup(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/imports/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/activate") {
			return "/api/imports/:id/activate"
		}
		return "/api/imports/:id"
	}
	return "other"
}

func isStream(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/sse/")
}

// clientIP prefers proxy headers; TrustedProxy removes them unless the peer
// is a trusted proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
