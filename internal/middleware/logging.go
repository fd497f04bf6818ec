package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"repair-dashboard/internal/observability"
)

// Logger writes one line per finished request. Health checks and metric
// scrapes are logged at debug level.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				level = slog.LevelDebug
			case rw.statusCode >= http.StatusInternalServerError:
				level = slog.LevelError
			}
			msg := "request completed"
			if isStream(r) {
				msg = "stream closed"
			}
			observability.LoggerFrom(r.Context(), logger).Log(r.Context(), level, msg,
				"method", r.Method,
				"path", r.URL.Path,
				"route", RouteGroup(r.URL.Path),
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"duration", time.Since(start),
				"client_ip", clientIP(r),
			)
		})
	}
}

// Metrics counts requests and, except for SSE streams whose lifetime is
// not a latency, observes their duration.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			route := RouteGroup(r.URL.Path)
			observability.HTTPRequestsTotal.
				WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).
				Inc()
			if !isStream(r) {
				observability.HTTPRequestDuration.
					WithLabelValues(r.Method, route).
					Observe(time.Since(start).Seconds())
			}
		})
	}
}

// Tracing opens the root span of a request. Spans started by handlers, the
// importer or the assistant nest under it.
func Tracing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), "http "+RouteGroup(r.URL.Path))
			defer span.Finish()

			span.SetTag("http.method", r.Method)
			span.SetTag("http.path", r.URL.Path)
			rw := wrap(w)

			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetTag("http.status_code", strconv.Itoa(rw.statusCode))
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetError(fmt.Errorf("HTTP %d", rw.statusCode))
			}
		})
	}
}
