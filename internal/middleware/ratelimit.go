package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"repair-dashboard/internal/config"
	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/observability"
)

// idleLimiterTTL is how long a client's limiter is kept after its last
// request.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address, plus a stricter one
// for login attempts. Idle buckets are dropped by Sweep.
type RateLimiter struct {
	mu      sync.Mutex
	general map[string]*clientLimiter
	login   map[string]*clientLimiter
	config  config.SecurityConfig
	now     func() time.Time
}

func NewRateLimiter(cfg config.SecurityConfig) *RateLimiter {
	return &RateLimiter{
		general: make(map[string]*clientLimiter),
		login:   make(map[string]*clientLimiter),
		config:  cfg,
		now:     time.Now,
	}
}

func (rl *RateLimiter) get(clients map[string]*clientLimiter, ip string, newLimiter func() *rate.Limiter) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := clients[ip]
	if !ok {
		c = &clientLimiter{limiter: newLimiter()}
		clients[ip] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Allow reports whether ip may make another request now.
func (rl *RateLimiter) Allow(ip string) bool {
	if !rl.config.EnableRateLimit {
		return true
	}
	return rl.get(rl.general, ip, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.config.RateLimitRPS), rl.config.RateLimitBurst)
	}).AllowN(rl.now(), 1)
}

// AllowLogin reports whether ip may submit another login form. It applies
// even when the general limit is disabled.
func (rl *RateLimiter) AllowLogin(ip string) bool {
	perMinute := rl.config.LoginAttemptsPerMinute
	if perMinute <= 0 {
		return true
	}
	return rl.get(rl.login, ip, func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}).AllowN(rl.now(), 1)
}

// Sweep forgets clients idle for longer than idleLimiterTTL and returns how
// many were dropped.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleLimiterTTL)
	dropped := 0
	for _, clients := range []map[string]*clientLimiter{rl.general, rl.login} {
		for ip, c := range clients {
			if c.lastSeen.Before(cutoff) {
				delete(clients, ip)
				dropped++
			}
		}
	}
	return dropped
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.general) + len(rl.login)
}

func RateLimit(limiter *RateLimiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed := limiter.Allow(ip)
			if allowed && r.Method == http.MethodPost && r.URL.Path == "/login" {
				allowed = limiter.AllowLogin(ip)
			}
			if !allowed {
				requestID := observability.GetRequestID(r.Context())
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"request_id", requestID,
				)
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, logger, errors.RateLimit("Too many requests"), requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
