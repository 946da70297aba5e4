// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter throttles requests per client IP, with tighter budgets on the
// endpoints that gate code issuance and credential checks. Limiters are
// keyed by IP and budget class, so a request on a default-budget route never
// seeds the limiter a strict endpoint will consult.
type RateLimiter struct {
	limiters       map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             *sync.RWMutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
}

// NewRateLimiter creates the limiter with per-endpoint budgets for the auth
// surface.
func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		limiters:       make(map[string]*rate.Limiter),
		blockedIPs:     make(map[string]time.Time),
		mu:             &sync.RWMutex{},
		defaultLimit:   rate.Every(100 * time.Millisecond), // 10 requests per second
		defaultBurst:   20,
		blockDuration:  5 * time.Minute,
		endpointLimits: make(map[string]endpointLimit),
	}

	// Code issuance is the expensive path (SMS/email per request), so it gets
	// the strictest budget.
	limiter.endpointLimits["/api/auth/request-verification"] = endpointLimit{
		limit: rate.Every(2 * time.Second),
		burst: 3,
	}
	limiter.endpointLimits["/api/auth/request-password-reset"] = endpointLimit{
		limit: rate.Every(2 * time.Second),
		burst: 3,
	}
	limiter.endpointLimits["/api/auth/resend-code"] = endpointLimit{
		limit: rate.Every(2 * time.Second),
		burst: 3,
	}
	limiter.endpointLimits["/api/auth/login"] = endpointLimit{
		limit: rate.Every(time.Second),
		burst: 5,
	}
	limiter.endpointLimits["/api/auth/verify"] = endpointLimit{
		limit: rate.Every(500 * time.Millisecond),
		burst: 5,
	}

	go limiter.cleanupBlockedIPs()

	return limiter
}

func (r *RateLimiter) cleanupBlockedIPs() {
	for {
		time.Sleep(1 * time.Hour)
		r.mu.Lock()
		now := time.Now()
		for ip, blockUntil := range r.blockedIPs {
			if now.After(blockUntil) {
				delete(r.blockedIPs, ip)
				r.dropLimiters(ip)
			}
		}
		r.mu.Unlock()
	}
}

// RateLimit returns the Echo middleware applying the limits.
func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			// Check if IP is blocked and handle expired blocks
			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if time.Now().Before(blockUntil) {
					r.mu.Unlock()
					return c.JSON(http.StatusTooManyRequests, map[string]string{
						"message":    "IP address blocked due to too many requests",
						"retryAfter": blockUntil.Format(time.RFC3339),
					})
				}
				delete(r.blockedIPs, ip)
				r.dropLimiters(ip)
			}
			r.mu.Unlock()

			limit := r.defaultLimit
			burst := r.defaultBurst
			bucket := "default"
			if endpointLimit, exists := r.endpointLimits[c.Path()]; exists {
				limit = endpointLimit.limit
				burst = endpointLimit.burst
				bucket = c.Path()
			}

			limiter := r.getLimiter(ip+"|"+bucket, limit, burst)
			if !limiter.Allow() {
				r.mu.Lock()
				r.blockedIPs[ip] = time.Now().Add(r.blockDuration)
				r.mu.Unlock()

				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"message":    "Too many requests",
					"retryAfter": time.Now().Add(r.blockDuration).Format(time.RFC3339),
				})
			}

			return next(c)
		}
	}
}

func (r *RateLimiter) getLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		r.limiters[key] = limiter
	}
	return limiter
}

// dropLimiters removes every budget bucket belonging to ip. Callers hold r.mu.
func (r *RateLimiter) dropLimiters(ip string) {
	prefix := ip + "|"
	for key := range r.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(r.limiters, key)
		}
	}
}
