package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/depgraph/pkg/httputil"
)

// DefaultMaxClients bounds how many client buckets a LocalRateLimiter keeps
const DefaultMaxClients = 10000

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig allows 60 graph builds per minute with a burst of 10
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 60,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LocalRateLimiter is an in-process token bucket per client. Idle clients
// are evicted after two windows.
type LocalRateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	clients *lru.LRU[string, *rate.Limiter]
}

// NewLocalRateLimiter creates a limiter tracking at most maxClients clients
func NewLocalRateLimiter(config *RateLimitConfig, maxClients int) *LocalRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	return &LocalRateLimiter{
		config:  *config,
		clients: lru.NewLRU[string, *rate.Limiter](maxClients, nil, 2*config.WindowDuration),
	}
}

// Allow takes one token from key's bucket
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	limiter, ok := rl.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.refill(), max(rl.config.BurstSize, 1))
		rl.clients.Add(key, limiter)
	}
	rl.mu.Unlock()

	now := time.Now()
	d := Decision{Limit: rl.config.RequestsPerWindow}
	if limiter.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = int(math.Max(0, math.Floor(limiter.TokensAt(now))))
		return d, nil
	}

	// Time until the next token lands.
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		d.RetryAfter = rl.config.WindowDuration
		return d, nil
	}
	d.RetryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return d, nil
}

func (rl *LocalRateLimiter) refill() rate.Limit {
	if rl.config.RequestsPerWindow <= 0 || rl.config.WindowDuration <= 0 {
		return 0
	}
	return rate.Every(rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow))
}

// RateLimit rejects clients over their limit with 429. Clients are keyed by
// address. Limiter errors are logged and the request is let through.
func RateLimit(limiter Limiter, log *logrus.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logrus.New()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r)
			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).WithField("client", key).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
			if !d.Allowed {
				retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":       "rate limit exceeded",
					"retry_after": retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating address of r: the first X-Forwarded-For
// hop, then X-Real-IP, then the connection's host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
