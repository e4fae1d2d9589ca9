// Package middleware provides rate limiting for the analysis API.
//
// Every analysis request builds a graph and fetches manifests, so clients are
// limited per address. LocalRateLimiter keeps a token bucket per client in
// process; DistributedRateLimiter counts fixed windows in Redis and is shared
// by every server instance.
//
//	limiter := middleware.NewLocalRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 60,
//		WindowDuration:    time.Minute,
//		BurstSize:         10,
//	}, 0)
//	api.Use(middleware.RateLimit(limiter, log))
//
// Rejected requests get 429 with Retry-After. When the limiter itself fails
// the request is allowed and a warning is logged.
package middleware
