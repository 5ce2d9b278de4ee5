package core

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ridecast/internal/types"
)

// rateLimitWindow is the fixed window rate limits are counted over.
const rateLimitWindow = time.Minute

// RateLimiter enforces a fixed-window request cap per caller. Counters live
// in memory, which is sufficient for a single-instance API; a multi-instance
// deployment would swap in a shared store behind the same surface.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	buckets   map[string]*rateBucket
	lastSweep time.Time

	now func() time.Time
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter builds a limiter allowing limit requests per window per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateBucket),
		now:     time.Now,
	}
}

// Allow counts one request against key and reports whether it fits in the
// current window, how many requests remain, and when the window resets.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.maybeSweep(now)

	bucket, ok := rl.buckets[key]
	if !ok || !now.Before(bucket.resetAt) {
		bucket = &rateBucket{resetAt: now.Add(rl.window)}
		rl.buckets[key] = bucket
	}

	if bucket.count >= rl.limit {
		return false, 0, bucket.resetAt
	}

	bucket.count++
	return true, rl.limit - bucket.count, bucket.resetAt
}

// maybeSweep drops expired buckets so idle keys do not accumulate forever.
// Runs at most once per window. Caller holds the lock.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, bucket := range rl.buckets {
		if !now.Before(bucket.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware rejects callers that exceed the per-key request cap
// with 429 and standard X-RateLimit-* headers. Keys are the authenticated
// API key ID when present, the remote IP otherwise. A nil Limiter disables
// enforcement.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		if _, exempt := authExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}

		key := rateLimitKey(r)
		allowed, remaining, resetAt := s.Limiter.Allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.Limiter.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(types.ErrCodeRateLimit,
				"rate limit exceeded, retry after the reset time", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if keyID, ok := types.GetAPIKeyID(r.Context()); ok {
		return "key:" + keyID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
