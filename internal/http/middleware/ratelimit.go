// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter keyed by the
// signed-in admin or the client IP. Reads take one token; writes (reviews,
// recommendations, uploads, admin edits) take the WithWriteCost amount
// so a visitor cannot flood the remote backend through the write path while
// browsing stays cheap. Idempotent replays are served without a token.
//
// The limiter is process-local: each replica enforces its own budget.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByAdminOrIP keys buckets like idempotency records: "admin:<name>" for a
// signed-in admin, "ip:<addr>" otherwise.
func KeyByAdminOrIP() keyFunc {
	return IdempotencyClient
}

// RateOption tunes a RateLimiter.
type RateOption func(*RateLimiter)

// WithWriteCost makes non-safe methods take n tokens. n is clamped to
// [1, burst] so a write can always succeed on a full bucket.
func WithWriteCost(n int) RateOption {
	return func(rl *RateLimiter) { rl.writeCost = n }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Buckets idle for longer than
// ttl are evicted every gcEvery lookups. Safe for concurrent use.
type RateLimiter struct {
	rps       rate.Limit
	burst     int
	writeCost int
	keyFn     keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	gcEvery  uint64
	now      func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second into
// buckets of size burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, opts ...RateOption) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		writeCost: 1,
		keyFn:     keyFn,
		visitors:  make(map[string]*visitor),
		ttl:       10 * time.Minute,
		gcEvery:   5000,
		now:       time.Now,
	}
	for _, o := range opts {
		o(rl)
	}
	rl.writeCost = min(max(rl.writeCost, 1), burst)
	return rl
}

// getVisitor returns the bucket for key. Eviction runs before the lookup so
// a stale bucket for key itself is replaced rather than refreshed.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// cost is the number of tokens a request takes.
func (rl *RateLimiter) cost(method string) int {
	if isWrite(method) {
		return rl.writeCost
	}
	return 1
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay of a stored response.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. A rejected request gets 429 rate_limited
// with Retry-After set to the whole seconds until enough tokens refill.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		lim := rl.getVisitor(key)
		n := rl.cost(c.Request.Method)
		now := rl.now()
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		class := "read"
		if isWrite(c.Request.Method) {
			class = "write"
		}
		httpRateLimited.WithLabelValues(callerKind(key), class).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now, n)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the wait in seconds, at least 1, before n tokens are
// available. A zero rate never refills, so it reports one minute.
func retryAfter(lim *rate.Limiter, now time.Time, n int) int {
	if lim.Limit() <= 0 {
		return 60
	}
	missing := float64(n) - lim.TokensAt(now)
	secs := int(math.Ceil(missing / float64(lim.Limit())))
	return max(secs, 1)
}
