// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for the public write endpoints
// (recommendations and reviews). It validates an Idempotency-Key request
// header, looks up a previously stored response for the same
// (client, scope, key) and, on a hit, replays that response without running
// the handler. Downstream handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - learn which client and scope to store their response under
//     (IdempotencyClient, IdempotencyScope)
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients use to convey an
// idempotency key for unsafe operations.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set to "true" on replayed responses.
const HeaderIdempotentReplay = "Idempotent-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored response was served
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request was answered from a stored response.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyClient identifies the caller a key belongs to: the admin
// username when authenticated, otherwise the client IP.
func IdempotencyClient(c *gin.Context) string {
	if admin, ok := AdminFrom(c); ok {
		return "admin:" + admin
	}
	return "ip:" + c.ClientIP()
}

// IdempotencyScope is the operation a key is bound to: the method and the
// concrete request path, so one key reused on two merchants stays distinct.
func IdempotencyScope(c *gin.Context) string {
	return c.Request.Method + " " + c.Request.URL.Path
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
// Expiry is enforced by the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, ^[A-Za-z0-9._~\-:]+$ is used.
	Pattern *regexp.Regexp
}

// StoredResponse is a response recorded under an idempotency key.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyLookup returns the stored response for (client, scope, key) that
// is still valid at now, or nil when there is none. Errors are treated as a
// miss so a broken store never blocks writes.
type IdempotencyLookup func(ctx context.Context, client, scope, key string, now time.Time) (*StoredResponse, error)

// IdempotencyValidator validates the Idempotency-Key header, stashes it in
// the request context and replays stored responses.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400.
//   - On POST, if lookup returns a stored response: writes it with the
//     Idempotent-Replayed header, sets the replay and rate-bypass flags and
//     aborts the chain.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		scope := IdempotencyScope(c)
		stored, err := lookup(c.Request.Context(), IdempotencyClient(c), scope, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
		}
		if stored == nil {
			c.Next()
			return
		}

		c.Set(ctxKeyIdemReplay, true)
		c.Set(ctxKeyRateBypass, true)
		httpIdemReplays.WithLabelValues(routeLabel(c)).Inc()

		c.Header(HeaderIdempotentReplay, "true")
		c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
		c.Abort()
	}
}
