package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenCheck resolves a session token to the admin username it belongs to.
type TokenCheck func(token string) (username string, err error)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// IdentifyAdmin resolves a bearer token, when present, to an admin and stores
// the username in the context. It never rejects a request: invalid tokens are
// simply left unidentified so public routes keep working. Install it before
// the rate limiter so admins get their own bucket.
func IdentifyAdmin(check TokenCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" || check == nil {
			c.Next()
			return
		}
		name, err := check(tok)
		if err != nil || name == "" {
			httpAuthFailures.WithLabelValues("invalid_token").Inc()
			c.Next()
			return
		}
		c.Set(adminKey, name)
		lg := LoggerFrom(c).With().Str("admin", name).Logger()
		c.Set(loggerKey, &lg)
		c.Next()
	}
}

// RequireAdmin aborts with 401 unless IdentifyAdmin recognised the caller.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := AdminFrom(c); ok {
			c.Next()
			return
		}
		if bearerToken(c) == "" {
			httpAuthFailures.WithLabelValues("missing_token").Inc()
		}
		c.Header("WWW-Authenticate", `Bearer realm="admin"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "unauthorized",
			"message":    "admin login required",
		})
	}
}
