// Package httpapi wires the HTTP transport (Gin) to the directory services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// admin identification, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Public reads stay open; every write except reviews and
//     recommendations requires an admin session
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-merchant-directory/internal/config"
	"github.com/tbourn/go-merchant-directory/internal/http/handlers"
	"github.com/tbourn/go-merchant-directory/internal/http/middleware"
	"github.com/tbourn/go-merchant-directory/internal/repo"
	"github.com/tbourn/go-merchant-directory/internal/services"
)

// MediaPath serves files of the filesystem object store.
const MediaPath = "/media"

// Authenticator resolves a bearer token to the signed-in admin.
type Authenticator interface {
	handlers.AuthService
	Authenticate(token string) (services.Session, error)
}

// IdempotencyLookup adapts repo.GetIdempotency to the middleware callback.
func IdempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, client, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
		rec, err := repo.GetIdempotency(ctx, db, client, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &middleware.StoredResponse{Status: rec.Status, Body: []byte(rec.Body)}, nil
	}
}

// IdempotencyRecorder adapts repo.CreateIdempotency to the handler callback.
// A record that already exists is not an error: the first response wins.
func IdempotencyRecorder(db *gorm.DB, ttl time.Duration) handlers.IdempotencyRecorder {
	return func(ctx context.Context, client, scope, key, resourceID string, status int, body []byte) error {
		_, err := repo.CreateIdempotency(ctx, db, client, scope, key, resourceID, status, body, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. db holds the idempotency ledger. It configures observability
// (tracing, metrics), idempotency and rate limiting, CORS and security
// headers, health, metrics and docs endpoints, and then mounts the versioned
// API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Admin identification (never rejects; admin routes check it later)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per admin/IP, bypass on replay)
//  10. CORS, security headers and compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, dir handlers.DirectoryService, auth Authenticator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit: the upload cap plus room for multipart framing
	r.Use(limitBody(cfg.MaxUploadBytes + 1<<20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Who is calling
	r.Use(middleware.IdentifyAdmin(func(token string) (string, error) {
		sess, err := auth.Authenticate(token)
		return sess.Username, err
	}))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		IdempotencyLookup(db),
	))

	// 9) Token-bucket rate limiter per admin/IP; writes cost more than reads
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAdminOrIP(),
		middleware.WithWriteCost(cfg.RateWriteCost))
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposed := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotentReplay}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    exposed,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    exposed,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS). Uploaded
	// files never change under a name; listings revalidate by ETag.
	base := strings.TrimSuffix(cfg.APIBasePath, "/")
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		Cache: []middleware.CacheRule{
			{Prefix: MediaPath, Value: middleware.CacheImmutable},
			{Prefix: base + "/auth", Value: middleware.CacheNoStore},
			{Prefix: base + "/", Value: middleware.CacheRevalid},
		},
	}))

	// JSON listings compress well; images are already compressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{MediaPath, "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.Remote.BlobDir != "" {
		r.Static(MediaPath, cfg.Remote.BlobDir)
	}

	h := handlers.New(dir, auth, IdempotencyRecorder(db, cfg.IdempotencyTTL), cfg.MaxUploadBytes)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Directory
		api.GET("/status", h.GetStatus)
		api.GET("/categories", h.ListCategories)
		api.GET("/merchants", h.ListMerchants)
		api.GET("/merchants/top", h.TopMerchants)
		api.GET("/merchants/:id", h.GetMerchant)

		// Reviews and recommendations are open to visitors
		api.GET("/merchants/:id/reviews", h.ListReviews)
		api.POST("/merchants/:id/reviews", h.PostReview)
		api.POST("/recommendations", h.PostRecommendation)

		// Session and preferences
		api.POST("/auth/login", h.Login)
		api.GET("/preferences/theme", h.GetTheme)
		api.PUT("/preferences/theme", h.PutTheme)
	}

	admin := api.Group("", middleware.RequireAdmin())
	{
		admin.POST("/auth/logout", h.Logout)
		admin.GET("/auth/me", h.Me)
		admin.POST("/sync", h.Sync)

		admin.POST("/merchants", h.CreateMerchant)
		admin.PATCH("/merchants/:id", h.UpdateMerchant)
		admin.DELETE("/merchants/:id", h.DeleteMerchant)
		admin.PUT("/merchants/:id/logo", h.UploadLogo)
		admin.DELETE("/merchants/:id/logo", h.RemoveLogo)

		admin.POST("/merchants/:id/menu", h.AddMenuItem)
		admin.PATCH("/merchants/:id/menu/:itemId", h.UpdateMenuItem)
		admin.DELETE("/merchants/:id/menu/:itemId", h.DeleteMenuItem)
		admin.POST("/merchants/:id/images", h.AddMenuImage)
		admin.DELETE("/merchants/:id/images/:imageId", h.DeleteMenuImage)

		admin.GET("/recommendations", h.ListRecommendations)
		admin.PATCH("/recommendations/:id/done", h.ToggleRecommendation)
		admin.DELETE("/recommendations/:id", h.DeleteRecommendation)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
