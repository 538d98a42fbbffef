// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the local snapshot database, the remote backend, admin accounts,
// rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Remote backend kinds, derived from which settings are present.
const (
	RemoteREST    = "rest"
	RemoteSQL     = "sql"
	RemoteOffline = "offline"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	// Headers are sent with every export, e.g. a hosted collector's API key.
	Headers map[string]string // OTEL_EXPORTER_OTLP_HEADERS "k=v,k2=v2"
}

// RemoteConfig describes the backend the directory syncs with. None of it is
// required: without credentials the directory runs offline.
type RemoteConfig struct {
	URL                 string        // REMOTE_URL, PostgREST-style base URL
	APIKey              string        // REMOTE_API_KEY
	DSN                 string        // REMOTE_DSN, sqlite path or postgres DSN
	Bucket              string        // STORAGE_BUCKET
	BlobDir             string        // BLOB_DIR, filesystem object store root
	PublicBaseURL       string        // PUBLIC_BASE_URL, used for filesystem blob URLs
	Timeout             time.Duration // REMOTE_TIMEOUT, per remote call
	PageSize            int           // SYNC_PAGE_SIZE
	RecommendationLimit int           // RECOMMENDATION_LIMIT
	WriteMode           string        // WRITE_MODE: remote|local
}

// Kind reports which backend the settings select.
func (r RemoteConfig) Kind() string {
	switch {
	case r.URL != "" && r.APIKey != "":
		return RemoteREST
	case r.DSN != "":
		return RemoteSQL
	default:
		return RemoteOffline
	}
}

// AdminAccount is one entry of ADMIN_ACCOUNTS.
type AdminAccount struct {
	Username     string
	PasswordHash string // bcrypt
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Local snapshot
	DBPath string // SQLite path

	Remote RemoteConfig
	Admins []AdminAccount

	// Uploads
	MaxUploadBytes int64 // MAX_UPLOAD_BYTES

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)
	// RateWriteCost is the number of tokens a POST, PUT, PATCH or DELETE
	// takes from the bucket. Reads take one.
	RateWriteCost int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath: getenv("DB_PATH", "directory.db"),

		Remote: RemoteConfig{
			URL:                 strings.TrimRight(strings.TrimSpace(getenv("REMOTE_URL", "")), "/"),
			APIKey:              strings.TrimSpace(getenv("REMOTE_API_KEY", "")),
			DSN:                 strings.TrimSpace(getenv("REMOTE_DSN", "")),
			Bucket:              getenv("STORAGE_BUCKET", "menu-images"),
			BlobDir:             strings.TrimSpace(getenv("BLOB_DIR", "")),
			PublicBaseURL:       strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			Timeout:             getdur("REMOTE_TIMEOUT", 15*time.Second),
			PageSize:            getint("SYNC_PAGE_SIZE", 1000),
			RecommendationLimit: getint("RECOMMENDATION_LIMIT", 1000),
			WriteMode:           strings.ToLower(getenv("WRITE_MODE", "remote")),
		},

		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 5<<20)),

		// Rate limiting
		RateRPS:       getfloat("RATE_RPS", 5.0),
		RateBurst:     getint("RATE_BURST", 10),
		RateWriteCost: getint("RATE_WRITE_COST", 2),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "merchant-directory"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Headers:     parseHeaders(getenv("OTEL_EXPORTER_OTLP_HEADERS", "")),
		},
	}

	admins, err := parseAdmins(getenv("ADMIN_ACCOUNTS", ""))
	if err != nil {
		return cfg, err
	}
	cfg.Admins = admins

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Remote.WriteMode != "local" {
		cfg.Remote.WriteMode = "remote"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Remote.URL != "" {
		u, err := url.Parse(cfg.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return cfg, errors.New("REMOTE_URL must be an http(s) URL")
		}
	}
	if cfg.Remote.Timeout <= 0 {
		return cfg, errors.New("REMOTE_TIMEOUT must be > 0")
	}
	if cfg.Remote.PageSize < 1 {
		return cfg, errors.New("SYNC_PAGE_SIZE must be >= 1")
	}
	if cfg.Remote.RecommendationLimit < 1 {
		return cfg, errors.New("RECOMMENDATION_LIMIT must be >= 1")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.RateWriteCost < 1 || cfg.RateWriteCost > cfg.RateBurst {
		return cfg, errors.New("RATE_WRITE_COST must be between 1 and RATE_BURST")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// parseAdmins reads "user:bcrypt-hash,user2:hash2". A username may appear more
// than once with different passwords.
func parseAdmins(s string) ([]AdminAccount, error) {
	var out []AdminAccount
	for _, entry := range splitCSV(s) {
		user, hash, ok := strings.Cut(entry, ":")
		user, hash = strings.TrimSpace(user), strings.TrimSpace(hash)
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("ADMIN_ACCOUNTS entry %q must be user:bcrypt-hash", entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("ADMIN_ACCOUNTS entry for %q: %w", user, err)
		}
		out = append(out, AdminAccount{Username: user, PasswordHash: hash})
	}
	return out, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// parseHeaders reads "k=v" pairs separated by commas. Entries without "=" or
// with an empty key are skipped. Returns nil when nothing is set.
func parseHeaders(s string) map[string]string {
	var out map[string]string
	for _, entry := range splitCSV(s) {
		k, v, ok := strings.Cut(entry, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
