// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders: baseline hardening headers for a JSON
// API that also serves uploaded merchant images, plus per-path cache rules.
// Listings revalidate against their ETag, session endpoints are never cached,
// and uploaded files are immutable because every upload gets a fresh name.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheRule sets Cache-Control on responses whose path is Prefix or lies
// below it.
type CacheRule struct {
	Prefix string
	Value  string
}

// Common Cache-Control values.
const (
	CacheNoStore   = "no-store"
	CacheRevalid   = "no-cache"
	CacheImmutable = "public, max-age=31536000, immutable"
)

// SecurityOptions configures SecurityHeaders.
//
// HSTS is emitted only for HTTPS requests and only when EnableHSTS is set;
// HSTSMaxAge defaults to 180 days. Cache rules are checked in order and the
// first match wins. NoStore applies to requests no rule matches.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
	Cache        []CacheRule
}

// SecurityHeaders returns a middleware that always sets
// X-Content-Type-Options, X-Frame-Options and Referrer-Policy, and optionally
// Permissions-Policy, Cache-Control and Strict-Transport-Security.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			// Uploads come from a file picker; nothing needs device access.
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if v := cacheControl(opt, c.Request.URL.Path); v != "" {
			h.Set("Cache-Control", v)
			if v == CacheNoStore {
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

func cacheControl(opt SecurityOptions, path string) string {
	for _, r := range opt.Cache {
		if underPrefix(path, r.Prefix) {
			return r.Value
		}
	}
	if opt.NoStore {
		return CacheNoStore
	}
	return ""
}

// underPrefix matches whole path segments: "/media" covers "/media/x.png"
// but not "/mediafoo".
func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// isHTTPS reports whether the request used TLS directly or arrived through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
