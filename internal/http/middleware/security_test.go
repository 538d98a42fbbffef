package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := httptest.NewRecorder()
	securityRouter(SecurityOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Pragma", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_CacheRules(t *testing.T) {
	r := securityRouter(SecurityOptions{
		NoStore: true,
		Cache: []CacheRule{
			{Prefix: "/media/", Value: CacheImmutable},
			{Prefix: "/api/v1/auth", Value: CacheNoStore},
			{Prefix: "/api/v1", Value: CacheRevalid},
		},
	})

	cases := []struct {
		path, want string
		pragma     bool
	}{
		{"/media/logo-1-ab12cd34.png", CacheImmutable, false},
		{"/api/v1/auth/me", CacheNoStore, true},
		{"/api/v1/merchants", CacheRevalid, false},
		{"/api/v1", CacheRevalid, false},
		{"/mediafoo", CacheNoStore, true},
		{"/health", CacheNoStore, true},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if got := w.Header().Get("Cache-Control"); got != tc.want {
				t.Fatalf("Cache-Control = %q; want %q", got, tc.want)
			}
			if got := w.Header().Get("Pragma") == "no-cache"; got != tc.pragma {
				t.Fatalf("Pragma set = %v; want %v", got, tc.pragma)
			}
		})
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	r := securityRouter(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		EnablePolicy: true,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}

	// Plain HTTP never gets HSTS.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS on plain HTTP: %q", got)
	}
}

func TestSecurityHeaders_DefaultHSTSMaxAge(t *testing.T) {
	r := securityRouter(SecurityOptions{EnableHSTS: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestUnderPrefix(t *testing.T) {
	cases := []struct {
		path, prefix string
		want         bool
	}{
		{"/media/a.png", "/media", true},
		{"/media", "/media/", true},
		{"/mediax", "/media", false},
		{"/anything", "", true},
		{"/api/v1/auth/login", "/api/v1/auth", true},
	}
	for _, tc := range cases {
		if got := underPrefix(tc.path, tc.prefix); got != tc.want {
			t.Fatalf("underPrefix(%q, %q) = %v", tc.path, tc.prefix, got)
		}
	}
}
