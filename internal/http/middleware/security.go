// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// SecurityHeaders hardens responses of a JSON API running behind a reverse
// proxy. Clip bodies are private to whoever holds the code, so responses can
// be marked non-cacheable and non-indexable.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	headerExpose   = "Access-Control-Expose-Headers"
	headerHSTS     = "Strict-Transport-Security"
	defaultHSTSAge = 180 * 24 * time.Hour
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore marks responses non-cacheable and asks crawlers not to index.
	NoStore bool
	// EnablePolicy sends Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// ExposeHeaders are readable by browser clients in addition to
	// X-Request-ID.
	ExposeHeaders []string
}

type headerPair struct{ name, value string }

// fixedHeaders is the per-request header set that does not depend on the
// request itself.
func (o SecurityOptions) fixedHeaders() []headerPair {
	hs := []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if o.EnablePolicy {
		hs = append(hs,
			headerPair{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerPair{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	if o.NoStore {
		hs = append(hs,
			headerPair{"Cache-Control", "no-store"},
			headerPair{"Pragma", "no-cache"},
			headerPair{"Expires", "0"},
			headerPair{"X-Robots-Tag", "noindex"},
		)
	}
	return hs
}

func (o SecurityOptions) hstsValue() string {
	age := o.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSAge
	}
	return "max-age=" + strconv.FormatInt(int64(age/time.Second), 10) + "; includeSubDomains; preload"
}

// SecurityHeaders returns a middleware that attaches the configured security
// headers before the handler runs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	fixed := opt.fixedHeaders()
	hsts := opt.hstsValue()
	expose := append([]string{requestIDHeader}, opt.ExposeHeaders...)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, p := range fixed {
			h.Set(p.name, p.value)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set(headerHSTS, hsts)
		}
		exposeHeaders(h, expose)
		c.Next()
	}
}

// exposeHeaders merges names into Access-Control-Expose-Headers, keeping
// whatever an earlier middleware already listed.
func exposeHeaders(h http.Header, names []string) {
	seen := map[string]bool{}
	var out []string
	for _, cur := range strings.Split(h.Get(headerExpose), ",") {
		if cur = strings.TrimSpace(cur); cur != "" && !seen[strings.ToLower(cur)] {
			seen[strings.ToLower(cur)] = true
			out = append(out, cur)
		}
	}
	for _, n := range names {
		if n != "" && !seen[strings.ToLower(n)] {
			seen[strings.ToLower(n)] = true
			out = append(out, n)
		}
	}
	if len(out) > 0 {
		h.Set(headerExpose, strings.Join(out, ", "))
	}
}

// isHTTPS is true for direct TLS and for proxies that set
// X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
