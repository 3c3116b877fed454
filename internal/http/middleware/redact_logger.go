// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger used by the router.
// A clip code is the only thing standing between a caller and the clip's
// text, so codes are treated like bearer credentials: they never reach the
// logs, whether they arrive in the path, the query string or a header.
//
// Request and response bodies are never logged.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra header names whose values are replaced with
// "[REDACTED]". Authorization, Cookie and Set-Cookie are always masked.
//
// CodePattern matches clip codes in raw paths, query strings and header
// values. When nil, no code scrubbing happens beyond route templating.
type RedactOptions struct {
	MaskHeaders []string
	CodePattern *regexp.Regexp
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// RedactingLogger returns a Gin middleware that logs one structured line per
// request with identifiers scrubbed.
//
// The path is the matched route template (e.g. /api/clips/:code), so a code
// given as a path parameter never appears. Unmatched requests fall back to the
// raw path with codes replaced. Level follows status: INFO, WARN for 4xx,
// ERROR for 5xx.
//
// Like Logger, it attaches a request-scoped logger for LoggerFrom, carrying
// only the request and client IDs.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	codeRE := opts.CodePattern

	redact := func(s string) string {
		if s == "" {
			return s
		}
		// UUIDs first so the looser patterns never see their segments.
		s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
		if codeRE != nil {
			s = codeRE.ReplaceAllString(s, "[REDACTED:code]")
		}
		return s
	}

	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		l := log.With().
			Str("request_id", requestIDOf(c)).
			Str("client_id", ClientID(c)).
			Logger()
		c.Set(loggerKey, &l)

		safeQuery := redact(c.Request.URL.RawQuery)
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		// FullPath is only known once routing has run.
		path := c.FullPath()
		if path == "" {
			path = redactSegments(c.Request.URL.Path, codeRE)
		}

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("client_id", ClientID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}

// redactSegments replaces every path segment that is entirely a code.
func redactSegments(p string, codeRE *regexp.Regexp) string {
	if codeRE == nil || p == "" {
		return p
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if loc := codeRE.FindStringIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
			segs[i] = "[REDACTED:code]"
		}
	}
	return strings.Join(segs, "/")
}
