// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// IdempotencyValidator checks the Idempotency-Key header on POST /clips and
// marks requests whose key the calling client already used, so a retry is
// answered with the original clip and does not spend a rate-limit token.
// Keys are scoped per ClientID.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey carries the client's idempotency key.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is "true" on responses that replay an earlier
	// request.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	defaultIdemMaxLen = 200
)

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var idemKeyChars = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the client already completed a request with the
// same key.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyIdemReplay)
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes key validation. Zero values mean a 200 byte limit
// and the character set [A-Za-z0-9._~-:].
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

func (o IdempotencyOptions) accepts(key string) bool {
	maxLen, pat := o.MaxLen, o.Pattern
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	if pat == nil {
		pat = idemKeyChars
	}
	return len(key) <= maxLen && pat.MatchString(key)
}

// IdempotencyLookup reports whether (clientID, key) still maps to a live
// result at now.
type IdempotencyLookup func(ctx context.Context, clientID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator rejects malformed keys with 400 and flags replays
// found by lookup. Requests without the header pass through untouched. A
// failing lookup counts as a miss; the clip service still resolves the key
// itself when it creates the clip.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if !opts.accepts(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil {
			c.Next()
			return
		}
		if seen, err := lookup(c.Request.Context(), ClientID(c), key, time.Now().UTC()); err == nil && seen {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
