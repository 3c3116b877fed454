// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RateLimiter is an in-memory token bucket per client. The default budget
// (0.5 tokens/s, burst 30) allows roughly 30 requests per minute per client.
// Buckets are process-local, so each replica enforces its own budget.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// idleBucketTTL is how long an untouched bucket survives eviction.
	idleBucketTTL = 10 * time.Minute
	// evictEvery is the number of lookups between eviction sweeps.
	evictEvery = 5000
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quickclip",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	},
	[]string{"path"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

type keyFunc func(*gin.Context) string

// ClientID identifies the caller for rate limiting and idempotency scoping.
// There are no accounts, so it is the client IP as resolved by Gin, prefixed
// with "ip:". An upstream middleware may set "clientID" in the context to
// override it.
func ClientID(c *gin.Context) string {
	if s, ok := c.Get("clientID"); ok {
		if id, _ := s.(string); id != "" {
			return "client:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

// KeyByClient keys buckets by ClientID.
func KeyByClient() keyFunc { return ClientID }

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn keyFunc
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int

	retryAfter string
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst. burst <= 0 is treated as 1 and a nil keyFn means ClientID.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = ClientID
	}
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
		retryAfter: strconv.Itoa(secondsPerToken(rps)),
	}
}

// secondsPerToken rounds up the wait for one token.
func secondsPerToken(rps float64) int {
	if rps <= 0 {
		return 1
	}
	return int(math.Ceil(1 / rps))
}

// allow spends a token from key's bucket.
func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= evictEvery {
		rl.evictIdle(now)
		rl.lookups = 0
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	rl.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// evictIdle drops buckets unused for idleBucketTTL. Callers hold rl.mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.seen) >= idleBucketTTL {
			delete(rl.buckets, k)
		}
	}
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay, which does not spend a token.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-client budget. Rejections get 429 with a
// Retry-After header and the usual error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.allow(rl.keyFn(c)) {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		rateLimited.WithLabelValues(path).Inc()

		c.Header("Retry-After", rl.retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
