package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests for which no route matched. Raw URLs are never
// used as label values: they can carry clip codes and are unbounded.
const unmatchedPath = "unmatched"

// HTTP instruments. The path label is the registered route, for example
// /api/clips/:code. Clip-level counters live in package clip.
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quickclip",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	// No status label, to keep histogram cardinality down.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quickclip",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quickclip",
			Subsystem: "http",
			Name:      "requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	// Clip bodies top out around the configured text cap (100 KB by default).
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quickclip",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size by method and route.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 7), // 128B..512KiB
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics records request count, latency, in-flight requests and response
// size. Mount promhttp.Handler() separately to expose them.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		start := time.Now()
		c.Next()
		observe(c, time.Since(start))
	}
}

func observe(c *gin.Context, took time.Duration) {
	path := c.FullPath()
	if path == "" {
		path = unmatchedPath
	}
	method := c.Request.Method

	httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
	httpLat.WithLabelValues(method, path).Observe(took.Seconds())
	// Size is -1 when nothing was written.
	if size := c.Writer.Size(); size >= 0 {
		httpRespSize.WithLabelValues(method, path).Observe(float64(size))
	}
}
