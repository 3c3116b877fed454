// Package httpapi wires the HTTP transport (Gin) to the clip service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, log redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/quickclip/docs"
	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/config"
	"github.com/tbourn/quickclip/internal/http/handlers"
	"github.com/tbourn/quickclip/internal/http/middleware"
	"github.com/tbourn/quickclip/internal/repo"
)

const (
	metricsPath = "/metrics"
	docsPath    = "/docs/index.html"

	// bodyHeadroom covers the JSON envelope around the clip text.
	bodyHeadroom = 16 << 10
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. db holds idempotency records and may be nil, in which case
// idempotent replay detection is skipped.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access log: redacted in production, verbose otherwise
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (except /metrics)
//  8. CORS and security headers
//
// The clip API group additionally runs the idempotency validator and then the
// rate limiter, so replays bypass the token bucket and probes on /health or
// /metrics are never throttled.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc handlers.ClipService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())

	if cfg.IsProduction() {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
			CodePattern: clip.CodePattern(cfg.Clip.CodeLength),
		}))
	} else {
		r.Use(middleware.Logger())
	}

	r.Use(middleware.Recovery())
	r.Use(limitBody(bodyLimit(cfg.Clip.MaxTextBytes)))

	r.Use(middleware.Metrics())
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))

	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       true,
		EnablePolicy:  true,
		ExposeHeaders: []string{middleware.HeaderIdempotentReplay, "Retry-After"},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	meta := &handlers.Meta{Version: cfg.AppVersion, Environment: cfg.AppEnv}
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = cfg.AppVersion
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		meta.DocsPath = docsPath
	}
	r.GET("/", meta.Root)
	r.GET("/health", meta.Health)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClient())
	h := handlers.New(svc, cfg.Clip.CodeLength)

	limit := rl.Handler()
	// Replay detection runs on create only, ahead of the limiter.
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db, cfg))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/clips", idem, limit, h.CreateClip)
		api.GET("/clips/:code", limit, h.GetClip)
		api.DELETE("/clips/:code", limit, h.DeleteClip)
	}
}

// idempotencyLookup reports whether a live idempotency record exists. It is
// nil when replay detection is disabled or there is no database.
func idempotencyLookup(db *gorm.DB, cfg config.Config) middleware.IdempotencyLookup {
	if db == nil || !cfg.IdempotencyEnabled {
		return nil
	}
	return func(ctx context.Context, clientID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, clientID, key, now)
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

// corsMiddleware builds the CORS posture. With no allowlist every origin is
// accepted without credentials; otherwise only listed origins are echoed.
func corsMiddleware(cc config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey, "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", middleware.HeaderIdempotentReplay, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(cc.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, so plain curl and probes see it.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = cc.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// bodyLimit sizes the request cap from the largest accepted clip text.
func bodyLimit(maxTextBytes int) int64 {
	if maxTextBytes <= 0 {
		maxTextBytes = clip.DefaultOptions().MaxTextBytes
	}
	// Escaped JSON may be larger than the decoded text.
	return int64(maxTextBytes)*2 + bodyHeadroom
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
