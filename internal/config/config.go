// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage backends, clip limits, rate limiting, event publishing and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/quickclip/internal/sysutil"
)

// Environments recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Store backends recognised by STORE_BACKEND.
const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
	BackendRedis  = "redis"
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
}

// StoreConfig selects and addresses the clip storage backend.
type StoreConfig struct {
	Backend     string // sql|memory|redis
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite file
	DatabaseURL string // Postgres DSN

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// ClipConfig bounds what a client may store and how expired clips are reclaimed.
type ClipConfig struct {
	CodeLength    int
	MinTTL        time.Duration
	MaxTTL        time.Duration
	MaxTextBytes  int
	MaxAttempts   int
	SweepInterval time.Duration
	SweepBatch    int
}

// NATSConfig configures the optional lifecycle event publisher.
type NATSConfig struct {
	URL           string // empty disables publishing
	SubjectPrefix string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful drain budget
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	AppEnv            string        // development|production|testing
	AppVersion        string

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs; defaults to "stdout is a TTY"
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	Store StoreConfig
	Clip  ClipConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyEnabled bool

	NATS NATSConfig

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool { return c.AppEnv == EnvProduction }

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
	env := strings.ToLower(getenv("APP_ENV", EnvDevelopment))

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		AppEnv:            env,
		AppVersion:        getenv("APP_VERSION", "1.0.0"),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", stdoutIsTerminal()),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", env != EnvProduction),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		Store: StoreConfig{
			Backend:       strings.ToLower(getenv("STORE_BACKEND", BackendSQL)),
			DBDriver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DBPath:        getenv("DB_PATH", "quickclip.db"),
			DatabaseURL:   getenv("DATABASE_URL", ""),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			RedisPrefix:   getenv("REDIS_PREFIX", "quickclip"),
		},

		Clip: ClipConfig{
			CodeLength:    getint("CLIP_CODE_LENGTH", 6),
			MinTTL:        getdur("CLIP_MIN_TTL", 30*time.Second),
			MaxTTL:        getdur("CLIP_MAX_TTL", 600*time.Second),
			MaxTextBytes:  getint("CLIP_MAX_TEXT_BYTES", 100000),
			MaxAttempts:   getint("CLIP_MAX_ATTEMPTS", 16),
			SweepInterval: getdur("SWEEP_INTERVAL", 60*time.Second),
			SweepBatch:    getint("SWEEP_BATCH", 500),
		},

		// Rate limiting: 0.5 tokens/s refills 30 requests per minute.
		RateRPS:   getfloat("RATE_RPS", 0.5),
		RateBurst: getint("RATE_BURST", 30),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", env == EnvProduction),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyEnabled: getbool("IDEMPOTENCY_ENABLED", true),

		NATS: NATSConfig{
			URL:           getenv("NATS_URL", ""),
			SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "quickclip.clips"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "quickclip"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Store.DBDriver == "postgresql" {
		cfg.Store.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return cfg, errors.New("APP_ENV must be one of: development, production, testing")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 ||
		cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.Store.Backend {
	case BackendSQL, BackendMemory, BackendRedis:
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sql, memory, redis")
	}
	switch cfg.Store.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Store.Backend == BackendRedis && strings.TrimSpace(cfg.Store.RedisAddr) == "" {
		return cfg, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	if cfg.Store.RedisDB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}

	if cfg.Clip.CodeLength < 4 || cfg.Clip.CodeLength > 16 {
		return cfg, errors.New("CLIP_CODE_LENGTH must be between 4 and 16")
	}
	if cfg.Clip.MinTTL < time.Second || cfg.Clip.MaxTTL < cfg.Clip.MinTTL {
		return cfg, errors.New("CLIP_MIN_TTL must be >= 1s and <= CLIP_MAX_TTL")
	}
	if cfg.Clip.MaxTextBytes <= 0 {
		return cfg, errors.New("CLIP_MAX_TEXT_BYTES must be > 0")
	}
	if cfg.Clip.MaxAttempts < 1 {
		return cfg, errors.New("CLIP_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Clip.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.Clip.SweepBatch < 1 {
		return cfg, errors.New("SWEEP_BATCH must be >= 1")
	}

	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
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

// getdur accepts Go durations ("90s", "10m") and bare integers, read as
// seconds, so CLIP_MAX_TTL=600 means ten minutes.
func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
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

func stdoutIsTerminal() bool { return sysutil.IsTerminal(os.Stdout) }
