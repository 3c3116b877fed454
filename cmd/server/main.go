// Command server runs the QuickClip HTTP API.
//
// @title       QuickClip API
// @version     1.0.0
// @description Share short-lived text snippets through short codes.
// @BasePath    /api
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/config"
	"github.com/tbourn/quickclip/internal/events"
	httpapi "github.com/tbourn/quickclip/internal/http"
	"github.com/tbourn/quickclip/internal/observability"
	"github.com/tbourn/quickclip/internal/repo"
	"github.com/tbourn/quickclip/internal/services"
	"github.com/tbourn/quickclip/internal/sysutil"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.OTEL.ServiceName, cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Build{
		Version:     cfg.AppVersion,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.Store.DBDriver, cfg.Store.DBPath, cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	backend, closeBackend, err := openBackend(ctx, cfg.Store, db)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := clip.NewStore(backend, clip.Options{
		CodeLength:   cfg.Clip.CodeLength,
		MinTTL:       cfg.Clip.MinTTL,
		MaxTTL:       cfg.Clip.MaxTTL,
		MaxTextBytes: cfg.Clip.MaxTextBytes,
		MaxAttempts:  cfg.Clip.MaxAttempts,
	})

	var pub events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return err
		}
		pub = np
		log.Info().Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("publishing clip events to NATS")
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("close event publisher")
		}
	}()
	store.Hooks = events.Hooks(pub)

	var idemDB *gorm.DB
	if cfg.IdempotencyEnabled {
		idemDB = db
	}
	svc := services.NewClipService(idemDB, store)

	sweeper := clip.NewSweeper(store, cfg.Clip.SweepInterval, cfg.Clip.SweepBatch, clip.Task{
		Name: "idempotency",
		Run: func(ctx context.Context, now time.Time) (int, error) {
			return repo.DeleteExpiredIdempotency(ctx, db, now, cfg.Clip.SweepBatch)
		},
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	httpapi.RegisterRoutes(r, idemDB, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.AppEnv).
			Str("backend", cfg.Store.Backend).
			Str("base_path", cfg.APIBasePath).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openBackend builds the configured record store backend. The returned close
// func releases any connection owned by the backend.
func openBackend(ctx context.Context, sc config.StoreConfig, db *gorm.DB) (clip.Backend, func(), error) {
	noop := func() {}
	switch sc.Backend {
	case config.BackendMemory:
		log.Warn().Msg("memory backend: clips are lost on restart and not shared between replicas")
		return clip.NewMemoryBackend(), noop, nil
	case config.BackendRedis:
		rdb, err := repo.NewRedisClient(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return repo.NewRedisBackend(rdb, sc.RedisPrefix), closeRedis(rdb), nil
	default:
		return repo.NewClipBackend(db), noop, nil
	}
}

func closeRedis(rdb *redis.Client) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
}
