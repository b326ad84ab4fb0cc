// Command server runs the lesson generation HTTP API.
//
// Startup sequence: load .env (best effort), parse configuration, configure
// logging, initialize OpenTelemetry, open the SQLite store and migrate,
// build the provider chain from configured credentials, start the realtime
// feed, mount routes, and serve until SIGINT/SIGTERM triggers a graceful
// shutdown.
package main

// @title           Pro Lessons API
// @version         1.0
// @description     Lesson generation service: submit an outline, content is generated asynchronously with provider fallback, and clients follow progress over a realtime change feed.
//
// @contact.name    API Support
//
// @license.name    MIT
//
// @BasePath        /api/v1
//
// @tag.name        Lessons
// @tag.description Lesson creation, listing and the SSE change feed
// @tag.name        System
// @tag.description Health and provider credential probes

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/unknown-lord/Pro-lessons/docs"
	"github.com/unknown-lord/Pro-lessons/internal/config"
	"github.com/unknown-lord/Pro-lessons/internal/domain"
	httpapi "github.com/unknown-lord/Pro-lessons/internal/http"
	"github.com/unknown-lord/Pro-lessons/internal/observability"
	"github.com/unknown-lord/Pro-lessons/internal/provider"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
	"github.com/unknown-lord/Pro-lessons/internal/repo"
	"github.com/unknown-lord/Pro-lessons/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; absence of .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Provider chain: adapters exist only when their credential does.
	var primary, secondary provider.Generator
	if cfg.HasPrimaryKey() {
		primary = provider.NewGemini(cfg.Providers.GeminiAPIKey, cfg.Providers.GeminiModel, "", cfg.Providers.Timeout)
	}
	if cfg.HasSecondaryKey() {
		secondary = provider.NewGroq(cfg.Providers.GroqAPIKey, cfg.Providers.GroqModel, "", cfg.Providers.Timeout)
	}
	log.Info().
		Bool("primary", primary != nil).
		Bool("secondary", secondary != nil).
		Msg("provider chain configured (mock is always last)")

	// Realtime feed: Redis fan-out across instances when configured,
	// in-process loopback otherwise.
	hub := realtime.NewHub()
	var bus realtime.Bus
	if cfg.Redis.Addr != "" {
		bus, err = realtime.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Channel, hub)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis feed setup failed")
		}
	} else {
		bus = realtime.NewLocalBus(hub)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("feed start failed")
	}
	defer func() { _ = bus.Close() }()

	// Reconciliation: lessons stuck in "generating" (crashed process, lost
	// goroutine) are failed after Sweep.After.
	if cfg.Sweep.Every > 0 {
		go runSweep(ctx, db, bus, cfg.Sweep)
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, hub, bus, primary, secondary, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// runSweep periodically fails lessons stuck in "generating" and publishes a
// change event for each, so clients watching the feed see the transition.
func runSweep(ctx context.Context, db *gorm.DB, bus realtime.Bus, sc config.SweepConfig) {
	ticker := time.NewTicker(sc.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := repo.SweepStuckLessons(ctx, db, sc.After)
			if err != nil {
				log.Warn().Err(err).Msg("sweep failed")
				continue
			}
			for _, id := range ids {
				_ = bus.Publish(ctx, realtime.Event{
					Type:     realtime.EventLessonUpdated,
					LessonID: id,
					Status:   domain.StatusFailed,
				})
			}
			if len(ids) > 0 {
				log.Info().Int("count", len(ids)).Msg("stuck lessons failed by sweep")
			}
		}
	}
}
