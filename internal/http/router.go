// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
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

	"github.com/unknown-lord/Pro-lessons/internal/config"
	"github.com/unknown-lord/Pro-lessons/internal/domain"
	"github.com/unknown-lord/Pro-lessons/internal/http/handlers"
	"github.com/unknown-lord/Pro-lessons/internal/http/middleware"
	"github.com/unknown-lord/Pro-lessons/internal/provider"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
	"github.com/unknown-lord/Pro-lessons/internal/repo"
	"github.com/unknown-lord/Pro-lessons/internal/services"
)

// lessonRepoShim adapts the repository free functions to the interfaces
// expected by LessonService and GenerationService. This keeps services
// decoupled from the concrete repo package while reusing existing functions.
type lessonRepoShim struct{}

// CreateLesson proxies repo.CreateLesson.
func (lessonRepoShim) CreateLesson(ctx context.Context, db *gorm.DB, outline, title string) (*domain.Lesson, error) {
	return repo.CreateLesson(ctx, db, outline, title)
}

// GetLesson proxies repo.GetLesson.
func (lessonRepoShim) GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error) {
	return repo.GetLesson(ctx, db, id)
}

// ListLessons proxies repo.ListLessons.
func (lessonRepoShim) ListLessons(ctx context.Context, db *gorm.DB) ([]domain.Lesson, error) {
	return repo.ListLessons(ctx, db)
}

// CountLessons proxies repo.CountLessons (pagination support).
func (lessonRepoShim) CountLessons(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountLessons(ctx, db)
}

// ListLessonsPage proxies repo.ListLessonsPage (pagination support).
func (lessonRepoShim) ListLessonsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lesson, error) {
	return repo.ListLessonsPage(ctx, db, offset, limit)
}

// MarkLessonGenerated proxies repo.MarkLessonGenerated (terminal transition).
func (lessonRepoShim) MarkLessonGenerated(ctx context.Context, db *gorm.DB, id, content string, trace domain.GenerationTrace) error {
	return repo.MarkLessonGenerated(ctx, db, id, content, trace)
}

// MarkLessonFailed proxies repo.MarkLessonFailed (terminal transition).
func (lessonRepoShim) MarkLessonFailed(ctx context.Context, db *gorm.DB, id string, trace domain.GenerationTrace) error {
	return repo.MarkLessonFailed(ctx, db, id, trace)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, bus realtime.Bus, primary, secondary provider.Generator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (credential and API-key headers
	// are masked by the logger's defaults)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per caller
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/providers/feed
	genSvc := services.NewGenerationService(db, lessonRepoShim{}, primary, secondary, bus)
	lessonSvc := services.NewLessonService(db, lessonRepoShim{}, genSvc, bus)
	h := handlers.New(lessonSvc, db, hub, cfg.HasPrimaryKey(), cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Lesson writes + probe
		api.POST("/lessons", h.CreateLesson)
		api.GET("/status", h.Status)

		// Change feed: no gzip, responses must flush per event
		api.GET("/lessons/events", h.StreamEvents)

		// Lesson reads (compressed; lesson content can be large)
		reads := api.Group("", gzip.Gzip(gzip.DefaultCompression))
		reads.GET("/lessons", h.ListLessons)
		reads.GET("/lessons/:id", h.GetLesson)
	}
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
