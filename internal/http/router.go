// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, and rate limiting.
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

	"github.com/tbourn/go-recorder-backend/internal/config"
	"github.com/tbourn/go-recorder-backend/internal/domain"
	_ "github.com/tbourn/go-recorder-backend/internal/docs" // swagger spec registration
	"github.com/tbourn/go-recorder-backend/internal/http/handlers"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/services"
)

// recordingRepoShim adapts the repository free functions to the
// services.RecordingRepo interface.
type recordingRepoShim struct{}

func (recordingRepoShim) CountRecordings(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountRecordings(ctx, db, userID)
}

func (recordingRepoShim) ListRecordingsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Recording, error) {
	return repo.ListRecordingsPage(ctx, db, userID, offset, limit)
}

func (recordingRepoShim) GetRecording(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recording, error) {
	return repo.GetRecording(ctx, db, id, userID)
}

func (recordingRepoShim) GetRecordingBySource(ctx context.Context, db *gorm.DB, userID, sourceFileID string) (*domain.Recording, error) {
	return repo.GetRecordingBySource(ctx, db, userID, sourceFileID)
}

func (recordingRepoShim) ListRecordingsByIDs(ctx context.Context, db *gorm.DB, userID string, ids []string) ([]domain.Recording, error) {
	return repo.ListRecordingsByIDs(ctx, db, userID, ids)
}

func (recordingRepoShim) DeleteRecording(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteRecording(ctx, db, id, userID)
}

func (recordingRepoShim) ListTranscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.Transcription, error) {
	return repo.ListTranscriptions(ctx, db, userID)
}

// StorageResolver is what the router needs from the storage factory: per-user
// provider lookup for reads and validation plus cache invalidation for
// settings changes.
type StorageResolver interface {
	ingest.ProviderResolver
	services.StorageFactory
}

// Deps are the long-lived components built by the command and shared with
// the background ingestion paths.
type Deps struct {
	DB      *gorm.DB
	Storage StorageResolver
	Engine  services.Ingester
	Sync    services.Syncer
	// VendorClient builds a client for a stored vendor credential.
	VendorClient func(acct *domain.VendorAccount) services.VendorClient
	// Bot is nil when no bot token is configured.
	Bot services.BotSupervisor
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Rate limiter (per user/IP; probes exempt)
//  7. Compression (audio excluded)
//  8. CORS and security headers
//
// Body limits are per group: JSON routes get cfg.MaxBodyBytes, the upload
// route gets cfg.MaxUploadBytes plus multipart overhead.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderVendorToken},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	rl.Skip = middleware.SkipPaths("/health", "/metrics")
	r.Use(rl.Handler())

	// 7) Compression; audio is already compressed and served as-is
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/audio$`, `^/metrics$`})))

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
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

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/storage
	recSvc := &services.RecordingService{
		DB:              d.DB,
		Repo:            recordingRepoShim{},
		Storage:         d.Storage,
		Engine:          d.Engine,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		SearchStopwords: cfg.Stopwords,
	}
	trSvc := &services.TranscriptionService{DB: d.DB, MaxRunes: cfg.TranscriptMax}
	setSvc := services.NewSettingsService(d.DB, d.Storage)
	vendSvc := &services.VendorService{DB: d.DB, Sync: d.Sync, Client: d.VendorClient}
	botSvc := &services.BotService{}
	if d.Bot != nil {
		botSvc.Supervisor = d.Bot
	}

	h := handlers.New(handlers.Deps{
		Recordings:     recSvc,
		Transcriptions: trSvc,
		Settings:       setSvc,
		Vendor:         vendSvc,
		Bot:            botSvc,
		Stats: func(ctx context.Context, userID string) (int64, int64, error) {
			n, at, err := repo.RecordingsStats(ctx, d.DB, userID)
			if err != nil || at == nil {
				return n, 0, err
			}
			return n, at.UnixNano(), nil
		},
	})
	h.MaxUploadBytes = cfg.MaxUploadBytes

	// Public API
	base := groupWithPrefix(r, cfg.APIBasePath)

	// Registration is the only call without an identity.
	base.POST("/users", limitBody(cfg.MaxBodyBytes), h.CreateUser)

	authed := base.Group("", middleware.Identity())
	authed.POST("/recordings", limitBody(cfg.MaxUploadBytes+(1<<20)), h.UploadRecording)

	api := authed.Group("", limitBody(cfg.MaxBodyBytes))
	{
		// Recordings
		api.GET("/recordings", h.ListRecordings)
		api.GET("/recordings/export", h.ExportRecordings)
		api.GET("/recordings/search", h.SearchRecordings)
		api.GET("/recordings/:id", h.GetRecording)
		api.DELETE("/recordings/:id", h.DeleteRecording)
		api.GET("/recordings/:id/audio", h.GetRecordingAudio)
		api.PUT("/recordings/:id/transcription", h.PutTranscription)

		// Settings
		api.GET("/settings/storage", h.GetStorageSettings)
		api.PUT("/settings/storage", h.PutStorageSettings)
		api.PUT("/settings/vendor", h.PutVendorSettings)

		// Vendor
		api.POST("/vendor/sync", h.SyncVendor)
		api.GET("/vendor/devices", h.ListDevices)
		api.GET("/vendor/test", h.TestVendor)

		// Bot
		api.POST("/bot/start", h.StartBot)
		api.POST("/bot/stop", h.StopBot)
		api.GET("/bot/status", h.BotStatus)
		api.PUT("/bot/bindings/:chat_id", h.BindChat)
	}
}

// corsMiddleware allows any origin when none is configured, otherwise echoes
// allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderUserID, middleware.HeaderVendorToken, "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
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

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap cause downstream body reads to error.
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
