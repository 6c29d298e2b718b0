// Package handlers exposes the REST endpoints of the recorder backend.
//
// Handlers are transport-thin: they validate input, call application
// services through the interfaces below, and translate results into HTTP
// responses (including conditional responses).
package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/export"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/services"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
)

//
// Service contracts (context-aware)
//

// RecordingService covers the recording catalog.
type RecordingService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Recording, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.Recording, error)
	Audio(ctx context.Context, userID, id string) (*domain.Recording, []byte, string, error)
	Delete(ctx context.Context, userID, id string) error
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*ingest.Outcome, error)
	Export(ctx context.Context, userID string, w io.Writer, f export.Format, opt export.Options) error
	Search(ctx context.Context, userID, q string, k int) ([]services.SearchHit, error)
}

// TranscriptionService attaches transcripts to recordings.
type TranscriptionService interface {
	Set(ctx context.Context, userID, recordingID, text, lang string) (*domain.Transcription, error)
}

// SettingsService manages users and integration settings.
type SettingsService interface {
	CreateUser(ctx context.Context, email string) (*domain.User, error)
	StorageConfig(ctx context.Context, userID string) (*domain.StorageConfig, error)
	SetStorage(ctx context.Context, userID, backend string, params map[string]any) (*domain.StorageConfig, error)
	SetVendorAccount(ctx context.Context, userID string, in services.VendorAccountInput) error
	BindChat(ctx context.Context, userID string, chatID int64) error
}

// VendorService runs vendor operations for the caller.
type VendorService interface {
	SyncNow(ctx context.Context, userID string) (*ingest.SyncReport, error)
	Devices(ctx context.Context, userID string) ([]vendor.Device, error)
	Test(ctx context.Context, userID string) (bool, error)
}

// BotService controls the bot ingestion loop.
type BotService interface {
	Start(ctx context.Context) (bool, error)
	Stop() error
	Status() ingest.BotStatus
}

// RecordingStats feeds list ETags; nil disables conditional responses.
type RecordingStats func(ctx context.Context, userID string) (count int64, maxUpdatedUnix int64, err error)

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	recSvc  RecordingService
	trSvc   TranscriptionService
	setSvc  SettingsService
	vendSvc VendorService
	botSvc  BotService
	stats   RecordingStats

	// MaxUploadBytes bounds multipart uploads read into memory.
	MaxUploadBytes int64
}

// Deps bundles the services injected into New.
type Deps struct {
	Recordings     RecordingService
	Transcriptions TranscriptionService
	Settings       SettingsService
	Vendor         VendorService
	Bot            BotService
	Stats          RecordingStats
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		recSvc:         d.Recordings,
		trSvc:          d.Transcriptions,
		setSvc:         d.Settings,
		vendSvc:        d.Vendor,
		botSvc:         d.Bot,
		stats:          d.Stats,
		MaxUploadBytes: 64 << 20,
	}
}

// userID returns the caller resolved by middleware.Identity.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
