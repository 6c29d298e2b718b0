package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/services"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testRecordingRepo struct{}

func (testRecordingRepo) CountRecordings(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountRecordings(ctx, db, userID)
}

func (testRecordingRepo) ListRecordingsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Recording, error) {
	return repo.ListRecordingsPage(ctx, db, userID, offset, limit)
}

func (testRecordingRepo) GetRecording(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recording, error) {
	return repo.GetRecording(ctx, db, id, userID)
}

func (testRecordingRepo) GetRecordingBySource(ctx context.Context, db *gorm.DB, userID, sourceFileID string) (*domain.Recording, error) {
	return repo.GetRecordingBySource(ctx, db, userID, sourceFileID)
}

func (testRecordingRepo) ListRecordingsByIDs(ctx context.Context, db *gorm.DB, userID string, ids []string) ([]domain.Recording, error) {
	return repo.ListRecordingsByIDs(ctx, db, userID, ids)
}

func (testRecordingRepo) DeleteRecording(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteRecording(ctx, db, id, userID)
}

func (testRecordingRepo) ListTranscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.Transcription, error) {
	return repo.ListTranscriptions(ctx, db, userID)
}

// ---------- in-memory storage ----------

type memProvider struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memProvider) Backend() string { return storage.BackendLocal }

func (m *memProvider) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (m *memProvider) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (m *memProvider) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type staticResolver struct{ p storage.Provider }

func (s staticResolver) ForUser(context.Context, string) (storage.Provider, error) { return s.p, nil }

type nopFactory struct{}

func (nopFactory) Build(_ context.Context, sc *domain.StorageConfig) (storage.Provider, error) {
	if sc.Backend != storage.BackendLocal && sc.Backend != storage.BackendS3 {
		return nil, fmt.Errorf("%w: unknown backend %q", storage.ErrInvalidConfig, sc.Backend)
	}
	return &memProvider{blobs: map[string][]byte{}}, nil
}

func (nopFactory) Invalidate(string) {}

// ---------- fakes for the remaining services ----------

type fakeVendorSvc struct {
	report  *ingest.SyncReport
	err     error
	devices []vendor.Device
	ok      bool
}

type fakeBotSvc struct {
	mu      sync.Mutex
	running bool
	err     error
}

func (f *fakeBotSvc) Start(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.running {
		return false, nil
	}
	f.running = true
	return true, nil
}

func (f *fakeBotSvc) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.running = false
	return nil
}

func (f *fakeBotSvc) Status() ingest.BotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return ingest.BotStatus{Running: true, State: ingest.StatePolling.String()}
	}
	return ingest.BotStatus{State: ingest.StateStopped.String()}
}

// ---------- router under test ----------

type testEnv struct {
	db     *gorm.DB
	r      *gin.Engine
	user   string
	vendor *fakeVendorSvc
	bot    *fakeBotSvc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	user := uuid.NewString()
	if err := db.Create(&domain.User{ID: user, Email: "h@example.com", CreatedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	res := staticResolver{p: &memProvider{blobs: map[string][]byte{}}}
	recSvc := &services.RecordingService{
		DB:      db,
		Repo:    testRecordingRepo{},
		Storage: res,
		Engine:  &ingest.Engine{DB: db, Storage: res},
	}
	env := &testEnv{db: db, user: user, vendor: &fakeVendorSvc{}, bot: &fakeBotSvc{}}

	h := New(Deps{
		Recordings:     recSvc,
		Transcriptions: &services.TranscriptionService{DB: db},
		Settings:       services.NewSettingsService(db, nopFactory{}),
		Vendor:         env.vendor,
		Bot:            env.bot,
		Stats: func(ctx context.Context, userID string) (int64, int64, error) {
			n, at, err := repo.RecordingsStats(ctx, db, userID)
			if err != nil || at == nil {
				return n, 0, err
			}
			return n, at.UnixNano(), nil
		},
	})

	r := gin.New()
	r.POST("/users", h.CreateUser)
	api := r.Group("", middleware.Identity())
	api.GET("/recordings", h.ListRecordings)
	api.POST("/recordings", h.UploadRecording)
	api.GET("/recordings/export", h.ExportRecordings)
	api.GET("/recordings/search", h.SearchRecordings)
	api.GET("/recordings/:id", h.GetRecording)
	api.DELETE("/recordings/:id", h.DeleteRecording)
	api.GET("/recordings/:id/audio", h.GetRecordingAudio)
	api.PUT("/recordings/:id/transcription", h.PutTranscription)
	api.GET("/settings/storage", h.GetStorageSettings)
	api.PUT("/settings/storage", h.PutStorageSettings)
	api.PUT("/settings/vendor", h.PutVendorSettings)
	api.POST("/vendor/sync", h.SyncVendor)
	api.GET("/vendor/devices", h.ListDevices)
	api.GET("/vendor/test", h.TestVendor)
	api.POST("/bot/start", h.StartBot)
	api.POST("/bot/stop", h.StopBot)
	api.GET("/bot/status", h.BotStatus)
	api.PUT("/bot/bindings/:chat_id", h.BindChat)
	env.r = r
	return env
}

func (f *fakeVendorSvc) SyncNow(context.Context, string) (*ingest.SyncReport, error) {
	return f.report, f.err
}

func (f *fakeVendorSvc) Devices(context.Context, string) ([]vendor.Device, error) {
	return f.devices, f.err
}

func (f *fakeVendorSvc) Test(context.Context, string) (bool, error) {
	return f.ok, f.err
}
