package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// testRecordingRepo implements RecordingRepo over the repo package, the
// same way the router wires it.
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

// memProvider is an in-memory storage.Provider.
type memProvider struct {
	backend string

	mu      sync.Mutex
	blobs   map[string][]byte
	uploads int
	delErr  error
}

func newMemProvider() *memProvider {
	return &memProvider{backend: storage.BackendLocal, blobs: map[string][]byte{}}
}

func (m *memProvider) Backend() string { return m.backend }

func (m *memProvider) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
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
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.blobs, key)
	return nil
}

func (m *memProvider) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

type staticResolver struct{ p storage.Provider }

func (s staticResolver) ForUser(context.Context, string) (storage.Provider, error) { return s.p, nil }

func newRecordingService(t *testing.T) (*RecordingService, *memProvider) {
	t.Helper()
	db := newSvcDB(t)
	p := newMemProvider()
	res := staticResolver{p: p}
	return &RecordingService{
		DB:      db,
		Repo:    testRecordingRepo{},
		Storage: res,
		Engine:  &ingest.Engine{DB: db, Storage: res},
	}, p
}

func seedUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	u := &domain.User{ID: id, Email: id + "@example.com", CreatedAt: time.Now().UTC()}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}
