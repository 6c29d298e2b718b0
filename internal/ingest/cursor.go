package ingest

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/repo"
)

// CursorStore keeps the highest consumed bot update id between loop runs.
type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, updateID int64) error
}

// MemoryCursorStore lives for the process only; a restart begins at zero.
type MemoryCursorStore struct {
	mu sync.Mutex
	v  int64
}

func (m *MemoryCursorStore) Load(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, nil
}

func (m *MemoryCursorStore) Save(_ context.Context, updateID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if updateID > m.v {
		m.v = updateID
	}
	return nil
}

// DBCursorStore persists the cursor in bot_cursors under Bot.
type DBCursorStore struct {
	DB  *gorm.DB
	Bot string
}

func (s *DBCursorStore) Load(ctx context.Context) (int64, error) {
	return repo.LoadCursor(ctx, s.DB, s.Bot)
}

func (s *DBCursorStore) Save(ctx context.Context, updateID int64) error {
	return repo.SaveCursor(ctx, s.DB, s.Bot, updateID)
}
