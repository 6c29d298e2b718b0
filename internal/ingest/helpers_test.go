package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/sources/bot"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

func newIngestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// newFileDB is used where goroutines write concurrently; shared-cache
// memory databases report table locks instead of waiting.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type staticProvider struct{ p storage.Provider }

func (s staticProvider) ForUser(context.Context, string) (storage.Provider, error) { return s.p, nil }

func newLocal(t *testing.T) *storage.LocalProvider {
	t.Helper()
	p, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	return p
}

type failingProvider struct{ storage.Provider }

func (failingProvider) Upload(context.Context, string, []byte, string) (string, error) {
	return "", fmt.Errorf("%w: disk full", storage.ErrStorageFailure)
}

type staticUser string

func (s staticUser) Resolve(context.Context, int64) (string, error) { return string(s), nil }

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After fires immediately and records the requested delay.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type pollResult struct {
	updates []bot.Update
	err     error
}

type sentMsg struct {
	chatID, replyTo int64
	text            string
}

// fakeBotAPI serves scripted poll results, then blocks like an idle long
// poll until the context ends.
type fakeBotAPI struct {
	mu       sync.Mutex
	script   []pollResult
	offsets  []int64
	files    map[string][]byte
	fetchErr map[string]error
	sent     []sentMsg
}

func newFakeBotAPI(script ...pollResult) *fakeBotAPI {
	return &fakeBotAPI{script: script, files: map[string][]byte{}, fetchErr: map[string]error{}}
}

func (f *fakeBotAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]bot.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.script) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := f.script[0]
	f.script = f.script[1:]
	f.mu.Unlock()
	return r.updates, r.err
}

func (f *fakeBotAPI) FetchFile(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[fileID]; err != nil {
		return nil, err
	}
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeBotAPI) SendMessage(_ context.Context, chatID, replyTo int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{chatID: chatID, replyTo: replyTo, text: text})
	return nil
}

func (f *fakeBotAPI) Offsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.offsets...)
}

func (f *fakeBotAPI) Sent() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func voiceUpdate(id, sender, chat int64, fileID string, secs int, date int64) bot.Update {
	return bot.Update{
		UpdateID: id,
		Message: &bot.Message{
			MessageID: id * 10,
			From:      &bot.User{ID: sender},
			Chat:      bot.Chat{ID: chat},
			Date:      date,
			Voice:     &bot.Voice{FileID: fileID, Duration: secs, MimeType: "audio/ogg"},
		},
	}
}

func textUpdate(id, sender, chat int64, text string) bot.Update {
	return bot.Update{
		UpdateID: id,
		Message: &bot.Message{
			MessageID: id * 10,
			From:      &bot.User{ID: sender},
			Chat:      bot.Chat{ID: chat},
			Date:      1700000000,
			Text:      text,
		},
	}
}

func newTestLoop(t *testing.T, db *gorm.DB, api *fakeBotAPI, clock *fakeClock) *BotLoop {
	t.Helper()
	return &BotLoop{
		API:     api,
		Engine:  &Engine{DB: db, Storage: staticProvider{newLocal(t)}, Clock: clock},
		Cursor:  &MemoryCursorStore{},
		Users:   staticUser("u1"),
		Clock:   clock,
		Log:     zerolog.Nop(),
		AckText: "saved",
	}
}

func seedUser(t *testing.T, db *gorm.DB, id string, created time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.User{ID: id, Email: id + "@example.com", CreatedAt: created}).Error)
}
