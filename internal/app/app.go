// Package app assembles the long-lived components shared by the commands:
// database, storage factory, ingestion engine, vendor sync and the bot
// supervisor.
package app

import (
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/config"
	"github.com/tbourn/go-recorder-backend/internal/domain"
	httpapi "github.com/tbourn/go-recorder-backend/internal/http"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/services"
	"github.com/tbourn/go-recorder-backend/internal/sources/bot"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
	"github.com/tbourn/go-recorder-backend/internal/storage"
	"github.com/tbourn/go-recorder-backend/internal/sysutil"
)

// BotName keys the persisted long-poll cursor.
const BotName = "recorder"

// App holds the wired components.
type App struct {
	Cfg     config.Config
	DB      *gorm.DB
	Storage *storage.Factory
	Engine  *ingest.Engine
	Sync    *ingest.VendorSync
	// Bot is nil when BOT_TOKEN is empty.
	Bot *ingest.BotSupervisor
}

// Open opens and migrates the database, then wires the components.
func Open(cfg config.Config) (*App, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(cfg, db), nil
}

// New wires the components over an open database.
func New(cfg config.Config, db *gorm.DB) *App {
	a := &App{Cfg: cfg, DB: db}
	a.Storage = storage.NewFactory(db, cfg.Storage.LocalRoot, cfg.Storage.CacheTTL)
	a.Engine = &ingest.Engine{DB: db, Storage: a.Storage}
	a.Sync = &ingest.VendorSync{
		DB:          db,
		Engine:      a.Engine,
		Client:      func(acct *domain.VendorAccount) ingest.VendorAPI { return a.VendorClient(acct) },
		PageSize:    cfg.Vendor.PageSize,
		Concurrency: cfg.Vendor.Concurrency,
	}
	if cfg.Bot.Token != "" {
		a.Bot = ingest.NewBotSupervisor(a.botLoop())
	}
	return a
}

// VendorClient builds a client for a stored credential. The account's base
// URL wins over the configured default.
func (a *App) VendorClient(acct *domain.VendorAccount) *vendor.Client {
	base := sysutil.FirstNonEmpty(acct.BaseURL, a.Cfg.Vendor.BaseURL)
	return vendor.New(base, acct.Token, a.Cfg.Vendor.Timeout)
}

func (a *App) botLoop() *ingest.BotLoop {
	bc := a.Cfg.Bot
	loop := &ingest.BotLoop{
		// The HTTP timeout must cover the long-poll wait.
		API:         bot.New(bc.BaseURL, bc.Token, bc.PollTimeout+bc.RequestTimeout),
		Engine:      a.Engine,
		Users:       &ingest.BindingResolver{DB: a.DB, FallbackToFirstUser: bc.FallbackUser},
		BackOff:     backoff.NewConstantBackOff(bc.Backoff),
		PollTimeout: bc.PollTimeout,
		Log:         log.With().Str("component", "bot").Logger(),
	}
	if bc.PersistCursor {
		loop.Cursor = &ingest.DBCursorStore{DB: a.DB, Bot: BotName}
	}
	if len(bc.AllowedSenders) > 0 {
		loop.Allowed = make(map[int64]struct{}, len(bc.AllowedSenders))
		for _, id := range bc.AllowedSenders {
			loop.Allowed[id] = struct{}{}
		}
	}
	return loop
}

// RouterDeps exposes the components to the HTTP layer.
func (a *App) RouterDeps() httpapi.Deps {
	d := httpapi.Deps{
		DB:           a.DB,
		Storage:      a.Storage,
		Engine:       a.Engine,
		Sync:         a.Sync,
		VendorClient: func(acct *domain.VendorAccount) services.VendorClient { return a.VendorClient(acct) },
	}
	// Keep the interface nil when the bot is disabled.
	if a.Bot != nil {
		d.Bot = a.Bot
	}
	return d
}

// Close stops the bot and releases the database.
func (a *App) Close() error {
	if a.Bot != nil {
		a.Bot.Stop()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
