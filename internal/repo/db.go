// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file opens the recorder catalog and migrates its
// schema.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// catalogPragmas are applied to every connection opened by OpenSQLite.
// WAL lets catalog reads proceed while the bot loop and vendor syncs insert.
var catalogPragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// catalogModels lists every table owned by the recorder, in creation order.
var catalogModels = []any{
	&domain.User{},
	&domain.Recording{},
	&domain.Transcription{},
	&domain.StorageConfig{},
	&domain.VendorAccount{},
	&domain.ChannelBinding{},
	&domain.BotCursor{},
}

// OpenSQLite opens (or creates) the catalog database at path.
// Query tracing is attached through the OpenTelemetry GORM plugin; spans are
// dropped by the global no-op provider unless tracing is enabled.
func OpenSQLite(path string) (*gorm.DB, error) {
	// The driver reports a missing directory as "out of memory (14)".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	for _, p := range catalogPragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates every table used by the recorder,
// including the (user_id, source_file_id) unique index that backs
// import deduplication.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(catalogModels...)
}
