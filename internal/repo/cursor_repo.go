// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the bot long-poll checkpoint (one row
// per bot name).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// LoadCursor returns the last consumed update id for bot, or 0 when no
// checkpoint has been written yet.
func LoadCursor(ctx context.Context, db *gorm.DB, bot string) (int64, error) {
	var c domain.BotCursor
	err := db.WithContext(ctx).Where("bot = ?", bot).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.UpdateID, nil
}

// SaveCursor writes the checkpoint for bot. The stored value never moves
// backwards.
func SaveCursor(ctx context.Context, db *gorm.DB, bot string, updateID int64) error {
	c := &domain.BotCursor{Bot: bot, UpdateID: updateID, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bot"}},
			DoUpdates: clause.Assignments(map[string]any{
				"update_id":  gorm.Expr("MAX(update_id, excluded.update_id)"),
				"updated_at": c.UpdatedAt,
			}),
		}).
		Create(c).Error
}
