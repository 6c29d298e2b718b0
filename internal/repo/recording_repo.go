// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recording
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: persistence and query composition only.
//
// Error semantics:
//   - When a recording is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - InsertRecording never reports a (user_id, source_file_id) conflict as an
//     error; it reports inserted=false instead. The unique index is the only
//     guard against concurrent double imports, so callers must not replace it
//     with a read-then-insert check.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertRecording inserts rec with insert-or-ignore semantics keyed on
// (user_id, source_file_id). Missing ID, ImportedAt and SchemaVersion are
// filled in.
//
// It returns inserted=true when a new row was written, and inserted=false
// (with a nil error) when a row for the same pair already exists.
func InsertRecording(ctx context.Context, db *gorm.DB, rec *domain.Recording) (inserted bool, err error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}
	if rec.SchemaVersion == "" {
		rec.SchemaVersion = domain.SchemaVersion
	}

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "source_file_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		// Some drivers ignore DO NOTHING for secondary unique indexes.
		if IsDuplicate(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetRecordingBySource fetches the recording imported for (userID, sourceFileID).
func GetRecordingBySource(ctx context.Context, db *gorm.DB, userID, sourceFileID string) (*domain.Recording, error) {
	var r domain.Recording
	err := db.WithContext(ctx).
		Where("user_id = ? AND source_file_id = ?", userID, sourceFileID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecording fetches a recording by id and owner, with its transcription.
func GetRecording(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recording, error) {
	var r domain.Recording
	err := db.WithContext(ctx).
		Preload("Transcription").
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRecordings returns the number of recordings owned by userID.
func CountRecordings(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Recording{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListRecordingsPage returns a page of a user's recordings, newest start
// time first, with transcriptions preloaded.
func ListRecordingsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Recording, error) {
	var out []domain.Recording
	err := db.WithContext(ctx).
		Preload("Transcription").
		Where("user_id = ?", userID).
		Order("start_time desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRecordingsByIDs returns the user's recordings with the given ids in
// ascending start time order. An empty ids slice selects all of them.
func ListRecordingsByIDs(ctx context.Context, db *gorm.DB, userID string, ids []string) ([]domain.Recording, error) {
	var out []domain.Recording
	q := db.WithContext(ctx).
		Preload("Transcription").
		Where("user_id = ?", userID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	err := q.Order("start_time asc, id asc").Find(&out).Error
	return out, err
}

// KnownSourceFileIDs reports which of the given source ids the user has
// already imported. It is a read-only shortcut used to skip downloads; it
// must not be used to decide whether an insert is allowed.
func KnownSourceFileIDs(ctx context.Context, db *gorm.DB, userID string, sourceIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}
	var found []string
	err := db.WithContext(ctx).
		Model(&domain.Recording{}).
		Where("user_id = ? AND source_file_id IN ?", userID, sourceIDs).
		Pluck("source_file_id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}

// DeleteRecording removes a recording owned by userID. The transcription is
// removed by the FK cascade. Returns ErrNotFound when nothing was deleted.
func DeleteRecording(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Recording{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsDuplicate reports whether err is a unique-constraint violation. It
// checks gorm's translated sentinel first and then falls back to driver
// message matching, since glebarez/sqlite often returns plain-text errors.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// TouchRecording bumps updated_at so list ETags change when dependent rows
// (the transcription) change.
func TouchRecording(ctx context.Context, db *gorm.DB, id, userID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Recording{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
