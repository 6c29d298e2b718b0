// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Transcription model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// UpsertTranscription stores the transcription for a recording, replacing
// text and language when one already exists (one per recording).
func UpsertTranscription(ctx context.Context, db *gorm.DB, recordingID, userID, text, language string) (*domain.Transcription, error) {
	now := time.Now().UTC()
	t := &domain.Transcription{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		UserID:      userID,
		Text:        text,
		Language:    language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recording_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "language", "updated_at"}),
		}).
		Create(t).Error
	if err != nil {
		return nil, err
	}
	return GetTranscription(ctx, db, recordingID, userID)
}

// GetTranscription returns the transcription of a recording owned by userID.
func GetTranscription(ctx context.Context, db *gorm.DB, recordingID, userID string) (*domain.Transcription, error) {
	var t domain.Transcription
	err := db.WithContext(ctx).
		Where("recording_id = ? AND user_id = ?", recordingID, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTranscriptions returns every transcription owned by userID.
func ListTranscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.Transcription, error) {
	var out []domain.Transcription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
