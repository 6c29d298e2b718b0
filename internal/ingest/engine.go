// Package ingest is the recording ingestion core: it turns candidates from
// the vendor API, the bot channel and manual uploads into stored blobs and
// deduplicated Recording rows, and runs the bot long-poll loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// ProviderResolver yields the storage provider configured for a user.
type ProviderResolver interface {
	ForUser(ctx context.Context, userID string) (storage.Provider, error)
}

// Candidate is a recording descriptor plus its bytes, as produced by a
// source adapter.
type Candidate struct {
	UserID       string
	Source       string
	SourceFileID string
	DeviceID     string
	Filename     string
	ContentType  string
	Checksum     string
	DurationMS   int64
	Start        time.Time
	// End defaults to Start+DurationMS when zero.
	End  time.Time
	Data []byte
}

// Outcome reports what Ingest did. Duplicate is true when the (user,
// source file id) pair was already imported; Recording is then the existing
// row.
type Outcome struct {
	Recording *domain.Recording
	Duplicate bool
}

// Engine stores a candidate's bytes and inserts its Recording row. Double
// imports are prevented by the unique index on (user_id, source_file_id),
// never by an application-level check.
type Engine struct {
	DB      *gorm.DB
	Storage ProviderResolver
	Clock   Clock
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock.Now()
}

// Ingest uploads c.Data then inserts the row with insert-or-ignore. A blob
// uploaded before a failed (non-duplicate) insert is left in place.
func (e *Engine) Ingest(ctx context.Context, c Candidate) (*Outcome, error) {
	tr := otel.Tracer("ingest/Engine")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("user.id", c.UserID),
			attribute.String("ingest.source", c.Source),
			attribute.String("ingest.source_file_id", c.SourceFileID),
			attribute.Int("ingest.bytes", len(c.Data)),
		),
	)
	defer span.End()

	out, outcome, err := e.ingest(ctx, c)
	ingestTotal.WithLabelValues(c.Source, outcome).Inc()
	span.SetAttributes(attribute.String("ingest.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return out, err
}

func (e *Engine) ingest(ctx context.Context, c Candidate) (*Outcome, string, error) {
	if c.UserID == "" || c.SourceFileID == "" {
		return nil, outcomeRejected, ErrInvalidCandidate
	}
	if c.Start.IsZero() {
		c.Start = e.now()
	}
	if c.End.IsZero() {
		c.End = c.Start.Add(time.Duration(c.DurationMS) * time.Millisecond)
	}

	p, err := e.Storage.ForUser(ctx, c.UserID)
	if err != nil {
		return nil, outcomeStorageErr, fmt.Errorf("resolve storage: %w", err)
	}

	key := storage.BuildKey(c.Source, c.UserID, c.SourceFileID, c.Start, c.Filename)
	if _, err := p.Upload(ctx, key, c.Data, c.ContentType); err != nil {
		return nil, outcomeStorageErr, fmt.Errorf("upload %s: %w", key, err)
	}

	rec := &domain.Recording{
		UserID:         c.UserID,
		DeviceID:       c.DeviceID,
		SourceFileID:   c.SourceFileID,
		Filename:       c.Filename,
		DurationMS:     c.DurationMS,
		StartTime:      c.Start.UTC(),
		EndTime:        c.End.UTC(),
		SizeBytes:      int64(len(c.Data)),
		Checksum:       c.Checksum,
		StorageBackend: p.Backend(),
		StorageKey:     key,
		ImportedAt:     e.now(),
	}
	inserted, err := repo.InsertRecording(ctx, e.DB, rec)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "ingest").
			Str("user_id", c.UserID).
			Str("storage_key", key).
			Msg("recording insert failed after upload; blob left in place")
		return nil, outcomeDBErr, fmt.Errorf("insert recording: %w", err)
	}
	if inserted {
		return &Outcome{Recording: rec}, outcomeImported, nil
	}

	existing, err := repo.GetRecordingBySource(ctx, e.DB, c.UserID, c.SourceFileID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Deleted between the conflict and the read.
			return &Outcome{Duplicate: true}, outcomeDuplicate, nil
		}
		return nil, outcomeDBErr, fmt.Errorf("load existing recording: %w", err)
	}
	if existing.StorageKey != key {
		if derr := p.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("component", "ingest").Str("storage_key", key).Msg("cleanup of duplicate blob failed")
		}
	}
	return &Outcome{Recording: existing, Duplicate: true}, outcomeDuplicate, nil
}
