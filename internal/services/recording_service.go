// Package services – RecordingService
//
// This file implements RecordingService, which owns the user-facing side of
// the recording catalog: paginated listing, retrieval of rows and audio
// bytes, deletion of blob plus row, manual uploads routed through the
// ingestion engine, exports and transcript search.
//
// Observability: public methods are OpenTelemetry-instrumented with the
// user and recording identifiers as span attributes.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/export"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/search"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// RecordingRepo defines the repository contract required by
// RecordingService.
type RecordingRepo interface {
	CountRecordings(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListRecordingsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Recording, error)
	GetRecording(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recording, error)
	GetRecordingBySource(ctx context.Context, db *gorm.DB, userID, sourceFileID string) (*domain.Recording, error)
	// ListRecordingsByIDs returns all of the user's recordings when ids is empty.
	ListRecordingsByIDs(ctx context.Context, db *gorm.DB, userID string, ids []string) ([]domain.Recording, error)
	DeleteRecording(ctx context.Context, db *gorm.DB, id, userID string) error
	ListTranscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.Transcription, error)
}

// Ingester is the slice of the ingestion engine used for manual uploads.
type Ingester interface {
	Ingest(ctx context.Context, c ingest.Candidate) (*ingest.Outcome, error)
}

// UploadSourcePrefix prefixes the content hash in upload source file ids.
const UploadSourcePrefix = "upload_"

// RecordingService coordinates catalog reads, blob access and uploads.
type RecordingService struct {
	DB      *gorm.DB
	Repo    RecordingRepo
	Storage ingest.ProviderResolver
	Engine  Ingester

	// MaxUploadBytes caps manual uploads; zero disables the check.
	MaxUploadBytes int64
	// SearchStopwords are ignored by transcript search.
	SearchStopwords []string
}

// SearchHit is one transcript search match with its recording.
type SearchHit struct {
	Recording domain.Recording `json:"recording"`
	Snippet   string           `json:"snippet"`
	Score     float64          `json:"score"`
}

// ListPage returns a page of the user's recordings, newest first, and the
// total count. Invalid page values fall back to defaults.
func (s *RecordingService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Recording, int64, error) {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := s.Repo.CountRecordings(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Recording{}, 0, nil
	}
	items, err := s.Repo.ListRecordingsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns one recording with its transcription.
func (s *RecordingService) Get(ctx context.Context, userID, id string) (*domain.Recording, error) {
	rec, err := s.Repo.GetRecording(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Audio returns the recording, its blob bytes and their content type.
func (s *RecordingService) Audio(ctx context.Context, userID, id string) (*domain.Recording, []byte, string, error) {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "Audio",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("recording.id", id),
		),
	)
	defer span.End()

	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, "", err
	}
	p, err := s.provider(ctx, userID, rec)
	if err != nil {
		return nil, nil, "", err
	}
	data, err := p.Download(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, "", fmt.Errorf("%w: %v", ErrBlobUnavailable, err)
		}
		return nil, nil, "", err
	}
	return rec, data, contentTypeFor(rec.Filename), nil
}

// Delete removes the blob and then the row (the transcription cascades).
// A blob that is already gone does not block the row delete; any other
// storage failure leaves the row in place so the call can be retried.
func (s *RecordingService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("recording.id", id),
		),
	)
	defer span.End()

	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	p, err := s.provider(ctx, userID, rec)
	switch {
	case errors.Is(err, ErrBlobUnavailable):
		log.Warn().Str("recording_id", id).Str("backend", rec.StorageBackend).Msg("deleting row whose blob backend is no longer configured")
	case err != nil:
		return err
	default:
		if err := p.Delete(ctx, rec.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	if err := s.Repo.DeleteRecording(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordingNotFound
		}
		return err
	}
	return nil
}

// Upload ingests a manually uploaded file. The source file id is derived
// from the content hash, so uploading the same bytes twice yields the
// existing recording with Duplicate set.
func (s *RecordingService) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*ingest.Outcome, error) {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("upload.bytes", len(data)),
		),
	)
	defer span.End()

	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	sourceID := UploadSourcePrefix + digest

	// Skip the blob write when the bytes were already imported. The engine
	// still resolves races through the unique index.
	if existing, err := s.Repo.GetRecordingBySource(ctx, s.DB, userID, sourceID); err == nil {
		return &ingest.Outcome{Recording: existing, Duplicate: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "upload_" + digest[:12]
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(filename)
	}

	return s.Engine.Ingest(ctx, ingest.Candidate{
		UserID:       userID,
		Source:       domain.SourceUpload,
		SourceFileID: sourceID,
		DeviceID:     domain.SourceUpload,
		Filename:     filename,
		ContentType:  contentType,
		Checksum:     digest,
		Data:         data,
	})
}

// Export renders all of the user's recordings, oldest first, in format f.
func (s *RecordingService) Export(ctx context.Context, userID string, w io.Writer, f export.Format, opt export.Options) error {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "Export",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("export.format", string(f)),
		),
	)
	defer span.End()

	recs, err := s.Repo.ListRecordingsByIDs(ctx, s.DB, userID, nil)
	if err != nil {
		return err
	}
	return export.Render(w, f, recs, opt)
}

// Search ranks the user's transcripts against q and returns up to k hits,
// one per recording.
func (s *RecordingService) Search(ctx context.Context, userID, q string, k int) ([]SearchHit, error) {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("k", k),
		),
	)
	defer span.End()

	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}

	ts, err := s.Repo.ListTranscriptions(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	docs := make([]search.Document, 0, len(ts))
	for _, t := range ts {
		docs = append(docs, search.Document{RecordingID: t.RecordingID, Text: t.Text})
	}
	idx := search.NewTranscriptIndex(docs, search.WithStopwords(s.SearchStopwords))

	results := idx.TopK(q, k)
	span.SetAttributes(attribute.Int("search.hits", len(results)))
	if len(results) == 0 {
		return []SearchHit{}, nil
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.RecordingID)
	}
	recs, err := s.Repo.ListRecordingsByIDs(ctx, s.DB, userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Recording, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		rec, ok := byID[r.RecordingID]
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{Recording: rec, Snippet: r.Snippet, Score: r.Score})
	}
	return hits, nil
}

// provider resolves the storage provider holding rec's blob.
func (s *RecordingService) provider(ctx context.Context, userID string, rec *domain.Recording) (storage.Provider, error) {
	p, err := s.Storage.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Backend() != rec.StorageBackend {
		return nil, ErrBlobUnavailable
	}
	return p, nil
}

// audioTypes covers recorder formats missing from minimal mime.types files.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

func contentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
