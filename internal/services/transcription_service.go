// Package services – TranscriptionService
//
// This file implements TranscriptionService, which attaches transcript text
// to a recording. A recording has at most one transcription; storing a new
// one overwrites the previous text and language.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
)

// TranscriptionService stores transcripts for existing recordings.
type TranscriptionService struct {
	DB *gorm.DB
	// MaxRunes caps stored text; zero means unlimited.
	MaxRunes int
}

// Set stores text (and an optional BCP 47 language tag) for the recording.
// The tag is canonicalized, so "EN-us" is stored as "en-US".
func (s *TranscriptionService) Set(ctx context.Context, userID, recordingID, text, lang string) (*domain.Transcription, error) {
	tr := otel.Tracer("services/TranscriptionService")
	ctx, span := tr.Start(ctx, "Set",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("recording.id", recordingID),
		),
	)
	defer span.End()

	text = normalizeTranscript(text)
	if text == "" {
		return nil, ErrEmptyTranscription
	}
	if s.MaxRunes > 0 {
		if r := []rune(text); len(r) > s.MaxRunes {
			text = string(r[:s.MaxRunes])
		}
	}

	if lang = strings.TrimSpace(lang); lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, ErrInvalidLanguage
		}
		lang = tag.String()
	}

	var out *domain.Transcription
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetRecording(ctx, tx, recordingID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordingNotFound
			}
			return err
		}
		t, err := repo.UpsertTranscription(ctx, tx, recordingID, userID, text, lang)
		if err != nil {
			return err
		}
		out = t
		return repo.TouchRecording(ctx, tx, recordingID, userID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// crlfRE matches CRLF and lone CR line endings.
var crlfRE = regexp.MustCompile(`\r\n?`)

// normalizeTranscript converts line endings to LF and trims the text.
func normalizeTranscript(s string) string {
	return strings.TrimSpace(crlfRE.ReplaceAllString(s, "\n"))
}
