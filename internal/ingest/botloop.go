package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/sources/bot"
)

// BotState is the loop's position in STOPPED -> POLLING -> PROCESSING*
// -> POLLING, with BACKOFF after a failed poll.
type BotState int32

const (
	StateStopped BotState = iota
	StatePolling
	StateProcessing
	StateBackoff
)

func (s BotState) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateBackoff:
		return "backoff"
	default:
		return "stopped"
	}
}

// BotAPI is the slice of the bot gateway the loop uses.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]bot.Update, error)
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
	SendMessage(ctx context.Context, chatID, replyTo int64, text string) error
}

const (
	DefaultPollTimeout = 30 * time.Second
	DefaultBackoff     = 5 * time.Second
	defaultAckText     = "Recording saved."
	duplicateAckText   = "Recording already saved."
)

// BotLoop long-polls the bot gateway and ingests voice and audio messages.
//
// The cursor is advanced to each update's id before the update is handled,
// so a message whose processing fails is skipped rather than retried.
type BotLoop struct {
	API     BotAPI
	Engine  *Engine
	Cursor  CursorStore
	Users   UserResolver
	Clock   Clock
	BackOff backoff.BackOff

	PollTimeout time.Duration
	// Allowed restricts senders when non-empty.
	Allowed map[int64]struct{}
	AckText string
	Log     zerolog.Logger

	state  atomic.Int32
	cursor atomic.Int64
}

// State returns the current loop state.
func (l *BotLoop) State() BotState { return BotState(l.state.Load()) }

// CursorValue returns the highest update id consumed so far.
func (l *BotLoop) CursorValue() int64 { return l.cursor.Load() }

func (l *BotLoop) setState(s BotState) { l.state.Store(int32(s)) }

func (l *BotLoop) defaults() {
	if l.Clock == nil {
		l.Clock = SystemClock{}
	}
	if l.BackOff == nil {
		l.BackOff = backoff.NewConstantBackOff(DefaultBackoff)
	}
	if l.PollTimeout <= 0 {
		l.PollTimeout = DefaultPollTimeout
	}
	if l.Cursor == nil {
		l.Cursor = &MemoryCursorStore{}
	}
	if l.AckText == "" {
		l.AckText = defaultAckText
	}
}

// Run loads the cursor and polls until ctx is cancelled, which returns nil.
// Transport failures wait BackOff.NextBackOff() and poll again; an
// authorization failure ends the loop with an error.
func (l *BotLoop) Run(ctx context.Context) error {
	l.defaults()
	defer l.setState(StateStopped)

	start, err := l.Cursor.Load(ctx)
	if err != nil {
		l.Log.Warn().Err(err).Msg("cursor load failed; starting from zero")
		start = 0
	}
	l.cursor.Store(start)
	botCursor.Set(float64(start))
	l.BackOff.Reset()
	l.Log.Info().Int64("cursor", start).Dur("poll_timeout", l.PollTimeout).Msg("bot loop started")

	for {
		if ctx.Err() != nil {
			l.Log.Info().Int64("cursor", l.cursor.Load()).Msg("bot loop stopped")
			return nil
		}
		l.setState(StatePolling)

		err := l.PollOnce(ctx)
		if err == nil {
			l.BackOff.Reset()
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		if errors.Is(err, bot.ErrUnauthorized) {
			l.Log.Error().Err(err).Msg("bot token rejected; loop stopping")
			return err
		}

		wait := l.BackOff.NextBackOff()
		if wait == backoff.Stop {
			l.Log.Error().Err(err).Msg("backoff exhausted; loop stopping")
			return err
		}
		l.setState(StateBackoff)
		l.Log.Warn().Err(err).Dur("wait", wait).Msg("poll failed; backing off")
		select {
		case <-ctx.Done():
		case <-l.Clock.After(wait):
		}
	}
}

// PollOnce issues one long-poll and handles every returned update in
// ascending id order. Only the poll itself can fail; per-update errors are
// logged and the update is dropped.
func (l *BotLoop) PollOnce(ctx context.Context) error {
	l.defaults()
	updates, err := l.API.GetUpdates(ctx, l.cursor.Load()+1, l.PollTimeout)
	if err != nil {
		botPolls.WithLabelValues("error").Inc()
		return err
	}
	botPolls.WithLabelValues("ok").Inc()

	sort.Slice(updates, func(i, j int) bool { return updates[i].UpdateID < updates[j].UpdateID })
	for _, u := range updates {
		if u.UpdateID <= l.cursor.Load() {
			continue
		}
		l.advance(ctx, u.UpdateID)

		l.setState(StateProcessing)
		p := bot.Parse(u)
		if err := l.handle(ctx, p); err != nil {
			l.Log.Error().Err(err).
				Int64("update_id", u.UpdateID).
				Int64("chat_id", p.Meta().ChatID).
				Msg("update dropped")
		}
	}
	l.setState(StatePolling)
	return nil
}

func (l *BotLoop) advance(ctx context.Context, id int64) {
	l.cursor.Store(id)
	botCursor.Set(float64(id))
	if err := l.Cursor.Save(ctx, id); err != nil {
		l.Log.Warn().Err(err).Int64("cursor", id).Msg("cursor save failed")
	}
}

func (l *BotLoop) allowed(sender int64) bool {
	if len(l.Allowed) == 0 {
		return true
	}
	_, ok := l.Allowed[sender]
	return ok
}

func (l *BotLoop) handle(ctx context.Context, p bot.Payload) error {
	m := p.Meta()
	if !l.allowed(m.SenderID) {
		ingestTotal.WithLabelValues(domain.SourceTelegram, outcomeRejected).Inc()
		l.Log.Info().Int64("sender_id", m.SenderID).Int64("update_id", m.UpdateID).Msg("sender not in allow-list; ignored")
		return nil
	}

	switch v := p.(type) {
	case bot.VoiceMessage:
		name := fmt.Sprintf("voice_%d%s", m.MessageID, extensionFor(v.MimeType, ".ogg"))
		return l.ingest(ctx, m, v.FileID, name, v.MimeType, v.Duration)
	case bot.AudioMessage:
		name := v.FileName
		if name == "" {
			name = fmt.Sprintf("audio_%d%s", m.MessageID, extensionFor(v.MimeType, ".mp3"))
		}
		return l.ingest(ctx, m, v.FileID, name, v.MimeType, v.Duration)
	default:
		ingestTotal.WithLabelValues(domain.SourceTelegram, outcomeUnsupported).Inc()
		l.Log.Debug().Int64("update_id", m.UpdateID).Str("payload", fmt.Sprintf("%T", p)).Msg("payload ignored")
		return nil
	}
}

func (l *BotLoop) ingest(ctx context.Context, m bot.Meta, fileID, filename, mimeType string, d time.Duration) error {
	tr := otel.Tracer("ingest/BotLoop")
	ctx, span := tr.Start(ctx, "HandleAudio",
		trace.WithAttributes(
			attribute.Int64("bot.update_id", m.UpdateID),
			attribute.Int64("bot.chat_id", m.ChatID),
		),
	)
	defer span.End()

	userID, err := l.Users.Resolve(ctx, m.ChatID)
	if err != nil {
		ingestTotal.WithLabelValues(domain.SourceTelegram, outcomeRejected).Inc()
		return err
	}

	data, err := l.API.FetchFile(ctx, fileID)
	if err != nil {
		ingestTotal.WithLabelValues(domain.SourceTelegram, outcomeFetchErr).Inc()
		return fmt.Errorf("fetch file: %w", err)
	}

	at := m.Date
	if at.IsZero() {
		at = l.Clock.Now()
	}
	out, err := l.Engine.Ingest(ctx, Candidate{
		UserID:       userID,
		Source:       domain.SourceTelegram,
		SourceFileID: domain.SourceTelegram + "_" + fileID,
		DeviceID:     domain.SourceTelegram,
		Filename:     filename,
		ContentType:  mimeType,
		DurationMS:   d.Milliseconds(),
		Start:        at,
		End:          at,
		Data:         data,
	})
	if err != nil {
		return err
	}

	text := l.AckText
	if out.Duplicate {
		text = duplicateAckText
	}
	if err := l.API.SendMessage(ctx, m.ChatID, m.MessageID, text); err != nil {
		l.Log.Warn().Err(err).Int64("chat_id", m.ChatID).Msg("acknowledgment failed")
	}
	l.Log.Info().
		Int64("update_id", m.UpdateID).
		Str("user_id", userID).
		Bool("duplicate", out.Duplicate).
		Msg("bot recording ingested")
	return nil
}

func extensionFor(mimeType, fallback string) string {
	switch mimeType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/flac":
		return ".flac"
	default:
		return fallback
	}
}
