package bot

import "time"

// Meta carries the routing fields common to every payload.
type Meta struct {
	UpdateID  int64
	MessageID int64
	ChatID    int64
	SenderID  int64
	Date      time.Time
}

// Payload is the closed set of message shapes the ingestion loop
// distinguishes: TextMessage, VoiceMessage, AudioMessage and Unknown.
type Payload interface {
	Meta() Meta
	isPayload()
}

type TextMessage struct {
	M    Meta
	Text string
}

type VoiceMessage struct {
	M        Meta
	FileID   string
	Duration time.Duration
	MimeType string
	Size     int64
}

type AudioMessage struct {
	M        Meta
	FileID   string
	FileName string
	Duration time.Duration
	MimeType string
	Size     int64
}

// Unknown covers updates without a message and message kinds that are not
// handled (photos, stickers, edits).
type Unknown struct {
	M Meta
}

func (p TextMessage) Meta() Meta  { return p.M }
func (p VoiceMessage) Meta() Meta { return p.M }
func (p AudioMessage) Meta() Meta { return p.M }
func (p Unknown) Meta() Meta      { return p.M }

func (TextMessage) isPayload()  {}
func (VoiceMessage) isPayload() {}
func (AudioMessage) isPayload() {}
func (Unknown) isPayload()      {}

// Parse resolves a raw update into a Payload. Voice wins over audio when a
// message carries both.
func Parse(u Update) Payload {
	m := Meta{UpdateID: u.UpdateID}
	msg := u.Message
	if msg == nil {
		return Unknown{M: m}
	}
	m.MessageID = msg.MessageID
	m.ChatID = msg.Chat.ID
	m.Date = time.Unix(msg.Date, 0).UTC()
	if msg.From != nil {
		m.SenderID = msg.From.ID
	}

	switch {
	case msg.Voice != nil && msg.Voice.FileID != "":
		return VoiceMessage{
			M:        m,
			FileID:   msg.Voice.FileID,
			Duration: time.Duration(msg.Voice.Duration) * time.Second,
			MimeType: msg.Voice.MimeType,
			Size:     msg.Voice.FileSize,
		}
	case msg.Audio != nil && msg.Audio.FileID != "":
		return AudioMessage{
			M:        m,
			FileID:   msg.Audio.FileID,
			FileName: msg.Audio.FileName,
			Duration: time.Duration(msg.Audio.Duration) * time.Second,
			MimeType: msg.Audio.MimeType,
			Size:     msg.Audio.FileSize,
		}
	case msg.Text != "":
		return TextMessage{M: m, Text: msg.Text}
	default:
		return Unknown{M: m}
	}
}
