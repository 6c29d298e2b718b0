// Package export renders recordings and their transcripts as JSON, plain
// text, SRT or WebVTT.
//
// Subtitle cues run from a recording's start to start+duration. By default
// the cue clock is the UTC time of day of each recording; with
// Options.Relative it is measured from the earliest recording.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// Format names an export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatTXT  Format = "txt"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

// ErrUnknownFormat is returned for formats other than json, txt, srt, vtt.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat normalizes s; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatTXT, FormatSRT, FormatVTT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatTXT:
		return "text/plain; charset=utf-8"
	case FormatSRT:
		return "application/x-subrip; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// Options tune rendering.
type Options struct {
	Relative bool
}

// Render writes recs in format f. Recordings are ordered by start time.
func Render(w io.Writer, f Format, recs []domain.Recording, opt Options) error {
	sorted := make([]domain.Recording, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	switch f {
	case FormatJSON:
		return renderJSON(w, sorted)
	case FormatTXT:
		return renderTXT(w, sorted)
	case FormatSRT:
		return renderCues(w, sorted, opt, false)
	case FormatVTT:
		return renderCues(w, sorted, opt, true)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// SRTTimestamp formats d as HH:MM:SS,mmm.
func SRTTimestamp(d time.Duration) string { return stamp(d, ',') }

// VTTTimestamp formats d as HH:MM:SS.mmm.
func VTTTimestamp(d time.Duration) string { return stamp(d, '.') }

func stamp(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}

type jsonItem struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	DeviceID      string    `json:"device_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationMS    int64     `json:"duration_ms"`
	Transcription string    `json:"transcription,omitempty"`
	Language      string    `json:"language,omitempty"`
}

func renderJSON(w io.Writer, recs []domain.Recording) error {
	items := make([]jsonItem, 0, len(recs))
	for _, r := range recs {
		it := jsonItem{
			ID:         r.ID,
			Filename:   r.Filename,
			DeviceID:   r.DeviceID,
			StartTime:  r.StartTime.UTC(),
			EndTime:    r.EndTime.UTC(),
			DurationMS: r.DurationMS,
		}
		if r.Transcription != nil {
			it.Transcription = r.Transcription.Text
			it.Language = r.Transcription.Language
		}
		items = append(items, it)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func renderTXT(w io.Writer, recs []domain.Recording) error {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s (%s)\n", r.StartTime.UTC().Format("2006-01-02 15:04:05"), r.Filename, VTTTimestamp(time.Duration(r.DurationMS)*time.Millisecond))
		b.WriteString(cueText(r))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderCues(w io.Writer, recs []domain.Recording, opt Options, vtt bool) error {
	var b strings.Builder
	format := SRTTimestamp
	if vtt {
		format = VTTTimestamp
		b.WriteString("WEBVTT\n\n")
	}

	var origin time.Time
	if opt.Relative && len(recs) > 0 {
		origin = recs[0].StartTime.UTC()
	}

	for i, r := range recs {
		start := cueOffset(r.StartTime.UTC(), origin, opt.Relative)
		end := start + time.Duration(r.DurationMS)*time.Millisecond

		if !vtt {
			fmt.Fprintf(&b, "%d\n", i+1)
		}
		fmt.Fprintf(&b, "%s --> %s\n", format(start), format(end))
		b.WriteString(cueText(r))
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func cueOffset(start, origin time.Time, relative bool) time.Duration {
	if relative {
		return start.Sub(origin)
	}
	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return start.Sub(midnight)
}

// cueText is the transcript, or the filename when none exists. Blank lines
// would end a cue early, so they are collapsed.
func cueText(r domain.Recording) string {
	text := ""
	if r.Transcription != nil {
		text = strings.TrimSpace(r.Transcription.Text)
	}
	if text == "" {
		return "[" + r.Filename + "]"
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
