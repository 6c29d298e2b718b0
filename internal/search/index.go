// Package search provides a small, deterministic, concurrency-safe
// in-memory index over recording transcripts.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for passage filtering and stop words
//   - Unicode-aware tokenization with case folding (golang.org/x/text)
//   - Immutable after construction, so safe for concurrent use
//   - Deterministic ordering for equal scores
//
// Transcripts are split into passages (see SplitPassages) and each passage
// keeps the id of its recording. Scoring is the Jaccard similarity between
// the query token set and a passage's token set: |Q ∩ P| / |Q ∪ P|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Document is one transcript to index.
type Document struct {
	RecordingID string
	Text        string
}

// Result is a ranked passage with the recording it came from.
type Result struct {
	RecordingID string  `json:"recording_id"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
}

// Index is the read interface implemented by transcript indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minPassageRunes int
	stopwords       map[string]struct{}
	maxPassages     int
	// distinct keeps only the best passage per recording.
	distinct bool
}

func defaultConfig() config {
	return config{
		minPassageRunes: 3,
		distinct:        true,
	}
}

// WithMinPassageRunes drops passages shorter than n runes. Negative values
// are ignored.
func WithMinPassageRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minPassageRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxPassages caps the number of indexed passages.
func WithMaxPassages(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPassages = n
		}
	}
}

// WithAllPassages returns every matching passage instead of the best one
// per recording.
func WithAllPassages() Option {
	return func(c *config) { c.distinct = false }
}

// ----------------------------------------------------------------------------
// Implementation

type passage struct {
	recordingID string
	text        string
	tokens      map[string]struct{}
}

type index struct {
	cfg      config
	passages []passage
}

// NewTranscriptIndex builds an Index from docs. Documents with empty text
// contribute nothing.
func NewTranscriptIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	out := &index{cfg: cfg}
	for _, d := range docs {
		for _, p := range SplitPassages(d.Text) {
			if cfg.minPassageRunes > 0 && utf8.RuneCountInString(p) < cfg.minPassageRunes {
				continue
			}
			toks := tokenize(p, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			out.passages = append(out.passages, passage{recordingID: d.RecordingID, text: p, tokens: toks})
			if cfg.maxPassages > 0 && len(out.passages) >= cfg.maxPassages {
				return out
			}
		}
	}
	return out
}

func (i *index) Len() int { return len(i.passages) }

// TopK returns up to k best-matching passages. k <= 0 means 10.
func (i *index) TopK(q string, k int) []Result {
	if len(i.passages) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	buf := make([]Result, 0, minInt(k*4, len(i.passages)))
	for _, p := range i.passages {
		over := overlap(qTokens, p.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(p.tokens) - over)
		buf = append(buf, Result{RecordingID: p.recordingID, Snippet: p.text, Score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if la, lb := utf8.RuneCountInString(buf[a].Snippet), utf8.RuneCountInString(buf[b].Snippet); la != lb {
			return la < lb
		}
		if buf[a].RecordingID != buf[b].RecordingID {
			return buf[a].RecordingID < buf[b].RecordingID
		}
		return buf[a].Snippet < buf[b].Snippet
	})

	if i.cfg.distinct {
		seen := make(map[string]struct{}, len(buf))
		uniq := buf[:0]
		for _, r := range buf {
			if _, ok := seen[r.RecordingID]; ok {
				continue
			}
			seen[r.RecordingID] = struct{}{}
			uniq = append(uniq, r)
		}
		buf = uniq
	}

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k:k]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// folder is not safe for concurrent use; fold allocates one per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
