package search

import (
	"regexp"
	"strings"
)

var (
	blankLineRE = regexp.MustCompile(`\n\s*\n`)
	// A sentence ends at . ! ? or an ellipsis followed by whitespace.
	sentenceEndRE = regexp.MustCompile(`([.!?…]+)\s+`)
)

// SplitPassages breaks a transcript into searchable passages: paragraphs
// first, then sentences. Whitespace inside a passage is collapsed and empty
// passages are dropped.
func SplitPassages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range blankLineRE.Split(text, -1) {
		para = normalizeWhitespace(para)
		if para == "" {
			continue
		}
		marked := sentenceEndRE.ReplaceAllString(para, "$1\x00")
		for _, s := range strings.Split(marked, "\x00") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// normalizeWhitespace collapses runs of spaces, tabs and newlines into a
// single space and trims the ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
