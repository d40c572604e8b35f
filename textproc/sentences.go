package textproc

import (
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// SplitSentences splits text on sentence-ending punctuation and trims each
// piece. Empty pieces are dropped.
func SplitSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// ContainsKhmer reports whether text contains any character in the Khmer
// Unicode block (U+1780 through U+17FF).
func ContainsKhmer(text string) bool {
	for _, r := range text {
		if r >= 0x1780 && r <= 0x17FF {
			return true
		}
	}
	return false
}
