package search

import (
	"strings"

	"github.com/chansereyvath/lessonsearch/textproc"
)

const (
	excerptMaxLength     = 300
	excerptMinSentence   = 10
	excerptFallbackCount = 3
)

// ExtractRelevantExcerpt pulls the sentences of fullText most related to
// query, accumulated up to maxLength runes. Sentences shorter than ten
// characters are ignored. When nothing matches the opening sentences are
// used, and as a last resort the text is hard-truncated.
func ExtractRelevantExcerpt(fullText, query string, maxLength int) string {
	fullText = strings.TrimSpace(fullText)
	if fullText == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = excerptMaxLength
	}

	words := strings.Fields(strings.ToLower(query))
	sentences := textproc.SplitSentences(fullText)

	var picked []string
	for _, s := range sentences {
		if len([]rune(s)) < excerptMinSentence {
			continue
		}
		if sentenceMatches(strings.ToLower(s), words) {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		if len(sentences) > excerptFallbackCount {
			sentences = sentences[:excerptFallbackCount]
		}
		picked = sentences
	}

	var b strings.Builder
	for _, s := range picked {
		if b.Len() > 0 {
			if len([]rune(b.String()))+len([]rune(s))+2 > maxLength {
				break
			}
			b.WriteString(". ")
		} else if len([]rune(s)) > maxLength {
			break
		}
		b.WriteString(s)
	}
	if b.Len() > 0 {
		return b.String() + "."
	}
	return truncateRunes(fullText, maxLength)
}

func sentenceMatches(sentence string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(sentence, w) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
