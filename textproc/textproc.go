// Package textproc cleans transcript text and splits it into
// token-bounded, overlapping chunks for embedding.
package textproc

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// MinCleanLength is the shortest cleaned text considered embeddable.
	MinCleanLength = 10

	// DefaultMaxTokens is the default chunk window size.
	DefaultMaxTokens = 400

	// DefaultOverlapTokens is the default overlap between consecutive chunks.
	DefaultOverlapTokens = 50

	// MaxChunkChars is a hard ceiling on chunk length in runes, a safety
	// net for degenerate inputs that defeat token counting.
	MaxChunkChars = 2000

	encodingName = "cl100k_base"

	// charsPerToken drives the approximate fallback when no BPE encoding
	// can be loaded. It is a rough average for Latin text and is known to
	// be inaccurate for dense scripts such as Khmer.
	charsPerToken = 4
)

// Processor cleans and chunks text. The zero value is not usable; call New.
type Processor struct {
	codec *tiktoken.Tiktoken // nil when the encoding could not be loaded
}

// New returns a Processor backed by the cl100k_base encoding when it can be
// loaded, and by the character-count approximation otherwise.
func New() *Processor {
	codec, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Printf("[textproc] tokenizer unavailable, falling back to character approximation: %v", err)
		return &Processor{}
	}
	return &Processor{codec: codec}
}

// NewApproximate returns a Processor that always uses the character-count
// approximation. Useful in tests and offline environments.
func NewApproximate() *Processor {
	return &Processor{}
}

// Clean collapses whitespace runs to single spaces and trims. Text whose
// cleaned form is shorter than MinCleanLength returns empty; callers must
// treat empty as not embeddable.
func (p *Processor) Clean(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(cleaned) < MinCleanLength {
		return ""
	}
	return cleaned
}

// CountTokens returns the token count of text. Without a loaded encoding it
// returns len(text)/4, an approximation whose accuracy is not guaranteed
// across scripts.
func (p *Processor) CountTokens(text string) int {
	if p.codec != nil {
		return len(p.codec.Encode(text, nil, nil))
	}
	return len(text) / charsPerToken
}

// ChunkByTokens splits text into chunks of at most maxTokens tokens with
// overlapTokens of overlap between consecutive chunks. If the whole text
// fits in maxTokens it is returned as a single chunk. When overlap >= max
// the advance is clamped to maxTokens, producing no overlap.
func (p *Processor) ChunkByTokens(text string, maxTokens, overlapTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if p.CountTokens(text) <= maxTokens {
		return []string{capRunes(text, MaxChunkChars)}
	}

	if p.codec != nil {
		return p.chunkTokens(text, maxTokens, overlapTokens)
	}
	return p.chunkRunes(text, maxTokens, overlapTokens)
}

func (p *Processor) chunkTokens(text string, maxTokens, overlapTokens int) []string {
	tokens := p.codec.Encode(text, nil, nil)

	advance := maxTokens - overlapTokens
	if advance <= 0 {
		advance = maxTokens
	}

	var chunks []string
	for start := 0; start < len(tokens); start += advance {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := strings.TrimSpace(p.codec.Decode(tokens[start:end]))
		if chunk != "" {
			chunks = append(chunks, capRunes(chunk, MaxChunkChars))
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// chunkRunes is the approximate path: windows of maxTokens*charsPerToken
// runes, capped at MaxChunkChars.
func (p *Processor) chunkRunes(text string, maxTokens, overlapTokens int) []string {
	runes := []rune(text)

	window := maxTokens * charsPerToken
	if window > MaxChunkChars {
		window = MaxChunkChars
	}
	advance := (maxTokens - overlapTokens) * charsPerToken
	if advance <= 0 {
		advance = window
	}

	var chunks []string
	for start := 0; start < len(runes); start += advance {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
