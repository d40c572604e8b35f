package textproc

import (
	"strings"
	"testing"
)

func TestClean_CollapsesWhitespace(t *testing.T) {
	p := NewApproximate()

	got := p.Clean("  Cells   contain\t\tDNA.\n\nDNA stores  information. ")
	want := "Cells contain DNA. DNA stores information."
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestClean_ShortTextIsEmpty(t *testing.T) {
	p := NewApproximate()

	tests := []struct {
		name  string
		input string
		empty bool
	}{
		{"below minimum", "short", true},
		{"whitespace only", "   \t\n  ", true},
		{"exactly at minimum", "ten chars!", false},
		{"normal text", "long enough to embed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Clean(tt.input)
			if (got == "") != tt.empty {
				t.Errorf("Clean(%q) = %q, want empty=%v", tt.input, got, tt.empty)
			}
		})
	}
}

func TestCountTokens_Approximation(t *testing.T) {
	p := NewApproximate()

	text := strings.Repeat("abcd", 25) // 100 chars
	if got := p.CountTokens(text); got != 25 {
		t.Errorf("CountTokens() = %d, want 25", got)
	}
}

func TestChunkByTokens_SingleChunkWhenFits(t *testing.T) {
	p := NewApproximate()

	chunks := p.ChunkByTokens("Cells contain DNA. DNA stores genetic information.", 400, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "Cells contain DNA. DNA stores genetic information." {
		t.Errorf("unexpected chunk text: %q", chunks[0])
	}
}

func TestChunkByTokens_Deterministic(t *testing.T) {
	p := NewApproximate()
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 100)

	first := p.ChunkByTokens(text, 50, 10)
	second := p.ChunkByTokens(text, 50, 10)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkByTokens_WindowBounds(t *testing.T) {
	p := NewApproximate()
	text := strings.Repeat("x", 4000)

	chunks := p.ChunkByTokens(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if got := len([]rune(c)); got > 100*charsPerToken {
			t.Errorf("chunk %d has %d runes, want <= %d", i, got, 100*charsPerToken)
		}
	}
}

func TestChunkByTokens_OverlapClamped(t *testing.T) {
	p := NewApproximate()
	text := strings.Repeat("y", 2000)

	// overlap >= maxTokens must not stall the window
	chunks := p.ChunkByTokens(text, 100, 100)
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	// clamped advance means no overlap: pieces partition the input
	if total != 2000 {
		t.Errorf("total chunk length = %d, want 2000 (no overlap)", total)
	}
}

func TestChunkByTokens_EmptyInput(t *testing.T) {
	p := NewApproximate()

	if chunks := p.ChunkByTokens("   ", 400, 50); chunks != nil {
		t.Errorf("expected nil chunks for blank input, got %v", chunks)
	}
}

func TestChunkByTokens_HardCharCeiling(t *testing.T) {
	p := NewApproximate()
	text := strings.Repeat("z", 10000)

	for i, c := range p.ChunkByTokens(text, 10000, 0) {
		if len([]rune(c)) > MaxChunkChars {
			t.Errorf("chunk %d exceeds hard ceiling: %d runes", i, len([]rune(c)))
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Cells contain DNA. DNA stores genetic information! Mitochondria produce energy?")
	want := []string{
		"Cells contain DNA",
		"DNA stores genetic information",
		"Mitochondria produce energy",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContainsKhmer(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"latin only", "what is a cell?", false},
		{"khmer", "តើកោសិកាជាអ្វី?", true},
		{"mixed", "DNA គឺជាអ្វី", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsKhmer(tt.text); got != tt.want {
				t.Errorf("ContainsKhmer(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
