package search

import (
	"strings"
	"testing"
)

func TestExtractRelevantExcerptPicksMatchingSentences(t *testing.T) {
	text := "The lesson began with attendance. DNA carries genetic information in cells. " +
		"Lunch was served at noon. Genes are segments of DNA that code for proteins."

	got := ExtractRelevantExcerpt(text, "dna genes", 300)
	if !strings.Contains(got, "DNA carries genetic information") {
		t.Errorf("excerpt %q missing first matching sentence", got)
	}
	if !strings.Contains(got, "Genes are segments") {
		t.Errorf("excerpt %q missing second matching sentence", got)
	}
	if strings.Contains(got, "Lunch") {
		t.Errorf("excerpt %q includes unrelated sentence", got)
	}
}

func TestExtractRelevantExcerptFallsBackToOpening(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."
	got := ExtractRelevantExcerpt(text, "nomatchword", 300)
	if !strings.Contains(got, "First sentence") {
		t.Errorf("excerpt %q should start from the opening", got)
	}
	if strings.Contains(got, "Fourth sentence") {
		t.Errorf("excerpt %q should stop at three sentences", got)
	}
}

func TestExtractRelevantExcerptRespectsMaxLength(t *testing.T) {
	long := strings.Repeat("dna and genetics appear in this very long sentence about biology ", 20)
	got := ExtractRelevantExcerpt(long, "dna", 100)
	if n := len([]rune(got)); n > 110 {
		t.Errorf("excerpt length %d exceeds budget", n)
	}
	if got == "" {
		t.Error("excerpt should not be empty")
	}
}

func TestExtractRelevantExcerptEmptyText(t *testing.T) {
	if got := ExtractRelevantExcerpt("   ", "anything", 300); got != "" {
		t.Errorf("excerpt of blank text = %q, want empty", got)
	}
}
