package search

import (
	"strings"
	"testing"
)

func TestEnhanceQueryBiology(t *testing.T) {
	got := EnhanceQuery("Tell me about DNA genetics", "")

	if len(got.Subjects) != 1 || got.Subjects[0] != "biology" {
		t.Fatalf("subjects = %v, want [biology]", got.Subjects)
	}
	for _, want := range []string{"dna", "gene", "genetics", "chromosome"} {
		if !containsTerm(got.Terms, want) {
			t.Errorf("terms %v missing %q", got.Terms, want)
		}
	}
	if len(got.Strategies) != 3 {
		t.Fatalf("strategies = %d, want 3 (exact, expanded, subject)", len(got.Strategies))
	}
	if got.Strategies[0] != "Tell me about DNA genetics" {
		t.Errorf("first strategy = %q, want exact query", got.Strategies[0])
	}
	if !strings.Contains(got.Strategies[1], " OR ") {
		t.Errorf("expanded strategy %q not OR-joined", got.Strategies[1])
	}
}

func TestEnhanceQuerySubjectRestrictsScan(t *testing.T) {
	// "nucleus" appears in both biology and chemistry dictionaries; an
	// explicit subject must keep the scan to that subject only.
	got := EnhanceQuery("structure of the atom", "chemistry")
	if len(got.Subjects) != 1 || got.Subjects[0] != "chemistry" {
		t.Fatalf("subjects = %v, want [chemistry]", got.Subjects)
	}
	if containsTerm(got.Terms, "organelle") {
		t.Errorf("biology term leaked into chemistry-restricted expansion: %v", got.Terms)
	}
}

func TestEnhanceQueryUnknownSubjectScansAll(t *testing.T) {
	got := EnhanceQuery("newton and force", "astrology")
	if len(got.Subjects) != 1 || got.Subjects[0] != "physics" {
		t.Fatalf("subjects = %v, want [physics]", got.Subjects)
	}
}

func TestEnhanceQueryNoMatchFallsBackToWords(t *testing.T) {
	got := EnhanceQuery("Zebra Quilting Tuesday", "")
	if len(got.Subjects) != 0 {
		t.Fatalf("subjects = %v, want none", got.Subjects)
	}
	want := []string{"zebra", "quilting", "tuesday"}
	if len(got.Terms) != len(want) {
		t.Fatalf("terms = %v, want %v", got.Terms, want)
	}
	for i, term := range want {
		if got.Terms[i] != term {
			t.Errorf("terms[%d] = %q, want %q", i, got.Terms[i], term)
		}
	}
	if len(got.Strategies) != 2 {
		t.Errorf("strategies = %d, want 2 without a subject", len(got.Strategies))
	}
}

func TestEnhanceQueryDedupesFirstSeen(t *testing.T) {
	// dna and genetics groups overlap; each term must appear once, in the
	// order it was first produced.
	got := EnhanceQuery("dna genetics", "biology")
	seen := make(map[string]int)
	for _, term := range got.Terms {
		seen[term]++
	}
	for term, n := range seen {
		if n > 1 {
			t.Errorf("term %q appears %d times", term, n)
		}
	}
	if got.Terms[0] != "dna" {
		t.Errorf("terms[0] = %q, want dna (first matched keyword)", got.Terms[0])
	}
}

func TestSubjectStrategyCapped(t *testing.T) {
	got := EnhanceQuery("dna genetics cell photosynthesis", "biology")
	strategy := got.SubjectStrategy()
	if strategy == "" {
		t.Fatal("expected a subject strategy")
	}
	terms := strings.Split(strategy, " OR ")
	if len(terms) > maxSubjectTerms {
		t.Errorf("subject strategy has %d terms, cap is %d", len(terms), maxSubjectTerms)
	}
}

func containsTerm(terms []string, want string) bool {
	for _, t := range terms {
		if t == want {
			return true
		}
	}
	return false
}
