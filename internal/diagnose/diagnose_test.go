package diagnose

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
)

func point(text string) refpoint.ReferencePoint {
	return refpoint.ReferencePoint{ID: "rp-1", SelectedText: text}
}

func TestDiagnose_ExactMatch(t *testing.T) {
	r := Diagnose(point("cat"), "the cat sat on the cat")
	if !r.Exact.Found || r.Exact.Occurrences != 2 || r.Exact.FirstOffset != 4 {
		t.Errorf("unexpected exact result: %+v", r.Exact)
	}
	if !r.Canonical.Found {
		t.Error("expected canonical match too")
	}
	if len(r.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(r.Candidates))
	}
	if len(r.Suggestions) == 0 || !strings.Contains(r.Suggestions[0], "2 times") {
		t.Errorf("unexpected suggestions: %v", r.Suggestions)
	}
	if r.ReferenceID != "rp-1" {
		t.Errorf("ReferenceID = %q, want rp-1", r.ReferenceID)
	}
}

func TestDiagnose_CanonicalMatch(t *testing.T) {
	r := Diagnose(point("cat  sat"), "the cat\nsat down")
	if r.Exact.Found {
		t.Error("exact should not match")
	}
	if !r.Canonical.Found || r.Canonical.FirstOffset != 4 {
		t.Errorf("unexpected canonical result: %+v", r.Canonical)
	}
	if len(r.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(r.Candidates))
	}
	if !strings.Contains(strings.Join(r.Suggestions, " "), "different whitespace") {
		t.Errorf("unexpected suggestions: %v", r.Suggestions)
	}
}

func TestDiagnose_CandidatesWhenAbsent(t *testing.T) {
	text := "This phrase appears here, but everything else about the sentence is different."
	r := Diagnose(point("a completely absent phrase"), text)

	if r.Exact.Found || r.Canonical.Found {
		t.Fatalf("expected no exact or canonical match: %+v %+v", r.Exact, r.Canonical)
	}
	if r.Exact.FirstOffset != -1 || r.Canonical.FirstOffset != -1 {
		t.Errorf("expected -1 offsets, got %d and %d", r.Exact.FirstOffset, r.Canonical.FirstOffset)
	}
	if len(r.Candidates) == 0 {
		t.Fatal("expected candidates for a matching keyword")
	}
	for i := 1; i < len(r.Candidates); i++ {
		if r.Candidates[i].Score > r.Candidates[i-1].Score {
			t.Errorf("candidates not sorted: %v then %v", r.Candidates[i-1].Score, r.Candidates[i].Score)
		}
	}
	foundKeyword := false
	for _, c := range r.Candidates {
		if c.Method == MethodKeyword && strings.Contains(c.Text, "phrase") {
			foundKeyword = true
		}
		if text[c.Start:c.End] != c.Text {
			t.Errorf("candidate text %q does not match its offsets", c.Text)
		}
	}
	if !foundKeyword {
		t.Errorf("expected a keyword candidate containing %q: %+v", "phrase", r.Candidates)
	}
}

func TestDiagnose_NothingSimilar(t *testing.T) {
	r := Diagnose(point("zebra"), "an unrelated sentence")
	if len(r.Candidates) != 0 {
		t.Errorf("expected no candidates, got %+v", r.Candidates)
	}
	if !strings.Contains(strings.Join(r.Suggestions, " "), "No similar text") {
		t.Errorf("unexpected suggestions: %v", r.Suggestions)
	}
}

func TestDiagnose_FlexibleMatch(t *testing.T) {
	text := "the quick red fox jumps"
	r := Diagnose(point("quick brown fox"), text)

	if !r.Flexible.Found || r.Flexible.FirstOffset != 4 {
		t.Fatalf("unexpected flexible result: %+v", r.Flexible)
	}
	// A sliding window with the same text may outrank the split-text candidate.
	found := false
	for _, c := range r.Candidates {
		if c.Text == "quick red fox" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a candidate covering %q, got %+v", "quick red fox", r.Candidates)
	}
	if !strings.Contains(strings.Join(r.Suggestions, " "), "first and last words") {
		t.Errorf("unexpected suggestions: %v", r.Suggestions)
	}
}

func TestDiagnose_FlexibleIgnoresCaseAndComposition(t *testing.T) {
	r := Diagnose(point("Caf\u00e9 au lait noir"), "un CAFE\u0301 noir, s'il vous pla\u00eet")
	if !r.Flexible.Found {
		t.Errorf("expected flexible match: %+v", r.Flexible)
	}
}

func TestDiagnose_CandidateLimitAndDedup(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("grammar notes for lesson ")
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString(". ")
	}
	r := Diagnose(point("grammar rules for every lesson"), b.String())

	if len(r.Candidates) == 0 || len(r.Candidates) > MaxCandidates {
		t.Fatalf("got %d candidates, want 1..%d", len(r.Candidates), MaxCandidates)
	}
	seen := make(map[string]bool)
	for _, c := range r.Candidates {
		if seen[c.Text] {
			t.Errorf("duplicate candidate %q", c.Text)
		}
		seen[c.Text] = true
	}
}

func TestDiagnose_ContextsAreValidText(t *testing.T) {
	text := strings.Repeat("\u00e9t\u00e9 ", 20) + "chaleur intense " + strings.Repeat("\u00e0 la plage ", 10)
	r := Diagnose(point("chaleur estivale"), text)
	if len(r.Candidates) == 0 {
		t.Fatal("expected candidates")
	}
	for _, c := range r.Candidates {
		if !utf8.ValidString(c.ContextBefore) || !utf8.ValidString(c.ContextAfter) {
			t.Errorf("context split a character: %q / %q", c.ContextBefore, c.ContextAfter)
		}
		if len(c.ContextBefore) > ContextBytes || len(c.ContextAfter) > ContextBytes {
			t.Errorf("context too long: %q / %q", c.ContextBefore, c.ContextAfter)
		}
	}
}

func TestDiagnose_EmptySelection(t *testing.T) {
	r := Diagnose(point("  "), "anything")
	if r.Exact.Found || r.Canonical.Found || r.Flexible.Found {
		t.Errorf("expected nothing found: %+v", r)
	}
	if len(r.Suggestions) != 1 {
		t.Errorf("expected one suggestion, got %v", r.Suggestions)
	}
}

func TestKeywords(t *testing.T) {
	tok := newTokenizer()
	got := keywords(tok.words("With the House, with THAT house and a garden!"))
	want := []string{"house", "garden", "with", "that"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	onlyStop := keywords(tok.words("with that"))
	if len(onlyStop) != 2 {
		t.Errorf("expected stopwords to be kept when nothing else qualifies, got %v", onlyStop)
	}
}

func TestDiagnose_CandidatesFromStopwordKeyword(t *testing.T) {
	text := "Tell me which one you prefer over lunch today."
	r := Diagnose(point("which photosynthesis converts sunlight energy into glucose molecules inside chloroplasts"), text)

	if r.Exact.Found || r.Canonical.Found {
		t.Fatalf("expected no exact or canonical match: %+v %+v", r.Exact, r.Canonical)
	}
	if len(r.Candidates) == 0 {
		t.Fatal("expected a candidate around the shared word")
	}
	c := r.Candidates[0]
	if c.Method != MethodKeyword {
		t.Errorf("Method = %q, want %q", c.Method, MethodKeyword)
	}
	if !strings.Contains(c.Text, "which") {
		t.Errorf("candidate %q does not contain the shared word", c.Text)
	}
	if c.Score >= 0.9/10 {
		t.Errorf("stopword candidate scored %v, want below a distinctive keyword hit", c.Score)
	}
	if text[c.Start:c.End] != c.Text {
		t.Errorf("offsets %d-%d do not match candidate text %q", c.Start, c.End, c.Text)
	}
}
