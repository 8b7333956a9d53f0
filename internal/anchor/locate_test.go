package anchor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
)

type stringHaystack struct {
	text  string
	calls int
}

func (h *stringHaystack) Text() string { return h.text }

func (h *stringHaystack) Canonical() canon.Result {
	h.calls++
	return canon.Canonicalize(h.text)
}

func hay(s string) *stringHaystack {
	return &stringHaystack{text: s}
}

func TestLocate_ExactWinsOverOtherStrategies(t *testing.T) {
	// Canonical matching would find "a b" at the start of this text.
	h := hay("a  b x a b")
	m, err := Locate(h, Needle{Text: "a b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Start != 7 || m.End != 10 {
		t.Errorf("got [%d,%d), want [7,10)", m.Start, m.End)
	}
	if m.Strategy != StrategyExact {
		t.Errorf("strategy = %q, want %q", m.Strategy, StrategyExact)
	}
	if h.calls != 0 {
		t.Errorf("canonical form computed %d times for an exact hit", h.calls)
	}
}

func TestLocate_CanonicalRecovery(t *testing.T) {
	tests := []struct {
		name      string
		haystack  string
		needle    string
		wantStart int
		wantEnd   int
	}{
		{"extra spaces", "hello   world", "hello world", 0, 13},
		{"newline in text", "hello\nworld", "hello world", 0, 11},
		{"needle has padding", "say hello world now", "  hello\t world ", 4, 15},
		{"nbsp in text", "a\u00a0 b c", "a b", 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Locate(hay(tt.haystack), Needle{Text: tt.needle})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Strategy != StrategyCanonical {
				t.Errorf("strategy = %q, want %q", m.Strategy, StrategyCanonical)
			}
			if m.Start != tt.wantStart || m.End != tt.wantEnd {
				t.Errorf("got [%d,%d), want [%d,%d)", m.Start, m.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestLocate_ContextDisambiguation(t *testing.T) {
	text := "The bank of the river. The bank of the city."
	m, err := Locate(hay(text), Needle{
		Text:          "bank",
		ContextBefore: "The ",
		ContextAfter:  " of the city",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.LastIndex(text, "bank")
	if m.Start != want || m.End != want+4 {
		t.Errorf("got [%d,%d), want [%d,%d)", m.Start, m.End, want, want+4)
	}
	if m.Ambiguous {
		t.Error("context should have resolved the ambiguity")
	}
	if m.Occurrences != 2 {
		t.Errorf("occurrences = %d, want 2", m.Occurrences)
	}
}

func TestLocate_ContextComparedCanonically(t *testing.T) {
	text := "x word y\nand  z word w"
	m, err := Locate(hay(text), Needle{Text: "word", ContextBefore: "and z "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := strings.LastIndex(text, "word"); m.Start != want {
		t.Errorf("start = %d, want %d", m.Start, want)
	}
}

func TestLocate_ContextComparedComposed(t *testing.T) {
	text := "tea word. caf\u00e9 word."
	m, err := Locate(hay(text), Needle{Text: "word", ContextBefore: "cafe\u0301 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := strings.LastIndex(text, "word"); m.Start != want {
		t.Errorf("start = %d, want %d", m.Start, want)
	}
}

func TestLocate_ContextPrefersWholeWords(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		needle Needle
		want   int
	}{
		{
			name:   "before context inside a longer word",
			text:   "xfoo word. foo word.",
			needle: Needle{Text: "word", ContextBefore: "foo"},
			want:   15,
		},
		{
			name:   "after context inside a longer word",
			text:   "word barx. word bar.",
			needle: Needle{Text: "word", ContextAfter: "bar"},
			want:   11,
		},
		{
			name:   "truncated context still disambiguates",
			text:   "The river word. The citybank word.",
			needle: Needle{Text: "word", ContextBefore: "bank"},
			want:   29,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Locate(hay(tt.text), tt.needle)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Start != tt.want {
				t.Errorf("start = %d, want %d", m.Start, tt.want)
			}
			if m.Ambiguous {
				t.Error("context should have resolved the ambiguity")
			}
		})
	}
}

func TestLocate_Ambiguous(t *testing.T) {
	tests := []struct {
		name   string
		needle Needle
	}{
		{"no context", Needle{Text: "go"}},
		{"context matches nothing", Needle{Text: "go", ContextBefore: "stop "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Locate(hay("go go go"), tt.needle)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Start != 0 || m.End != 2 {
				t.Errorf("got [%d,%d), want [0,2)", m.Start, m.End)
			}
			if !m.Ambiguous {
				t.Error("expected the match to be flagged ambiguous")
			}
			if m.Occurrences != 3 {
				t.Errorf("occurrences = %d, want 3", m.Occurrences)
			}
		})
	}
}

func TestLocate_SingleOccurrenceIgnoresContext(t *testing.T) {
	m, err := Locate(hay("only once here"), Needle{Text: "once", ContextBefore: "stale "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Start != 5 || m.Ambiguous {
		t.Errorf("got %+v, want start 5 and not ambiguous", m)
	}
}

func TestLocate_Prefix(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	needle := strings.Join(words, " ")
	text := "intro " + strings.Join(words[:PrefixWords], " ") + " and then the rest was rewritten entirely"

	m, err := Locate(hay(text), Needle{Text: needle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Strategy != StrategyPrefix {
		t.Errorf("strategy = %q, want %q", m.Strategy, StrategyPrefix)
	}
	if m.Start != 6 {
		t.Errorf("start = %d, want 6", m.Start)
	}
	if want := 6 + len(needle); m.End != want {
		t.Errorf("end = %d, want %d", m.End, want)
	}
}

func TestLocate_PrefixClampsToText(t *testing.T) {
	words := make([]string, 22)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	text := strings.Join(words[:PrefixWords], " ") + " \u00e9"

	m, err := Locate(hay(text), Needle{Text: strings.Join(words, " ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Start != 0 || m.End != len(text) {
		t.Errorf("got [%d,%d), want [0,%d)", m.Start, m.End, len(text))
	}
}

func TestLocate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		needle  string
		wantErr error
	}{
		{"empty", "", ErrEmptyNeedle},
		{"whitespace only", "\u00a0\n\u200b ", ErrEmptyNeedle},
		{"absent", "missing phrase", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Locate(hay("some text in here"), Needle{Text: tt.needle})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndexAll_Overlapping(t *testing.T) {
	got := indexAll("aaaa", "aa")
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
