// Package anchor re-locates saved text excerpts inside freshly rendered text.
package anchor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
)

// PrefixWords is how many leading words of a needle the prefix strategy
// searches for.
const PrefixWords = 20

// Errors returned by Locate.
var (
	ErrEmptyNeedle = errors.New("needle is empty")
	ErrNotFound    = errors.New("needle not found")
)

// Strategy names the matching stage that produced a Match.
type Strategy string

const (
	// StrategyExact is a verbatim substring match.
	StrategyExact Strategy = "exact"
	// StrategyCanonical is a match after whitespace canonicalization.
	StrategyCanonical Strategy = "canonical"
	// StrategyPrefix is a match on the needle's leading words only.
	StrategyPrefix Strategy = "prefix"
)

// Haystack is the text being searched. Canonical must return the
// canonicalized form of Text; implementations are expected to cache it.
type Haystack interface {
	Text() string
	Canonical() canon.Result
}

// Needle is a saved excerpt plus the text captured on either side of it.
type Needle struct {
	Text          string
	ContextBefore string
	ContextAfter  string
}

// Match is a resolved byte range [Start, End) of the haystack text.
type Match struct {
	Start       int
	End         int
	Strategy    Strategy
	Occurrences int
	// Ambiguous is set when several occurrences existed and the stored
	// context did not single one out; the first occurrence was used.
	Ambiguous bool
}

// Locate finds needle in h. Exact, canonical and prefix matching are tried in
// that order and the first success wins. ErrNotFound means the excerpt cannot
// be placed in this text.
func Locate(h Haystack, n Needle) (Match, error) {
	if canon.Trimmed(n.Text) == "" {
		return Match{}, ErrEmptyNeedle
	}

	text := h.Text()
	if m, ok := exactMatch(text, n); ok {
		return m, nil
	}
	if m, ok := canonicalMatch(h, n); ok {
		return m, nil
	}
	if m, ok := prefixMatch(text, n); ok {
		return m, nil
	}
	return Match{}, ErrNotFound
}

func exactMatch(text string, n Needle) (Match, bool) {
	occurrences := indexAll(text, n.Text)
	if len(occurrences) == 0 {
		return Match{}, false
	}
	start, ambiguous := chooseOccurrence(text, occurrences, len(n.Text), n.ContextBefore, n.ContextAfter)
	return Match{
		Start:       start,
		End:         start + len(n.Text),
		Strategy:    StrategyExact,
		Occurrences: len(occurrences),
		Ambiguous:   ambiguous,
	}, true
}

func canonicalMatch(h Haystack, n Needle) (Match, bool) {
	needle := canon.Trimmed(n.Text)
	hay := h.Canonical()

	occurrences := indexAll(hay.Canon, needle)
	if len(occurrences) == 0 {
		return Match{}, false
	}
	cs, ambiguous := chooseOccurrence(hay.Canon, occurrences, len(needle), n.ContextBefore, n.ContextAfter)

	start, end, ok := canon.MapRangeToOriginal(cs, cs+len(needle), hay.Map, len(h.Text()))
	if !ok {
		return Match{}, false
	}
	return Match{
		Start:       start,
		End:         end,
		Strategy:    StrategyCanonical,
		Occurrences: len(occurrences),
		Ambiguous:   ambiguous,
	}, true
}

// prefixMatch looks for the needle's leading words and assumes the excerpt
// still has its original length from there.
func prefixMatch(text string, n Needle) (Match, bool) {
	words := strings.FieldsFunc(n.Text, canon.IsSpace)
	if len(words) > PrefixWords {
		words = words[:PrefixWords]
	}
	prefix := strings.Join(words, " ")
	if prefix == "" {
		return Match{}, false
	}

	start := strings.Index(text, prefix)
	if start < 0 {
		return Match{}, false
	}
	end := start + len(n.Text)
	if end > len(text) {
		end = len(text)
	}
	for end > start+len(prefix) && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}

	count := strings.Count(text, prefix)
	return Match{
		Start:       start,
		End:         end,
		Strategy:    StrategyPrefix,
		Occurrences: count,
		Ambiguous:   count > 1,
	}, true
}

// indexAll returns the start of every occurrence of sub in s, overlapping
// occurrences included.
func indexAll(s, sub string) []int {
	if sub == "" {
		return nil
	}
	var out []int
	offset := 0
	for {
		i := strings.Index(s[offset:], sub)
		if i < 0 {
			return out
		}
		out = append(out, offset+i)
		_, size := utf8.DecodeRuneInString(s[offset+i:])
		offset += i + size
	}
}
