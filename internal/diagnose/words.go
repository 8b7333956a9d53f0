package diagnose

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinKeywordRunes is the shortest word treated as a keyword.
const MinKeywordRunes = 4

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "before": true,
	"being": true, "both": true, "could": true, "does": true, "each": true,
	"from": true, "have": true, "here": true, "into": true, "just": true,
	"more": true, "most": true, "much": true, "only": true, "other": true,
	"over": true, "same": true, "should": true, "some": true, "such": true,
	"than": true, "that": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true,
	"very": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "would": true,
	"your": true,
}

// word is a token of the original text with its normalized form.
type word struct {
	start, end int
	norm       string
}

type tokenizer struct {
	fold cases.Caser
}

func newTokenizer() *tokenizer {
	return &tokenizer{fold: cases.Fold()}
}

// normalize case-folds w, composes it and strips surrounding punctuation.
func (t *tokenizer) normalize(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return norm.NFC.String(t.fold.String(w))
}

// words splits s on whitespace. Tokens that are pure punctuation are dropped.
func (t *tokenizer) words(s string) []word {
	var out []word
	start := -1
	for i := 0; i <= len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if i == len(s) || canon.IsSpace(r) {
			if start >= 0 {
				if n := t.normalize(s[start:i]); n != "" {
					out = append(out, word{start: start, end: i, norm: n})
				}
				start = -1
			}
			if i == len(s) {
				break
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	return out
}

func wordSet(ws []word) map[string]bool {
	set := make(map[string]bool, len(ws))
	for _, w := range ws {
		set[w.norm] = true
	}
	return set
}

// overlap is the share of needle words present in ws.
func overlap(needle map[string]bool, ws []word) float64 {
	if len(needle) == 0 {
		return 0
	}
	present := wordSet(ws)
	hits := 0
	for w := range needle {
		if present[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(needle))
}

// keywords returns the needle words of at least MinKeywordRunes runes in
// first-seen order, distinctive words ahead of stopwords.
func keywords(needle []word) []string {
	var distinct, stop []string
	seen := make(map[string]bool)
	for _, w := range needle {
		if seen[w.norm] || utf8.RuneCountInString(w.norm) < MinKeywordRunes {
			continue
		}
		seen[w.norm] = true
		if stopwords[w.norm] {
			stop = append(stop, w.norm)
		} else {
			distinct = append(distinct, w.norm)
		}
	}
	return append(distinct, stop...)
}
