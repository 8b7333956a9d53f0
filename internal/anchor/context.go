package anchor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"golang.org/x/text/unicode/norm"
)

// contextSlack widens the window compared against a stored context so that
// whitespace drift does not push the context out of range.
const contextSlack = 16

// chooseOccurrence picks the occurrence whose surroundings agree with the
// stored context. Agreement on whole words is preferred over a context that
// only matches part of a neighbouring word. Without an agreeing occurrence
// the first one is returned and flagged ambiguous.
func chooseOccurrence(text string, occurrences []int, length int, before, after string) (int, bool) {
	if len(occurrences) == 1 {
		return occurrences[0], false
	}
	if before == "" && after == "" {
		return occurrences[0], true
	}
	for _, whole := range []bool{true, false} {
		for _, start := range occurrences {
			if contextMatches(text, start, start+length, before, after, whole) {
				return start, false
			}
		}
	}
	return occurrences[0], true
}

func contextMatches(text string, start, end int, before, after string, whole bool) bool {
	return beforeMatches(text, start, before, whole) && afterMatches(text, end, after, whole)
}

func beforeMatches(text string, start int, before string, whole bool) bool {
	if before == "" {
		return true
	}
	if start >= len(before) && text[start-len(before):start] == before {
		return !whole || !startsWord(before) || boundaryAt(text, start-len(before))
	}
	want := comparable(before)
	if want == "" {
		return true
	}
	from := start - len(before) - contextSlack
	if from < 0 {
		from = 0
	}
	for from < start && !utf8.RuneStart(text[from]) {
		from++
	}
	window := comparable(text[from:start])
	if !strings.HasSuffix(window, want) {
		return false
	}
	if !whole || !startsWord(want) {
		return true
	}
	if rest := window[:len(window)-len(want)]; rest != "" {
		r, _ := utf8.DecodeLastRuneInString(rest)
		return !isWordRune(r)
	}
	return boundaryAt(text, from)
}

func afterMatches(text string, end int, after string, whole bool) bool {
	if after == "" {
		return true
	}
	if end+len(after) <= len(text) && text[end:end+len(after)] == after {
		return !whole || !endsWord(after) || boundaryAt(text, end+len(after))
	}
	want := comparable(after)
	if want == "" {
		return true
	}
	to := end + len(after) + contextSlack
	if to > len(text) {
		to = len(text)
	}
	for to > end && to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	window := comparable(text[end:to])
	if !strings.HasPrefix(window, want) {
		return false
	}
	if !whole || !endsWord(want) {
		return true
	}
	if rest := window[len(want):]; rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		return !isWordRune(r)
	}
	return boundaryAt(text, to)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func startsWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return isWordRune(r)
}

func endsWord(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return isWordRune(r)
}

// boundaryAt reports whether byte offset i does not fall inside a word.
func boundaryAt(text string, i int) bool {
	if i == 0 || i == len(text) {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	next, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(prev) || !isWordRune(next)
}

// comparable reduces s to the form used when a literal context comparison
// fails: canonical whitespace, trimmed, NFC composed.
func comparable(s string) string {
	return norm.NFC.String(canon.Trimmed(s))
}
