// Package diagnose explains why a reference point no longer resolves and
// proposes replacement excerpts. It never changes the reference point.
package diagnose

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
)

// Tuning for candidate discovery.
const (
	MaxCandidates   = 8
	ContextBytes    = 30
	MinWindowScore  = 0.3
	KeywordRadius   = 60
	MaxKeywordHits  = 3
	MinFlexibleSpan = 200
	StopwordWeight  = 0.5
)

// Method names how a candidate was found.
type Method string

// Candidate discovery methods.
const (
	MethodSlidingWindow Method = "sliding-window"
	MethodKeyword       Method = "keyword"
	MethodSplitText     Method = "split-text"
)

// StrategyResult reports one matching strategy. FirstOffset is -1 when
// nothing was found.
type StrategyResult struct {
	Found       bool
	Occurrences int
	FirstOffset int
}

// Candidate is a passage of the current text that could replace the stored
// excerpt. The contexts can be saved with it as they are.
type Candidate struct {
	Text          string
	ContextBefore string
	ContextAfter  string
	Start         int
	End           int
	Method        Method
	Score         float64
}

// Report is the diagnosis of one reference point.
type Report struct {
	ReferenceID  string
	SelectedText string
	Exact        StrategyResult
	Canonical    StrategyResult
	Flexible     StrategyResult
	Candidates   []Candidate
	Suggestions  []string
}

var notFound = StrategyResult{FirstOffset: -1}

// Diagnose runs every matching strategy for p against fullText. Candidates
// are only searched for when neither the exact nor the canonical strategy
// finds the excerpt.
func Diagnose(p refpoint.ReferencePoint, fullText string) Report {
	report := Report{
		ReferenceID:  p.ID,
		SelectedText: p.SelectedText,
		Exact:        notFound,
		Canonical:    notFound,
		Flexible:     notFound,
	}
	if canon.Trimmed(p.SelectedText) == "" {
		report.Suggestions = []string{"The reference point has no selected text; recreate it from the flashcard."}
		return report
	}

	tok := newTokenizer()
	needle := tok.words(p.SelectedText)
	hay := tok.words(fullText)

	report.Exact = exact(p.SelectedText, fullText)
	report.Canonical = canonical(p.SelectedText, fullText)
	windows := flexibleWindows(needle, hay, len(p.SelectedText))
	if len(windows) > 0 {
		report.Flexible = StrategyResult{Found: true, Occurrences: len(windows), FirstOffset: windows[0].start}
	}

	if !report.Exact.Found && !report.Canonical.Found {
		report.Candidates = candidates(fullText, needle, hay, windows)
	}
	report.Suggestions = suggest(report, fullText, windows)
	return report
}

func exact(needle, text string) StrategyResult {
	first := strings.Index(text, needle)
	if first < 0 {
		return notFound
	}
	return StrategyResult{Found: true, Occurrences: strings.Count(text, needle), FirstOffset: first}
}

func canonical(needle, text string) StrategyResult {
	n := canon.Trimmed(needle)
	c := canon.Canonicalize(text)
	first := strings.Index(c.Canon, n)
	if first < 0 {
		return notFound
	}
	return StrategyResult{Found: true, Occurrences: strings.Count(c.Canon, n), FirstOffset: c.Map[first]}
}

// span is a byte range of the haystack plus the words inside it.
type span struct {
	start, end int
	words      []word
}

// flexibleWindows finds each occurrence of the needle's first word followed
// closely by its last word. The limit grows with the needle so that long
// excerpts with a little inserted text still qualify.
func flexibleWindows(needle, hay []word, needleLen int) []span {
	if len(needle) == 0 {
		return nil
	}
	first, last := needle[0].norm, needle[len(needle)-1].norm
	limit := 2 * needleLen
	if limit < MinFlexibleSpan {
		limit = MinFlexibleSpan
	}

	var out []span
	for i, w := range hay {
		if w.norm != first {
			continue
		}
		from := i
		if len(needle) > 1 {
			from = i + 1
		}
		for j := from; j < len(hay) && hay[j].start-w.start <= limit; j++ {
			if hay[j].norm == last {
				out = append(out, span{start: w.start, end: hay[j].end, words: hay[i : j+1]})
				break
			}
		}
	}
	return out
}

func candidates(text string, needle, hay []word, windows []span) []Candidate {
	set := wordSet(needle)
	var out []Candidate
	add := func(s span, method Method, score float64) {
		out = append(out, Candidate{
			Text:          text[s.start:s.end],
			ContextBefore: before(text, s.start),
			ContextAfter:  after(text, s.end),
			Start:         s.start,
			End:           s.end,
			Method:        method,
			Score:         score,
		})
	}

	size := len(needle)
	if size > len(hay) {
		size = len(hay)
	}
	for i := 0; size > 0 && i+size <= len(hay); i++ {
		ws := hay[i : i+size]
		if score := overlap(set, ws); score >= MinWindowScore {
			add(span{start: ws[0].start, end: ws[len(ws)-1].end}, MethodSlidingWindow, score)
		}
	}

	for _, kw := range keywords(needle) {
		weight := 0.9
		if stopwords[kw] {
			weight = StopwordWeight
		}
		hits := 0
		for _, w := range hay {
			if hits == MaxKeywordHits {
				break
			}
			if !strings.Contains(w.norm, kw) {
				continue
			}
			hits++
			s := snippet(hay, w.start-KeywordRadius, w.end+KeywordRadius)
			score := overlap(set, s.words)
			if floor := 1 / float64(len(set)); score < floor {
				score = floor
			}
			add(s, MethodKeyword, score*weight)
		}
	}

	for _, w := range windows {
		add(w, MethodSplitText, overlap(set, w.words)*0.95)
	}

	return rank(out)
}

// snippet returns the words lying entirely inside [from, to).
func snippet(hay []word, from, to int) span {
	i := sort.Search(len(hay), func(k int) bool { return hay[k].start >= from })
	j := i
	for j < len(hay) && hay[j].end <= to {
		j++
	}
	ws := hay[i:j]
	return span{start: ws[0].start, end: ws[len(ws)-1].end, words: ws}
}

// rank sorts by score, drops repeated texts and keeps the best few.
func rank(cs []Candidate) []Candidate {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Start < cs[j].Start
	})
	seen := make(map[string]bool)
	out := make([]Candidate, 0, MaxCandidates)
	for _, c := range cs {
		if seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		out = append(out, c)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

func before(text string, start int) string {
	from := start - ContextBytes
	if from < 0 {
		from = 0
	}
	for from < start && !utf8.RuneStart(text[from]) {
		from++
	}
	return text[from:start]
}

func after(text string, end int) string {
	to := end + ContextBytes
	if to > len(text) {
		to = len(text)
	}
	for to > end && to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	return text[end:to]
}

func suggest(r Report, text string, windows []span) []string {
	var out []string
	switch {
	case r.Exact.Found && r.Exact.Occurrences > 1:
		out = append(out, fmt.Sprintf("The text appears %d times; the first occurrence is used unless the saved context picks another.", r.Exact.Occurrences))
	case r.Exact.Found:
		out = append(out, "The text is present exactly as saved.")
	case r.Canonical.Found:
		out = append(out, "Text found with different whitespace; saving the text as it now appears makes the match exact.")
	}

	if !r.Exact.Found && !r.Canonical.Found {
		if len(windows) > 0 {
			gap := utf8.RuneCountInString(text[windows[0].start:windows[0].words[len(windows[0].words)-1].start])
			out = append(out, fmt.Sprintf("The first and last words appear %d characters apart; formatting or wording between them may have changed.", gap))
		}
		if len(r.Candidates) > 0 {
			best := r.Candidates[0]
			out = append(out, fmt.Sprintf("%d similar passages found; the best match (%s, %.0f%% similar) starts at offset %d.",
				len(r.Candidates), best.Method, best.Score*100, best.Start))
		} else {
			out = append(out, "No similar text found; the passage may have been rewritten or removed.")
		}
	}
	return out
}
