// Package materialize turns flat-text ranges into positions inside real text
// leaves. It only reads the tree; splitting happens in the highlight package.
package materialize

import (
	"sort"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/textindex"
)

// Point is a byte offset inside a text leaf.
type Point struct {
	Leaf   *content.Node
	Offset int
}

// Range spans from Start to End across one or more text leaves.
type Range struct {
	Start Point
	End   Point
}

// Segment is the part [From, To) of a single leaf covered by a Range.
type Segment struct {
	Leaf *content.Node
	From int
	To   int
}

// Whole reports whether the segment covers its entire leaf.
func (s Segment) Whole() bool {
	return s.From == 0 && s.To == len(s.Leaf.Text)
}

// Resolve converts the flat-text range [start, end) of idx into a Range.
// Offsets are clamped to the text. It returns false for an empty range or
// when an endpoint has no real leaf to anchor to.
func Resolve(idx *textindex.Index, start, end int) (Range, bool) {
	n := len(idx.FullText)
	start = clamp(start, 0, n)
	end = clamp(end, 0, n)
	if start >= end || len(idx.Entries) == 0 {
		return Range{}, false
	}

	s, ok := anchorPoint(idx, idx.EntryAt(start), start)
	if !ok {
		return Range{}, false
	}
	// The end offset belongs to the entry that finishes at or after it, so
	// an end on a leaf boundary stays in the earlier leaf.
	ei := sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].End >= end
	})
	e, ok := anchorPoint(idx, ei, end)
	if !ok {
		return Range{}, false
	}
	return Range{Start: s, End: e}, true
}

// Segments lists the per-leaf spans covered by r in document order. Leaves
// at the boundaries are covered partially, interior leaves whole. Empty spans
// are left out, so an empty result means r covers no text.
func Segments(idx *textindex.Index, r Range) []Segment {
	si, ok := idx.EntryOf(r.Start.Leaf)
	if !ok {
		return nil
	}
	ei, ok := idx.EntryOf(r.End.Leaf)
	if !ok {
		return nil
	}

	var out []Segment
	for i := si; i <= ei; i++ {
		entry := idx.Entries[i]
		if entry.Virtual() {
			continue
		}
		from, to := 0, len(entry.Leaf.Text)
		if i == si {
			from = r.Start.Offset
		}
		if i == ei {
			to = r.End.Offset
		}
		if to > from {
			out = append(out, Segment{Leaf: entry.Leaf, From: from, To: to})
		}
	}
	return out
}

// anchorPoint places offset inside entry i. A virtual entry re-anchors to the
// end of the nearest real leaf before it, or failing that the start of the
// nearest real leaf after it.
func anchorPoint(idx *textindex.Index, i, offset int) (Point, bool) {
	if i < 0 || i >= len(idx.Entries) {
		return Point{}, false
	}
	entry := idx.Entries[i]
	if !entry.Virtual() {
		return Point{Leaf: entry.Leaf, Offset: clamp(offset-entry.Start, 0, len(entry.Leaf.Text))}, true
	}
	for j := i - 1; j >= 0; j-- {
		if prev := idx.Entries[j]; !prev.Virtual() {
			return Point{Leaf: prev.Leaf, Offset: len(prev.Leaf.Text)}, true
		}
	}
	for j := i + 1; j < len(idx.Entries); j++ {
		if next := idx.Entries[j]; !next.Virtual() {
			return Point{Leaf: next.Leaf, Offset: 0}, true
		}
	}
	return Point{}, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
