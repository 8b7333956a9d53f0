package content

import (
	"sort"
	"unicode/utf8"
)

// SplitText cuts text at the given byte offsets and returns the pieces in
// order. Offsets are clamped, sorted, deduplicated and pulled back onto rune
// boundaries; empty pieces are dropped. Joining the pieces yields text.
func SplitText(text string, cuts []int) []string {
	points := normalizeCuts(text, cuts)
	pieces := make([]string, 0, len(points)+1)
	prev := 0
	for _, p := range points {
		pieces = append(pieces, text[prev:p])
		prev = p
	}
	if prev < len(text) {
		pieces = append(pieces, text[prev:])
	}
	return pieces
}

// SplitLeaf replaces a text leaf with one text node per piece of
// SplitText(leaf.Text, cuts) and returns the new nodes in order. When no cut
// falls strictly inside the text the leaf is returned unchanged.
func SplitLeaf(leaf *Node, cuts []int) []*Node {
	if leaf.Kind != TextNode {
		panic("content: SplitLeaf called for a non-text Node")
	}
	pieces := SplitText(leaf.Text, cuts)
	if len(pieces) <= 1 {
		return []*Node{leaf}
	}
	nodes := make([]*Node, len(pieces))
	for i, p := range pieces {
		nodes[i] = NewText(p)
	}
	leaf.ReplaceWith(nodes...)
	return nodes
}

// normalizeCuts returns the distinct interior cut points of text in order.
func normalizeCuts(text string, cuts []int) []int {
	seen := make(map[int]bool, len(cuts))
	points := make([]int, 0, len(cuts))
	for _, c := range cuts {
		if c <= 0 || c >= len(text) {
			continue
		}
		for c > 0 && !utf8.RuneStart(text[c]) {
			c--
		}
		if c == 0 || seen[c] {
			continue
		}
		seen[c] = true
		points = append(points, c)
	}
	sort.Ints(points)
	return points
}
