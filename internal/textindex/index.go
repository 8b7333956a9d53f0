// Package textindex flattens a content tree into searchable text while
// remembering which text leaf produced every span.
package textindex

import (
	"sort"
	"strings"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/canon"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
)

// Separator is the virtual text inserted between blocks and at line breaks.
const Separator = "\n"

// Entry maps the span [Start, End) of FullText to its source leaf.
// A nil Leaf marks a virtual separator.
type Entry struct {
	Leaf  *content.Node
	Start int
	End   int
}

// Virtual reports whether the entry has no backing text leaf.
func (e Entry) Virtual() bool {
	return e.Leaf == nil
}

// Index is the flattened text of one rendered content tree. It is only valid
// until the tree is mutated.
type Index struct {
	FullText string
	Entries  []Entry

	leaves map[*content.Node]int
	canon  *canon.Result
}

// Build walks root in document order and returns its text index.
func Build(root *content.Node) *Index {
	b := &builder{leaves: make(map[*content.Node]int)}
	b.walk(root)
	return &Index{
		FullText: b.text.String(),
		Entries:  b.entries,
		leaves:   b.leaves,
	}
}

// Text returns the flattened text.
func (idx *Index) Text() string {
	return idx.FullText
}

// Canonical returns the canonical form of the flattened text, computed on
// first use and reused for every lookup against this index.
func (idx *Index) Canonical() canon.Result {
	if idx.canon == nil {
		r := canon.Canonicalize(idx.FullText)
		idx.canon = &r
	}
	return *idx.canon
}

// EntryOf returns the position in Entries of a text leaf.
func (idx *Index) EntryOf(leaf *content.Node) (int, bool) {
	i, ok := idx.leaves[leaf]
	return i, ok
}

// EntryAt returns the position of the entry whose span contains offset, or
// -1 when offset is outside FullText. The end offset of the text maps to the
// last entry.
func (idx *Index) EntryAt(offset int) int {
	if offset < 0 || offset > len(idx.FullText) || len(idx.Entries) == 0 {
		return -1
	}
	if offset == len(idx.FullText) {
		return len(idx.Entries) - 1
	}
	return sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].End > offset
	})
}

type builder struct {
	text      strings.Builder
	entries   []Entry
	leaves    map[*content.Node]int
	lastBlock *content.Node
	hasText   bool
}

func (b *builder) walk(n *content.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Kind {
		case content.TextNode:
			b.addLeaf(c)
		case content.ElementNode:
			if content.IsSkipped(c.Tag) {
				continue
			}
			if content.IsLineBreak(c.Tag) {
				b.addSeparator()
				continue
			}
			b.walk(c)
		}
	}
}

func (b *builder) addLeaf(leaf *content.Node) {
	if leaf.Text == "" {
		return
	}
	block := content.BlockAncestor(leaf)
	if b.hasText && block != b.lastBlock {
		b.addSeparator()
	}

	start := b.text.Len()
	b.text.WriteString(leaf.Text)
	b.leaves[leaf] = len(b.entries)
	b.entries = append(b.entries, Entry{Leaf: leaf, Start: start, End: b.text.Len()})
	b.lastBlock = block
	b.hasText = true
}

// addSeparator appends a virtual line break unless the text is empty or
// already ends in one.
func (b *builder) addSeparator() {
	if b.text.Len() == 0 || strings.HasSuffix(b.text.String(), Separator) {
		return
	}
	start := b.text.Len()
	b.text.WriteString(Separator)
	b.entries = append(b.entries, Entry{Start: start, End: b.text.Len()})
}
