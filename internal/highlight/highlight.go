// Package highlight wraps resolved reference ranges in marker elements and
// removes them again.
package highlight

import (
	"sort"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/materialize"
)

// Markup produced by Apply.
const (
	WrapperTag     = "span"
	WrapperClass   = "reference-highlight"
	NoteTag        = "sup"
	NoteClass      = "reference-note-indicator"
	ReferenceIDKey = "data-reference-id"
)

// Reference is what the projector needs to know about a reference point.
type Reference struct {
	ID    string
	Color string
	Notes string
}

// Target is one reference and the leaf spans it covers.
type Target struct {
	Ref      Reference
	Segments []materialize.Segment
}

type cover struct {
	target   int
	from, to int
}

// Apply wraps every target's segments. All segments must have been computed
// against the current tree before Apply is called: each leaf is split once at
// the union of its boundaries, so targets cannot disturb each other.
// Overlapping targets nest, with the earlier target outermost. Apply returns
// the number of targets that received at least one wrapper.
func Apply(targets []Target, reg *Registry) int {
	var leaves []*content.Node
	covers := make(map[*content.Node][]cover)
	first := make([]materialize.Segment, len(targets))
	for ti, t := range targets {
		for _, s := range t.Segments {
			if s.Leaf == nil || s.Leaf.Parent == nil || s.To <= s.From {
				continue
			}
			if first[ti].Leaf == nil {
				first[ti] = s
			}
			if _, seen := covers[s.Leaf]; !seen {
				leaves = append(leaves, s.Leaf)
			}
			covers[s.Leaf] = append(covers[s.Leaf], cover{target: ti, from: s.From, to: s.To})
		}
	}

	wrapped := make([]bool, len(targets))
	marked := make([]bool, len(targets))
	for _, leaf := range leaves {
		cs := covers[leaf]
		cuts := make([]int, 0, 2*len(cs))
		for _, c := range cs {
			cuts = append(cuts, c.from, c.to)
		}

		pos := 0
		for _, piece := range content.SplitLeaf(leaf, cuts) {
			start, end := pos, pos+len(piece.Text)
			pos = end

			var owners []int
			for _, c := range cs {
				if c.from <= start && end <= c.to && !contains(owners, c.target) {
					owners = append(owners, c.target)
				}
			}
			if len(owners) == 0 {
				continue
			}
			sort.Ints(owners)
			wrappers := wrap(piece, targets, owners, reg)
			for i, ti := range owners {
				wrapped[ti] = true
				// The note marker goes in the wrapper of the target's first segment.
				if !marked[ti] && targets[ti].Ref.Notes != "" && leaf == first[ti].Leaf && start == first[ti].From {
					wrappers[i].AppendChild(noteMarker(targets[ti].Ref))
					marked[ti] = true
				}
			}
		}
	}

	applied := 0
	for _, ok := range wrapped {
		if ok {
			applied++
		}
	}
	return applied
}

// Clear removes every wrapper and note marker below root, merges the text
// they split and resets reg. It returns the number of wrappers removed.
func Clear(root *content.Node, reg *Registry) int {
	var wrappers, notes []*content.Node
	content.Walk(root, func(n *content.Node) bool {
		if n.Kind != content.ElementNode {
			return true
		}
		switch {
		case n.Tag == NoteTag && n.HasClass(NoteClass):
			notes = append(notes, n)
			return false
		case n.HasClass(WrapperClass):
			wrappers = append(wrappers, n)
		}
		return true
	})

	for _, n := range notes {
		n.Parent.RemoveChild(n)
	}
	for _, w := range wrappers {
		w.Unwrap()
	}
	if len(notes) > 0 || len(wrappers) > 0 {
		content.Normalize(root)
	}
	if reg != nil {
		reg.Reset()
	}
	return len(wrappers)
}

// wrap puts piece inside one nested wrapper per owner, outermost first, and
// returns the wrappers in owner order.
func wrap(piece *content.Node, targets []Target, owners []int, reg *Registry) []*content.Node {
	wrappers := make([]*content.Node, len(owners))
	for i, ti := range owners {
		ref := targets[ti].Ref
		wrappers[i] = content.NewElement(WrapperTag,
			content.Attr{Key: "class", Val: WrapperClass},
			content.Attr{Key: ReferenceIDKey, Val: ref.ID},
			content.Attr{Key: "style", Val: Style(ref.Color)},
		)
		if reg != nil {
			reg.Register(wrappers[i], ref)
		}
	}

	piece.ReplaceWith(wrappers[0])
	for i := 1; i < len(wrappers); i++ {
		wrappers[i-1].AppendChild(wrappers[i])
	}
	wrappers[len(wrappers)-1].AppendChild(piece)
	return wrappers
}

func noteMarker(ref Reference) *content.Node {
	return content.NewElement(NoteTag,
		content.Attr{Key: "class", Val: NoteClass},
		content.Attr{Key: ReferenceIDKey, Val: ref.ID},
	)
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
