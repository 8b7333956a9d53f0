// Package resolver projects stored reference points onto rendered flashcard
// content.
package resolver

import (
	"errors"
	"sort"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/anchor"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/highlight"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/materialize"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/refpoint"
	"github.com/jarrod-lowe/flashcard-anchor-service/internal/textindex"
)

// Status is the per reference point outcome of a pass.
type Status string

// Outcome statuses.
const (
	StatusResolved  Status = "resolved"
	StatusNotFound  Status = "notFound"
	StatusMalformed Status = "malformed"
	StatusInvalid   Status = "invalid"
)

// Outcome describes what happened to one reference point. Start and End are
// flat-text offsets and are only set when the excerpt was located.
type Outcome struct {
	ReferenceID string
	Status      Status
	Strategy    anchor.Strategy
	Start       int
	End         int
	Ambiguous   bool
}

// Result is the outcome of a projection pass.
type Result struct {
	Applied  int
	Outcomes []Outcome
	FullText string
}

// Unresolved returns the IDs of reference points that were not projected.
func (r Result) Unresolved() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Status != StatusResolved {
			ids = append(ids, o.ReferenceID)
		}
	}
	return ids
}

// Resolved pairs an outcome with the leaf spans it covers.
type Resolved struct {
	Outcome  Outcome
	Point    refpoint.ReferencePoint
	Segments []materialize.Segment
}

// Project clears earlier highlights from root and highlights every point
// that can be located. All ranges are computed before the tree is touched.
// Failures are reported per point and never stop the pass.
func Project(root *content.Node, points []refpoint.ReferencePoint, reg *highlight.Registry) Result {
	highlight.Clear(root, reg)
	idx := textindex.Build(root)

	resolved := Resolve(idx, points)

	var targets []highlight.Target
	outcomes := make([]Outcome, len(resolved))
	for i, r := range resolved {
		outcomes[i] = r.Outcome
		if r.Outcome.Status == StatusResolved {
			targets = append(targets, highlight.Target{Ref: r.Point.Reference(), Segments: r.Segments})
		}
	}

	return Result{
		Applied:  highlight.Apply(targets, reg),
		Outcomes: outcomes,
		FullText: idx.FullText,
	}
}

// Resolve locates every point in idx without modifying the tree. Points are
// handled oldest first; points created at the same time keep their order.
func Resolve(idx *textindex.Index, points []refpoint.ReferencePoint) []Resolved {
	ordered := make([]refpoint.ReferencePoint, len(points))
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	out := make([]Resolved, len(ordered))
	for i, p := range ordered {
		out[i] = resolveOne(idx, p)
	}
	return out
}

func resolveOne(idx *textindex.Index, p refpoint.ReferencePoint) Resolved {
	r := Resolved{Point: p, Outcome: Outcome{ReferenceID: p.ID}}

	m, err := anchor.Locate(idx, anchor.Needle{
		Text:          p.SelectedText,
		ContextBefore: p.ContextBefore,
		ContextAfter:  p.ContextAfter,
	})
	switch {
	case errors.Is(err, anchor.ErrEmptyNeedle):
		r.Outcome.Status = StatusInvalid
		return r
	case err != nil:
		r.Outcome.Status = StatusNotFound
		return r
	}

	r.Outcome.Strategy = m.Strategy
	r.Outcome.Start = m.Start
	r.Outcome.End = m.End
	r.Outcome.Ambiguous = m.Ambiguous

	rng, ok := materialize.Resolve(idx, m.Start, m.End)
	if !ok {
		r.Outcome.Status = StatusMalformed
		return r
	}
	r.Segments = materialize.Segments(idx, rng)
	if len(r.Segments) == 0 {
		r.Outcome.Status = StatusMalformed
		return r
	}
	r.Outcome.Status = StatusResolved
	return r
}
