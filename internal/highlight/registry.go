package highlight

import (
	"sync"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
)

// Registry tracks the wrappers produced by Apply for one content tree and
// routes activations (clicks) on them to a handler. Clear resets it.
type Registry struct {
	// OnActivate is called with the owning reference when a highlight is
	// activated.
	OnActivate func(Reference)

	mu       sync.Mutex
	wrappers map[*content.Node]Reference
}

// NewRegistry returns an empty registry.
func NewRegistry(onActivate func(Reference)) *Registry {
	return &Registry{
		OnActivate: onActivate,
		wrappers:   make(map[*content.Node]Reference),
	}
}

// Register records that wrapper highlights ref.
func (r *Registry) Register(wrapper *content.Node, ref Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wrappers == nil {
		r.wrappers = make(map[*content.Node]Reference)
	}
	r.wrappers[wrapper] = ref
}

// Lookup returns the reference of the innermost registered wrapper that is
// n or one of its ancestors.
func (r *Registry) Lookup(n *content.Node) (Reference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ; n != nil; n = n.Parent {
		if ref, ok := r.wrappers[n]; ok {
			return ref, true
		}
	}
	return Reference{}, false
}

// Activate dispatches an activation on n to OnActivate. It reports whether
// n belongs to a registered highlight.
func (r *Registry) Activate(n *content.Node) bool {
	ref, ok := r.Lookup(n)
	if !ok {
		return false
	}
	if r.OnActivate != nil {
		r.OnActivate(ref)
	}
	return true
}

// Len returns the number of registered wrappers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wrappers)
}

// Reset forgets every registered wrapper. The handler is kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrappers = make(map[*content.Node]Reference)
}
