package eventbus

import (
	"sync"
	"sync/atomic"
)

// Registry is the set of active subscriptions.
//
// Writers copy the subscription list and publish it atomically, so readers
// never lock. A dispatch works on the snapshot it started with: a
// subscription removed mid-dispatch may still receive that one event.
type Registry struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[snapshot]
	matcher Matcher
}

type snapshot struct {
	subs []*Subscription
	// matches caches Matching results per routing type for events that do
	// not carry their own hierarchy.
	matches sync.Map // reflect.Type -> []*Subscription
}

// NewRegistry creates an empty registry using m to match events.
func NewRegistry(m Matcher) *Registry {
	if m == nil {
		m = Hierarchical()
	}
	r := &Registry{matcher: m}
	r.current.Store(&snapshot{})
	return r
}

// Add inserts subscriptions. Adding a subscription already present is a
// no-op.
func (r *Registry) Add(subs ...*Subscription) {
	if len(subs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load().subs
	next := make([]*Subscription, len(old), len(old)+len(subs))
	copy(next, old)

	present := make(map[*Subscription]bool, len(old)+len(subs))
	for _, s := range old {
		present[s] = true
	}
	for _, s := range subs {
		if s == nil || present[s] {
			continue
		}
		present[s] = true
		next = append(next, s)
	}
	r.current.Store(&snapshot{subs: next})
}

// RemoveIf removes every subscription pred accepts and returns how many were
// removed.
func (r *Registry) RemoveIf(pred func(*Subscription) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load().subs
	next := make([]*Subscription, 0, len(old))
	for _, s := range old {
		if !pred(s) {
			next = append(next, s)
		}
	}
	removed := len(old) - len(next)
	if removed > 0 {
		r.current.Store(&snapshot{subs: next})
	}
	return removed
}

// Remove removes one subscription.
func (r *Registry) Remove(sub *Subscription) bool {
	return r.RemoveIf(func(s *Subscription) bool { return s == sub }) > 0
}

// RemoveByOwner removes every subscription registered from owner.
func (r *Registry) RemoveByOwner(owner any) int {
	return r.RemoveIf(func(s *Subscription) bool { return sameOwner(s.owner, owner) })
}

// RemoveByListener removes every subscription bound to l.
func (r *Registry) RemoveByListener(l Listener) int {
	return r.RemoveIf(func(s *Subscription) bool { return s.listener != nil && sameListener(s.listener, l) })
}

// Matching returns the subscriptions that receive event, in registration
// order. The returned slice must not be modified.
func (r *Registry) Matching(event any) []*Subscription {
	snap := r.current.Load()
	info := Describe(event)

	_, hierarchical := event.(TypeHierarchy)
	if !hierarchical {
		if cached, ok := snap.matches.Load(info.Type); ok {
			return cached.([]*Subscription)
		}
	}

	var out []*Subscription
	for _, s := range snap.subs {
		if r.matcher.Match(s.eventType, info) {
			out = append(out, s)
		}
	}

	if !hierarchical && info.Type != nil {
		snap.matches.Store(info.Type, out)
	}
	return out
}

// Snapshot returns a copy of every subscription.
func (r *Registry) Snapshot() []*Subscription {
	subs := r.current.Load().subs
	out := make([]*Subscription, len(subs))
	copy(out, subs)
	return out
}

// Len returns the number of subscriptions.
func (r *Registry) Len() int {
	return len(r.current.Load().subs)
}

// Has reports whether sub is registered.
func (r *Registry) Has(sub *Subscription) bool {
	for _, s := range r.current.Load().subs {
		if s == sub {
			return true
		}
	}
	return false
}
