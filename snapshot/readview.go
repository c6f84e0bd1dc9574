package snapshot

import "sync/atomic"

// ReadView publishes GraphSnapshot pointers for lock-free, wait-free
// reads: every query goes through Load, which is a single atomic load
// with no contention against the reconciler's Store.
type ReadView struct {
	current atomic.Pointer[GraphSnapshot]
}

// NewReadView returns a ReadView seeded with an empty snapshot.
func NewReadView() *ReadView {
	rv := &ReadView{}
	rv.current.Store(NewEmpty())
	return rv
}

// Load returns the currently published snapshot. The returned pointer
// is safe to hold and query indefinitely; it will never be mutated.
func (rv *ReadView) Load() *GraphSnapshot {
	return rv.current.Load()
}

// Publish swaps in a new snapshot, making it visible to subsequent
// Load calls. Only the reconciler goroutine should call Publish.
func (rv *ReadView) Publish(s *GraphSnapshot) {
	rv.current.Store(s)
}
