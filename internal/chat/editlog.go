package chat

import (
	"sync"
	"time"
)

// EditEvent records one observed composition edit.
type EditEvent struct {
	Length int       `json:"length"`
	At     time.Time `json:"at"`
	Shrink bool      `json:"shrink,omitempty"`
}

// EditRing is a fixed-size ring of recent composition edits. It bounds memory
// per episode regardless of how long the user keeps typing; when full, the
// oldest event is overwritten.
type EditRing struct {
	events []EditEvent
	size   int
	head   int
	count  int
	mu     sync.RWMutex
}

// NewEditRing creates a ring with the specified capacity.
// Default capacity is 32 events, enough to cover one compose cycle.
func NewEditRing(size int) *EditRing {
	if size <= 0 {
		size = 32
	}
	return &EditRing{
		events: make([]EditEvent, size),
		size:   size,
	}
}

// Push records an edit, overwriting the oldest when full.
func (r *EditRing) Push(e EditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.head] = e
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Events returns the recorded edits in arrival order.
func (r *EditRing) Events() []EditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EditEvent, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += r.size
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.events[(start+i)%r.size])
	}
	return out
}

// Len returns the number of recorded edits.
func (r *EditRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Reset clears the ring.
func (r *EditRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}
