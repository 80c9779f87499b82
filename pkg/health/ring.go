package health

import "sync"

// DefaultCapacity keeps 24 hours of 5 minute samples.
const DefaultCapacity = 288

// Ring is a fixed-capacity snapshot buffer. Pushing onto a full ring evicts
// the oldest snapshot.
type Ring struct {
	mu    sync.RWMutex
	buf   []Snapshot
	start int
	size  int
}

// NewRing creates a Ring. A non-positive capacity means DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Snapshot, capacity)}
}

// Push appends s.
func (r *Ring) Push(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// Snapshots returns a copy of the buffer, oldest first.
func (r *Ring) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, r.size)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of stored snapshots.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
