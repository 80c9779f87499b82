// Package cache provides a single-value TTL cache with an injectable clock.
//
// Each aggregate owns one Value, or a Keyed set of them when results depend
// on a parameter such as the cost window. Freshness is checked
// before use; two callers that miss at the same moment both recompute and the
// later Store wins.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Value holds one computed result and the time it was computed.
type Value[T any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        Clock
	data       T
	computedAt time.Time
	valid      bool
}

// New creates an empty Value. A nil clock means time.Now.
func New[T any](ttl time.Duration, now Clock) *Value[T] {
	if now == nil {
		now = time.Now
	}
	return &Value[T]{ttl: ttl, now: now}
}

// Get returns the cached data and its computation time if it is younger
// than the TTL.
func (v *Value[T]) Get() (T, time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.valid || v.now().Sub(v.computedAt) >= v.ttl {
		var zero T
		return zero, time.Time{}, false
	}
	return v.data, v.computedAt, true
}

// Store records data as computed now and returns that time.
func (v *Value[T]) Store(data T) time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.data = data
	v.computedAt = v.now()
	v.valid = true
	return v.computedAt
}

// Invalidate drops the cached data.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.data = zero
	v.valid = false
}

// Now returns the current time according to the Value's clock.
func (v *Value[T]) Now() time.Time {
	return v.now()
}

// Keyed holds one Value per key, all sharing a TTL and clock.
type Keyed[K comparable, T any] struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    Clock
	values map[K]*Value[T]
}

// NewKeyed creates an empty Keyed cache. A nil clock means time.Now.
func NewKeyed[K comparable, T any](ttl time.Duration, now Clock) *Keyed[K, T] {
	if now == nil {
		now = time.Now
	}
	return &Keyed[K, T]{ttl: ttl, now: now, values: make(map[K]*Value[T])}
}

// For returns the Value of key, creating it on first use.
func (k *Keyed[K, T]) For(key K) *Value[T] {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, ok := k.values[key]
	if !ok {
		v = New[T](k.ttl, k.now)
		k.values[key] = v
	}
	return v
}

// Invalidate drops every cached value.
func (k *Keyed[K, T]) Invalidate() {
	k.mu.Lock()
	defer k.mu.Unlock()

	clear(k.values)
}

// Now returns the current time according to the cache's clock.
func (k *Keyed[K, T]) Now() time.Time {
	return k.now()
}
