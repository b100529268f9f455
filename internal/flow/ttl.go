package flow

import (
	"sync"
	"time"
)

// SweepInterval is the minimum time between two expiry sweeps triggered by Set.
const SweepInterval = time.Minute

// TTL is a minimal in-process TTL cache to trim backend reads on hot paths.
// Expired entries are dropped on Get and by a sweep that Set runs at most once per
// SweepInterval, so keys that are never read again do not accumulate.
type TTL[K comparable, V any] struct {
	mu        sync.Mutex
	data      map[K]entry[V]
	lastSweep time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V]), lastSweep: timeNow()}
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.data[k]
	if ok && timeNow().After(e.exp) {
		delete(t.data, k)
		ok = false
	}
	if !ok {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	now := timeNow()
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastSweep) >= SweepInterval {
		t.purgeLocked(now)
	}
	t.data[k] = entry[V]{val: v, exp: now.Add(ttl)}
}

// Purge drops expired entries.
func (t *TTL[K, V]) Purge() int {
	now := timeNow()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.purgeLocked(now)
}

func (t *TTL[K, V]) purgeLocked(now time.Time) int {
	t.lastSweep = now
	n := 0
	for k, e := range t.data {
		if now.After(e.exp) {
			delete(t.data, k)
			n++
		}
	}
	return n
}

func (t *TTL[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data)
}
