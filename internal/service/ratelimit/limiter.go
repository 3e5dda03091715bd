package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key shares the same capacity and
// refill rate. Buckets that have refilled to capacity are swept out, since a
// full bucket behaves exactly like a missing one.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

// New returns a limiter allowing capacity bursts and one token per refill.
func New(capacity int, refill time.Duration) *Limiter {
	rate := 0.0
	if refill > 0 {
		rate = 1 / refill.Seconds()
	}
	l := &Limiter{
		m:          make(map[string]*bucket),
		capacity:   float64(capacity),
		refillRate: rate,
		now:        time.Now,
	}
	// an empty bucket is full again after capacity refills
	if refill > 0 && capacity > 0 {
		l.sweepEvery = time.Duration(capacity) * refill
	}
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// sweepLocked drops buckets that are full at now. Without refill buckets
// never fill up again and are kept.
func (l *Limiter) sweepLocked(now time.Time) {
	if l.sweepEvery <= 0 || now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	l.lastSweep = now
	for key, b := range l.m {
		if b.tokens+now.Sub(b.last).Seconds()*l.refillRate >= l.capacity {
			delete(l.m, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.m, key)
	l.mu.Unlock()
}
