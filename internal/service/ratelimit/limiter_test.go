package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, 10*time.Second)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	now = now.Add(10 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	l.Reset("10.0.0.1")
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLimiter_SweepsRefilledBuckets(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := New(2, 10*time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(fmt.Sprintf("10.0.1.%d", i)))
	}
	assert.Equal(t, 100, l.Len())

	// every bucket above is full again by now and goes on the next sweep
	now = start.Add(20 * time.Second)
	assert.True(t, l.Allow("10.0.0.9"))
	assert.True(t, l.Allow("10.0.0.9"))
	assert.False(t, l.Allow("10.0.0.9"))
	assert.Equal(t, 1, l.Len())

	now = start.Add(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.9"))

	// a partially drained bucket survives the sweep and keeps limiting
	now = start.Add(45 * time.Second)
	assert.True(t, l.Allow("10.0.0.10"))
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Allow("10.0.0.9"))
	assert.False(t, l.Allow("10.0.0.9"))
}
