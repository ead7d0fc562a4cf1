package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowExhaustsTokens(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, WindowDuration: time.Minute})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("client"), "request %d should pass", i+1)
	}
	assert.False(t, rl.allow("client"))
}

func TestAllowIsolatesClients(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: time.Minute})
	defer rl.Stop()

	require.True(t, rl.allow("a"))
	require.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))
}

func TestSweepRemovesStaleBuckets(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: time.Minute})
	defer rl.Stop()

	require.True(t, rl.allow("stale"))
	require.True(t, rl.allow("fresh"))

	rl.mu.Lock()
	rl.buckets["stale"].lastRefill = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.sweep(time.Now())

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.NotContains(t, rl.buckets, "stale")
	assert.Contains(t, rl.buckets, "fresh")
}

func TestStopSignalsCleanup(t *testing.T) {
	rl := New(Config{})
	rl.Stop()

	select {
	case <-rl.done:
	default:
		t.Fatal("done channel should be closed after Stop")
	}

	assert.NotPanics(t, func() { rl.Stop() })
}
