package idempotency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_SingleHolder(t *testing.T) {
	g := NewGuard()

	release, err := g.Acquire("pt-001")
	require.NoError(t, err)
	assert.True(t, g.Held("pt-001"))

	_, err = g.Acquire("pt-001")
	assert.ErrorIs(t, err, ErrInFlight)

	other, err := g.Acquire("pt-002")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, g.Held("pt-001"))

	_, err = g.Acquire("pt-001")
	assert.NoError(t, err)
}

func TestGuard_Concurrent(t *testing.T) {
	g := NewGuard()
	var winners int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Acquire("k"); err == nil {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestDeduper_First(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDeduper(time.Minute)
	d.now = func() time.Time { return now }

	assert.True(t, d.First("evt-1"))
	assert.False(t, d.First("evt-1"))
	assert.True(t, d.First("evt-2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.First("evt-1"))
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("a", "b"), Key("ab"))
	assert.Len(t, Key("x"), 64)
}
