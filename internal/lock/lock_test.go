package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "slot:doc-1:2024-06-01:09:00", SlotKey("doc-1", "2024-06-01", "09:00"))
}

func TestMemoryAcquireIsExclusive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Acquire(ctx, "slot:d:2024-06-01:09:00", 0)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestMemoryReleaseAndExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ok, err := m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = m.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok, "expired key can be taken again")

	require.NoError(t, m.Release(ctx, "k"))
	ok, _ = m.Acquire(ctx, "k", 0)
	assert.True(t, ok)
}
