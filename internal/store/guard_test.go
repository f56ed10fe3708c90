package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallStopsWaitingAtDeadline(t *testing.T) {
	g := NewGuard("test", nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Call(ctx, g, "read", func() (int, error) {
		<-release
		return 1, nil
	})
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallReturnsResult(t *testing.T) {
	g := NewGuard("test", nil)
	v, err := Call(context.Background(), g, "read", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	boom := errors.New("boom")
	err = g.DoContext(context.Background(), "write", func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestCancelledCallersDoNotOpenTheBreaker(t *testing.T) {
	g := NewGuard("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 10; i++ {
		err := g.DoContext(ctx, "read", func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", g.State())

	for i := 0; i < 5; i++ {
		_ = g.DoContext(context.Background(), "read", func() error { return errors.New("down") })
	}
	assert.Equal(t, "open", g.State())
	assert.ErrorIs(t, g.DoContext(context.Background(), "read", func() error { return nil }), ErrUnavailable)
}
