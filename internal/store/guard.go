package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/frontdesk-api/pkg/circuitbreaker"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

// ErrUnavailable is returned while the backend circuit is open.
var ErrUnavailable = errors.New("store unavailable")

// Guard runs remote store calls through a circuit breaker and records
// operation metrics. A missing document is not a backend failure.
type Guard struct {
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewGuard(name string, m *metrics.Metrics) *Guard {
	return &Guard{
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			MaxFailures: 5,
			// A caller that gave up says nothing about the backend. A deadline does.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
			},
		}),
		metrics: m,
	}
}

func (g *Guard) Do(op string, fn func() error) error {
	start := time.Now()
	err := g.cb.Execute(fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	if g.metrics != nil {
		status := "success"
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled) {
			status = "error"
		}
		g.metrics.StoreOperations.WithLabelValues(op, status).Inc()
		g.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return err
}

// State reports the breaker state for health checks.
func (g *Guard) State() string {
	return g.cb.State()
}

// Call runs fn through g and stops waiting for it once ctx is done. For
// clients without context support: fn keeps running in the background and
// its late result is discarded.
func Call[T any](ctx context.Context, g *Guard, op string, fn func() (T, error)) (T, error) {
	var out T
	err := g.Do(op, func() error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		type result struct {
			v   T
			err error
		}
		done := make(chan result, 1)
		go func() {
			v, err := fn()
			done <- result{v: v, err: err}
		}()
		select {
		case r := <-done:
			out = r.v
			return r.err
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	})
	return out, err
}

// DoContext is Call for operations without a result.
func (g *Guard) DoContext(ctx context.Context, op string, fn func() error) error {
	_, err := Call(ctx, g, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
