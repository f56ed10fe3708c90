// Package lock provides the admission record that makes slot booking atomic.
// Creating the key is a conditional create: exactly one caller wins.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type SlotLock interface {
	// Acquire creates key if it does not exist and reports whether it did.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SlotKey returns the admission key for a (doctor, date, time) triple.
func SlotKey(doctorID, date, slot string) string {
	return fmt.Sprintf("slot:%s:%s:%s", doctorID, date, slot)
}

// Memory is an in-process SlotLock.
type Memory struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.keys[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	m.keys[key] = exp
	return true, nil
}

func (m *Memory) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	return nil
}
