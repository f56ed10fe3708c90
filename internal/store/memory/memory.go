package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/frontdesk-api/internal/store"
)

type entry struct {
	seq  uint64
	data json.RawMessage
}

type subscriber struct {
	id         uint64
	collection string
	fn         func(store.Snapshot)

	// deliverMu serialises calls to fn. last is the newest version delivered.
	deliverMu sync.Mutex
	last      uint64
}

// deliver calls fn unless a newer snapshot already reached the subscriber.
func (sub *subscriber) deliver(version uint64, snap store.Snapshot) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if version <= sub.last {
		return
	}
	sub.last = version
	sub.fn(snap)
}

// Store keeps collections in process memory. Snapshots list documents in
// insertion order. Each subscriber sees snapshots one at a time and never an
// older one after a newer one.
type Store struct {
	mu          sync.Mutex
	seq         uint64
	version     uint64
	collections map[string]map[string]entry
	subscribers map[uint64]*subscriber
	nextSubID   uint64
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]entry),
		subscribers: make(map[uint64]*subscriber),
	}
}

func (s *Store) ReadOnce(ctx context.Context, collection string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(collection), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return store.Document{ID: id, Data: e.data}, nil
}

func (s *Store) WriteNew(ctx context.Context, collection string, record interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	data, err := store.Encode(id, record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]entry)
		s.collections[collection] = docs
	}
	s.seq++
	docs[id] = entry{seq: s.seq, data: data}
	notify := s.pendingNotificationsLocked(collection)
	s.mu.Unlock()

	notify()
	return id, nil
}

func (s *Store) WriteFields(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	e, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	merged, err := store.Merge(e.data, fields)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to merge fields: %w", err)
	}
	e.data = merged
	s.collections[collection][id] = e
	notify := s.pendingNotificationsLocked(collection)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	delete(s.collections[collection], id)
	notify := s.pendingNotificationsLocked(collection)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.nextSubID++
	sub := &subscriber{id: s.nextSubID, collection: collection, fn: fn}
	s.subscribers[sub.id] = sub
	version := s.version
	initial := store.Snapshot{Collection: collection, Documents: s.snapshotLocked(collection)}
	s.mu.Unlock()

	// Skipped when a write that raced ahead already delivered a newer snapshot.
	sub.deliverMu.Lock()
	if sub.last == 0 || version > sub.last {
		sub.last = version
		fn(initial)
	}
	sub.deliverMu.Unlock()

	cancel := &subscription{store: s, id: sub.id, done: make(chan struct{})}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel.Unsubscribe()
			case <-cancel.done:
			}
		}()
	}
	return cancel, nil
}

func (s *Store) snapshotLocked(collection string) []store.Document {
	docs := s.collections[collection]
	type item struct {
		id string
		e  entry
	}
	items := make([]item, 0, len(docs))
	for id, e := range docs {
		items = append(items, item{id: id, e: e})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].e.seq < items[j].e.seq })

	out := make([]store.Document, len(items))
	for i, it := range items {
		out[i] = store.Document{ID: it.id, Data: it.e.data}
	}
	return out
}

// pendingNotificationsLocked bumps the store version, captures the snapshot
// under the lock and returns a func that delivers it after the lock is
// released.
func (s *Store) pendingNotificationsLocked(collection string) func() {
	s.version++
	version := s.version
	var subs []*subscriber
	for _, sub := range s.subscribers {
		if sub.collection == collection {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return func() {}
	}
	snap := store.Snapshot{Collection: collection, Documents: s.snapshotLocked(collection)}
	return func() {
		for _, sub := range subs {
			sub.deliver(version, snap)
		}
	}
}

type subscription struct {
	store *Store
	id    uint64
	once  sync.Once
	done  chan struct{}
}

func (c *subscription) Unsubscribe() {
	c.once.Do(func() {
		c.store.mu.Lock()
		delete(c.store.subscribers, c.id)
		c.store.mu.Unlock()
		close(c.done)
	})
}
