package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/frontdesk-api/internal/store"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

const notifyChannel = "document_changes"

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Store keeps every collection in one JSONB table. Subscriptions are driven
// by LISTEN/NOTIFY on the documents trigger.
type Store struct {
	db     *sqlx.DB
	dsn    string
	guard  *store.Guard
	logger *logger.Logger

	mu        sync.Mutex
	subs      map[uint64]*subscription
	nextSubID uint64
	listener  *pq.Listener
	stop      chan struct{}
}

func NewStore(db *sqlx.DB, dsn string, m *metrics.Metrics, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		dsn:    dsn,
		guard:  store.NewGuard("postgres-store", m),
		logger: log,
		subs:   make(map[uint64]*subscription),
	}
}

func (s *Store) ReadOnce(ctx context.Context, collection string) ([]store.Document, error) {
	var rows []documentRow
	err := s.guard.Do("read_once", func() error {
		return s.db.SelectContext(ctx, &rows,
			`SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq ASC`, collection)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	docs := make([]store.Document, len(rows))
	for i, r := range rows {
		docs[i] = store.Document{ID: r.ID, Data: json.RawMessage(r.Data)}
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var row documentRow
	err := s.guard.Do("get", func() error {
		err := s.db.GetContext(ctx, &row,
			`SELECT id, data FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: row.ID, Data: json.RawMessage(row.Data)}, nil
}

func (s *Store) WriteNew(ctx context.Context, collection string, record interface{}) (string, error) {
	id := uuid.New().String()
	data, err := store.Encode(id, record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	err = s.guard.Do("write_new", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
			collection, id, []byte(data))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) WriteFields(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	return s.guard.Do("write_fields", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
			collection, id, patch)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		return requireRow(res, collection, id)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.guard.Do("delete", func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
		}
		return requireRow(res, collection, id)
	})
}

func requireRow(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := s.ensureListener(); err != nil {
		return nil, err
	}

	docs, err := s.ReadOnce(ctx, collection)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextSubID++
	sub := &subscription{store: s, id: s.nextSubID, collection: collection, fn: fn, done: make(chan struct{})}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	fn(store.Snapshot{Collection: collection, Documents: docs})

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

func (s *Store) ensureListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Error(err, "document listener event", "event", int(ev))
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	s.listener = listener
	s.stop = make(chan struct{})
	go s.listen(listener, s.stop)
	return nil
}

func (s *Store) listen(listener *pq.Listener, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case n := <-listener.Notify:
			if n == nil {
				// Connection was re-established; notifications may have been lost.
				s.broadcast("")
				continue
			}
			s.broadcast(n.Extra)
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}

// broadcast re-reads collection and delivers it to its subscribers. An empty
// collection refreshes every subscribed collection.
func (s *Store) broadcast(collection string) {
	s.mu.Lock()
	targets := make(map[string][]func(store.Snapshot))
	for _, sub := range s.subs {
		if collection == "" || sub.collection == collection {
			targets[sub.collection] = append(targets[sub.collection], sub.fn)
		}
	}
	s.mu.Unlock()

	for coll, fns := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		docs, err := s.ReadOnce(ctx, coll)
		cancel()
		if err != nil {
			s.logger.Error(err, "failed to refresh subscription", "collection", coll)
			continue
		}
		snap := store.Snapshot{Collection: coll, Documents: docs}
		for _, fn := range fns {
			fn(snap)
		}
	}
}

// Close stops the listener. The database handle is owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	close(s.stop)
	err := s.listener.Close()
	s.listener = nil
	return err
}

// Health reports the breaker state.
func (s *Store) Health() string {
	return s.guard.State()
}

type subscription struct {
	store      *Store
	id         uint64
	collection string
	fn         func(store.Snapshot)
	once       sync.Once
	done       chan struct{}
}

func (c *subscription) Unsubscribe() {
	c.once.Do(func() {
		c.store.mu.Lock()
		delete(c.store.subs, c.id)
		c.store.mu.Unlock()
		close(c.done)
	})
}
