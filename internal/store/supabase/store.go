package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/jwalitptl/frontdesk-api/internal/store"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

const table = "documents"

type documentRow struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

// Store keeps documents in a supabase table with the same layout as the
// postgres backend. PostgREST offers no JSONB merge, so WriteFields reads the
// record and writes it back. Subscriptions poll. The client takes no
// context, so every call is bounded through store.Call.
type Store struct {
	client       *supa.Client
	guard        *store.Guard
	logger       *logger.Logger
	pollInterval time.Duration
}

func NewClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}

func NewStore(client *supa.Client, pollInterval time.Duration, m *metrics.Metrics, log *logger.Logger) *Store {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Store{
		client:       client,
		guard:        store.NewGuard("supabase-store", m),
		logger:       log,
		pollInterval: pollInterval,
	}
}

func (s *Store) ReadOnce(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := store.Call(ctx, s.guard, "read_once", func() ([]documentRow, error) {
		data, _, err := s.client.From(table).
			Select("id,data", "", false).
			Eq("collection", collection).
			Order("seq", &postgrest.OrderOpts{Ascending: true}).
			Execute()
		if err != nil {
			return nil, err
		}
		var rows []documentRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	docs := make([]store.Document, len(rows))
	for i, r := range rows {
		docs[i] = store.Document{ID: r.ID, Data: r.Data}
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	row, err := store.Call(ctx, s.guard, "get", func() (documentRow, error) {
		data, _, err := s.client.From(table).
			Select("id,data", "", false).
			Eq("collection", collection).
			Eq("id", id).
			Execute()
		if err != nil {
			return documentRow{}, err
		}
		var rows []documentRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return documentRow{}, err
		}
		if len(rows) == 0 {
			return documentRow{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return rows[0], nil
	})
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: row.ID, Data: row.Data}, nil
}

func (s *Store) WriteNew(ctx context.Context, collection string, record interface{}) (string, error) {
	id := uuid.New().String()
	data, err := store.Encode(id, record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	row := documentRow{Collection: collection, ID: id, Data: data}
	err = s.guard.DoContext(ctx, "write_new", func() error {
		_, _, err := s.client.From(table).Insert(row, false, "", "minimal", "").Execute()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) WriteFields(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	merged, err := store.Merge(doc.Data, fields)
	if err != nil {
		return fmt.Errorf("failed to merge fields: %w", err)
	}

	err = s.guard.DoContext(ctx, "write_fields", func() error {
		_, _, err := s.client.From(table).
			Update(map[string]interface{}{"data": merged}, "minimal", "").
			Eq("collection", collection).
			Eq("id", id).
			Execute()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.guard.DoContext(ctx, "delete", func() error {
		data, _, err := s.client.From(table).
			Delete("representation", "").
			Eq("collection", collection).
			Eq("id", id).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
		}
		var rows []documentRow
		if err := json.Unmarshal(data, &rows); err == nil && len(rows) == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) Subscribe(ctx context.Context, collection string, fn func(store.Snapshot)) (store.Subscription, error) {
	docs, err := s.ReadOnce(ctx, collection)
	if err != nil {
		return nil, err
	}
	fn(store.Snapshot{Collection: collection, Documents: docs})

	sub := &subscription{done: make(chan struct{})}
	go s.poll(ctx, collection, fingerprint(docs), fn, sub.done)
	return sub, nil
}

func (s *Store) poll(ctx context.Context, collection string, last []byte, fn func(store.Snapshot), done <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			readCtx, cancel := context.WithTimeout(ctx, s.pollInterval*5)
			docs, err := s.ReadOnce(readCtx, collection)
			cancel()
			if err != nil {
				s.logger.Error(err, "failed to poll collection", "collection", collection)
				continue
			}
			fp := fingerprint(docs)
			if bytes.Equal(fp, last) {
				continue
			}
			last = fp
			fn(store.Snapshot{Collection: collection, Documents: docs})
		}
	}
}

func fingerprint(docs []store.Document) []byte {
	var buf bytes.Buffer
	for _, d := range docs {
		buf.WriteString(d.ID)
		buf.Write(d.Data)
	}
	return buf.Bytes()
}

// Health reports the breaker state.
func (s *Store) Health() string {
	return s.guard.State()
}

type subscription struct {
	once sync.Once
	done chan struct{}
}

func (c *subscription) Unsubscribe() {
	c.once.Do(func() { close(c.done) })
}
