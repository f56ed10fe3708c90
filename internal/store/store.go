// Package store describes the shared document store the workflow services
// read from and write to. Records are JSON documents grouped in named
// collections. There are no transactions and no conditional writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collections used by the services.
const (
	CollectionAppointments = "appointments"
	CollectionUsers        = "users"
	CollectionBills        = "bills"
	CollectionCertificates = "certificates"
	CollectionOutbox       = "outbox"
)

// ErrNotFound is returned by Get, WriteFields and Delete for unknown ids.
var ErrNotFound = errors.New("document not found")

// Document is one stored record. Data always carries the "id" field.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into v.
func (d Document) Decode(v interface{}) error {
	return json.Unmarshal(d.Data, v)
}

// Snapshot is the full state of a collection as delivered to subscribers.
type Snapshot struct {
	Collection string
	Documents  []Document
}

// Subscription is returned by Subscribe. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type Store interface {
	ReadOnce(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// WriteNew inserts record under a fresh id and returns that id.
	WriteNew(ctx context.Context, collection string, record interface{}) (string, error)
	// WriteFields merges fields into an existing record.
	WriteFields(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the current snapshot and then one per change until
	// the subscription is cancelled or ctx is done.
	Subscribe(ctx context.Context, collection string, fn func(Snapshot)) (Subscription, error)
}

// Encode marshals record and sets its "id" field.
func Encode(id string, record interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// Merge returns data with fields overlaid at the top level.
func Merge(data json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	current := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &current); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		current[k] = v
	}
	return json.Marshal(current)
}
