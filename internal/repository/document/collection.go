// Package document implements the repositories on top of a store.Store.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/frontdesk-api/internal/store"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

// collection decodes documents of one store collection into T.
type collection[T any] struct {
	store    store.Store
	name     string
	resource string
}

func (c collection[T]) list(ctx context.Context) ([]*T, error) {
	docs, err := c.store.ReadOnce(ctx, c.name)
	if err != nil {
		return nil, mapError("list "+c.resource, c.resource, err)
	}
	return decodeAll[T](docs)
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, mapError("get "+c.resource, c.resource, err)
	}
	v := new(T)
	if err := doc.Decode(v); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to decode %s %s: %w", c.resource, id, err))
	}
	return v, nil
}

func (c collection[T]) create(ctx context.Context, record *T) (string, error) {
	id, err := c.store.WriteNew(ctx, c.name, record)
	if err != nil {
		return "", mapError("create "+c.resource, c.resource, err)
	}
	return id, nil
}

func (c collection[T]) update(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := c.store.WriteFields(ctx, c.name, id, fields); err != nil {
		return mapError("update "+c.resource, c.resource, err)
	}
	return nil
}

func (c collection[T]) delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, c.name, id); err != nil {
		return mapError("delete "+c.resource, c.resource, err)
	}
	return nil
}

func decodeAll[T any](docs []store.Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v := new(T)
		if err := doc.Decode(v); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to decode document %s: %w", doc.ID, err))
		}
		out = append(out, v)
	}
	return out, nil
}

// mapError turns store errors into application errors. Anything other than a
// missing document is treated as the remote store being unavailable.
func mapError(operation, resource string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.RemoteUnavailable(operation, err)
}
