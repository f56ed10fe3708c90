package supabase

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	supa "github.com/supabase-community/supabase-go"

	"github.com/jwalitptl/frontdesk-api/internal/filestore"
	"github.com/jwalitptl/frontdesk-api/internal/model"
)

// FileStore uploads into a supabase storage bucket.
type FileStore struct {
	client *supa.Client
	bucket string
}

func New(client *supa.Client, bucket string) *FileStore {
	return &FileStore{client: client, bucket: bucket}
}

// Upload returns when the object is stored or ctx is done. A late upload
// that finishes after ctx expired is never referenced.
func (f *FileStore) Upload(ctx context.Context, data []byte, dest filestore.Destination) (model.FileRef, error) {
	key := filestore.ObjectPath(dest, uuid.New().String())

	type result struct {
		ref model.FileRef
		err error
	}
	ch := make(chan result, 1)
	go func() {
		if _, err := f.client.Storage.UploadFile(f.bucket, key, bytes.NewReader(data)); err != nil {
			ch <- result{err: fmt.Errorf("failed to upload %s: %w", key, err)}
			return
		}
		public := f.client.Storage.GetPublicUrl(f.bucket, key)
		ch <- result{ref: model.FileRef{
			URL:      public.SignedURL,
			PublicID: key,
			FileName: dest.FileName,
		}}
	}()

	select {
	case <-ctx.Done():
		return model.FileRef{}, ctx.Err()
	case r := <-ch:
		return r.ref, r.err
	}
}
