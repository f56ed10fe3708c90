package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/frontdesk-api/internal/filestore"
	"github.com/jwalitptl/frontdesk-api/internal/model"
)

// FileStore keeps uploads in memory. Fail, when set, is consulted before each
// upload and its error returned instead of storing the file.
type FileStore struct {
	mu    sync.Mutex
	files map[string][]byte
	Fail  func(dest filestore.Destination) error
}

func New() *FileStore {
	return &FileStore{files: make(map[string][]byte)}
}

func (f *FileStore) Upload(ctx context.Context, data []byte, dest filestore.Destination) (model.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return model.FileRef{}, err
	}
	if f.Fail != nil {
		if err := f.Fail(dest); err != nil {
			return model.FileRef{}, err
		}
	}

	key := filestore.ObjectPath(dest, uuid.New().String())
	f.mu.Lock()
	f.files[key] = append([]byte(nil), data...)
	f.mu.Unlock()

	return model.FileRef{
		URL:      "memory://" + key,
		PublicID: key,
		FileName: dest.FileName,
	}, nil
}

// Len returns the number of stored files.
func (f *FileStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}
