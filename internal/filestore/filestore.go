package filestore

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/jwalitptl/frontdesk-api/internal/model"
)

// Destination tells the file store where an upload belongs.
type Destination struct {
	Folder      string
	FileName    string
	ContentType string
}

// FileStore uploads bytes and returns a stable reference. A reference is only
// returned once the upload has fully completed.
type FileStore interface {
	Upload(ctx context.Context, data []byte, dest Destination) (model.FileRef, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectPath builds the object key for dest, prefixed with a unique token so
// equal file names never overwrite each other.
func ObjectPath(dest Destination, token string) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(path.Base(dest.FileName)), "_")
	if name == "" || name == "." {
		name = "file"
	}
	return path.Join(strings.Trim(dest.Folder, "/"), token+"_"+name)
}
