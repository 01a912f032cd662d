// Package storage defines the storage/stream tree abstraction that the
// listing and extraction code walks, independent of how a container is
// parsed.
package storage

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tells streams, storages and the root storage apart.
type Kind int

// Entry kinds.
const (
	KindStream Kind = iota
	KindStorage
	KindRoot
)

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindStorage:
		return "storage"
	case KindRoot:
		return "root"
	}
	return "unknown"
}

// Errors returned by Container implementations.
var (
	ErrNotFound   = errors.New("entry not found")
	ErrNotStream  = errors.New("entry is not a stream")
	ErrNotStorage = errors.New("entry is not a storage")
	ErrReadOnly   = errors.New("container opened read-only")
	ErrClosed     = errors.New("container closed")
)

// Entry is a snapshot of one directory entry.
type Entry struct {
	// Name is the raw on-disk name, possibly compressed.
	Name      string
	Path      string
	Kind      Kind
	Size      uint64
	Created   time.Time
	Modified  time.Time
	StateBits uint32
	CLSID     uuid.UUID
}

// IsStream reports whether e holds bytes.
func (e Entry) IsStream() bool { return e.Kind == KindStream }

// IsStorage reports whether e can hold children. The root counts.
func (e Entry) IsStorage() bool { return e.Kind == KindStorage || e.Kind == KindRoot }

// IsRoot reports whether e is the root storage.
func (e Entry) IsRoot() bool { return e.Kind == KindRoot }

// LastModified returns the later of the created and modified timestamps.
func (e Entry) LastModified() time.Time {
	if e.Created.After(e.Modified) {
		return e.Created
	}
	return e.Modified
}

// Container abstracts a storage/stream tree so callers can work with either
// a CFB file on disk or an in-memory tree.
type Container interface {
	Root() Entry
	Entry(path string) (Entry, error)
	ReadStorage(path string) ([]Entry, error)
	OpenStream(path string) (io.ReadCloser, error)
	SetStorageCLSID(path string, id uuid.UUID) error
	Flush() error
	Close() error
}

// Split breaks a container path into its names. A leading slash and empty
// segments are ignored, so "", "/" and "//" all name the root.
func Split(path string) []string {
	var names []string
	for _, name := range strings.Split(path, "/") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Clean returns the canonical form of path: no leading, trailing or
// doubled slashes.
func Clean(path string) string {
	return strings.Join(Split(path), "/")
}

// Join appends a child name to a container path.
func Join(parent, name string) string {
	parent = Clean(parent)
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
