package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type memNode struct {
	entry    Entry
	data     []byte
	children []*memNode
}

// MemContainer implements Container over an in-memory tree. Children are
// enumerated in insertion order.
type MemContainer struct {
	root   *memNode
	closed bool
}

// NewMemContainer creates an empty tree holding only the root storage.
func NewMemContainer() *MemContainer {
	return &MemContainer{
		root: &memNode{entry: Entry{Name: "Root Entry", Kind: KindRoot}},
	}
}

func (m *MemContainer) lookup(path string) (*memNode, error) {
	if m.closed {
		return nil, ErrClosed
	}
	node := m.root
	for _, name := range Split(path) {
		var next *memNode
		for _, child := range node.children {
			if strings.EqualFold(child.entry.Name, name) {
				next = child
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		node = next
	}
	return node, nil
}

func (m *MemContainer) add(path string, kind Kind, data []byte) (*memNode, error) {
	names := Split(path)
	if len(names) == 0 {
		return nil, fmt.Errorf("cannot add the root storage")
	}
	parentPath := strings.Join(names[:len(names)-1], "/")
	parent, err := m.lookup(parentPath)
	if err != nil {
		return nil, err
	}
	if !parent.entry.IsStorage() {
		return nil, fmt.Errorf("%s: %w", parentPath, ErrNotStorage)
	}
	name := names[len(names)-1]
	for _, child := range parent.children {
		if strings.EqualFold(child.entry.Name, name) {
			return nil, fmt.Errorf("%s: duplicate entry name", path)
		}
	}
	node := &memNode{
		entry: Entry{Name: name, Path: Clean(path), Kind: kind},
		data:  data,
	}
	if kind == KindStream {
		node.entry.Size = uint64(len(data))
	}
	parent.children = append(parent.children, node)
	return node, nil
}

// AddStorage creates a storage at path. The parent must already exist.
func (m *MemContainer) AddStorage(path string, clsid uuid.UUID) error {
	node, err := m.add(path, KindStorage, nil)
	if err != nil {
		return err
	}
	node.entry.CLSID = clsid
	return nil
}

// AddStream creates a stream at path holding data.
func (m *MemContainer) AddStream(path string, data []byte) error {
	_, err := m.add(path, KindStream, data)
	return err
}

// SetTimes sets the timestamps of the entry at path.
func (m *MemContainer) SetTimes(path string, created, modified time.Time) error {
	node, err := m.lookup(path)
	if err != nil {
		return err
	}
	node.entry.Created = created
	node.entry.Modified = modified
	return nil
}

// SetStateBits sets the state bits of the entry at path.
func (m *MemContainer) SetStateBits(path string, bits uint32) error {
	node, err := m.lookup(path)
	if err != nil {
		return err
	}
	node.entry.StateBits = bits
	return nil
}

// Root returns the root storage entry.
func (m *MemContainer) Root() Entry {
	return m.root.entry
}

// Entry returns the entry at path.
func (m *MemContainer) Entry(path string) (Entry, error) {
	node, err := m.lookup(path)
	if err != nil {
		return Entry{}, err
	}
	return node.entry, nil
}

// ReadStorage lists the immediate children of the storage at path.
func (m *MemContainer) ReadStorage(path string) ([]Entry, error) {
	node, err := m.lookup(path)
	if err != nil {
		return nil, err
	}
	if !node.entry.IsStorage() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotStorage)
	}
	entries := make([]Entry, len(node.children))
	for i, child := range node.children {
		entries[i] = child.entry
	}
	return entries, nil
}

// OpenStream returns a reader over the stream at path.
func (m *MemContainer) OpenStream(path string) (io.ReadCloser, error) {
	node, err := m.lookup(path)
	if err != nil {
		return nil, err
	}
	if !node.entry.IsStream() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotStream)
	}
	return io.NopCloser(bytes.NewReader(node.data)), nil
}

// SetStorageCLSID replaces the class identifier of the storage at path.
func (m *MemContainer) SetStorageCLSID(path string, id uuid.UUID) error {
	node, err := m.lookup(path)
	if err != nil {
		return err
	}
	if !node.entry.IsStorage() {
		return fmt.Errorf("%s: %w", path, ErrNotStorage)
	}
	node.entry.CLSID = id
	return nil
}

// Flush is a no-op; changes are applied immediately.
func (m *MemContainer) Flush() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the container. Later calls fail with ErrClosed.
func (m *MemContainer) Close() error {
	m.closed = true
	return nil
}
