// Package cfb reads Compound File Binary (OLE structured storage)
// containers and exposes them as a storage.Container.
//
// Only what the tool needs is supported: walking the directory tree,
// reading streams through the FAT and mini FAT, and rewriting storage
// class identifiers in place. Containers the parser does not understand are
// rejected outright.
package cfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/google/uuid"
)

// ErrFormat is returned for files that are not valid compound files.
var ErrFormat = errors.New("not a compound file")

type dirEntry struct {
	fields   dirEntryFields
	name     string
	path     string
	offset   int64 // absolute file offset of the 128-byte record
	children []int
}

// File is an open compound file.
type File struct {
	f        *os.File
	writable bool
	closed   bool

	hdr        header
	sectorSize int64
	fat        []uint32
	miniFat    []uint32
	miniChain  []uint32 // sectors holding the mini stream
	entries    []*dirEntry
}

// Open opens the compound file at path for reading.
func Open(path string) (*File, error) {
	return open(path, os.O_RDONLY)
}

// OpenRW opens the compound file at path for reading and in-place updates.
func OpenRW(path string) (*File, error) {
	return open(path, os.O_RDWR)
}

func open(path string, flag int) (*File, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	cf := &File{f: f, writable: flag == os.O_RDWR}
	if err := cf.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

func (cf *File) load() error {
	var raw [headerSize]byte
	if _, err := cf.f.ReadAt(raw[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: short header", ErrFormat)
		}
		return err
	}
	if err := binary.Read(bytes.NewReader(raw[:]), binary.LittleEndian, &cf.hdr); err != nil {
		return err
	}
	if err := cf.checkHeader(); err != nil {
		return err
	}
	cf.sectorSize = 1 << cf.hdr.SectorShift

	if err := cf.loadFat(); err != nil {
		return err
	}
	if err := cf.loadDirectory(); err != nil {
		return err
	}
	return cf.loadMiniFat()
}

func (cf *File) checkHeader() error {
	h := &cf.hdr
	if h.Signature != Magic {
		return fmt.Errorf("%w: bad signature", ErrFormat)
	}
	if h.ByteOrder != 0xFFFE {
		return fmt.Errorf("%w: byte order %#x", ErrFormat, h.ByteOrder)
	}
	switch {
	case h.MajorVersion == 3 && h.SectorShift == v3SectorShift:
	case h.MajorVersion == 4 && h.SectorShift == v4SectorShift:
	default:
		return fmt.Errorf("%w: version %d with sector shift %d", ErrFormat, h.MajorVersion, h.SectorShift)
	}
	if h.MiniSectorShift != miniSectorShift {
		return fmt.Errorf("%w: mini sector shift %d", ErrFormat, h.MiniSectorShift)
	}
	if h.MiniStreamCutoff != miniCutoff {
		return fmt.Errorf("%w: mini stream cutoff %d", ErrFormat, h.MiniStreamCutoff)
	}
	return nil
}

func (cf *File) sectorOffset(sect uint32) int64 {
	return (int64(sect) + 1) * cf.sectorSize
}

func (cf *File) readSector(sect uint32) ([]byte, error) {
	if sect > maxRegSect {
		return nil, fmt.Errorf("%w: sector id %#x", ErrFormat, sect)
	}
	buf := make([]byte, cf.sectorSize)
	if _, err := cf.f.ReadAt(buf, cf.sectorOffset(sect)); err != nil {
		return nil, fmt.Errorf("reading sector %d: %w", sect, err)
	}
	return buf, nil
}

func sectorWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}

// loadFat collects FAT sector IDs from the header and the DIFAT chain and
// reads the FAT itself.
func (cf *File) loadFat() error {
	n := int(cf.hdr.NumFatSectors)
	ids := make([]uint32, 0, n)
	for _, id := range cf.hdr.Difat {
		if len(ids) == n {
			break
		}
		ids = append(ids, id)
	}

	perDifat := int(cf.sectorSize/4) - 1
	next := cf.hdr.FirstDifatSector
	for i := uint32(0); i < cf.hdr.NumDifatSectors && len(ids) < n; i++ {
		logger.Debugf("DIFAT sector %d at %#x", i, next)
		b, err := cf.readSector(next)
		if err != nil {
			return err
		}
		words := sectorWords(b)
		for _, id := range words[:perDifat] {
			if len(ids) == n {
				break
			}
			ids = append(ids, id)
		}
		next = words[perDifat]
	}
	if len(ids) != n {
		return fmt.Errorf("%w: found %d of %d FAT sectors", ErrFormat, len(ids), n)
	}

	cf.fat = make([]uint32, 0, n*int(cf.sectorSize/4))
	for _, id := range ids {
		b, err := cf.readSector(id)
		if err != nil {
			return err
		}
		cf.fat = append(cf.fat, sectorWords(b)...)
	}
	logger.Debugf("FAT holds %d entries in %d sectors", len(cf.fat), n)
	return nil
}

// chain follows a sector chain through table starting at start.
func chain(table []uint32, start uint32) ([]uint32, error) {
	var sects []uint32
	for sect := start; sect != endOfChain; {
		if int(sect) >= len(table) {
			return nil, fmt.Errorf("%w: sector %#x outside allocation table", ErrFormat, sect)
		}
		if len(sects) > len(table) {
			return nil, fmt.Errorf("%w: sector chain loops", ErrFormat)
		}
		sects = append(sects, sect)
		sect = table[sect]
	}
	return sects, nil
}

func (cf *File) loadDirectory() error {
	sects, err := chain(cf.fat, cf.hdr.FirstDirSector)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	perSector := int(cf.sectorSize / dirEntrySize)
	cf.entries = make([]*dirEntry, 0, len(sects)*perSector)

	for _, sect := range sects {
		b, err := cf.readSector(sect)
		if err != nil {
			return err
		}
		for i := 0; i < perSector; i++ {
			e := &dirEntry{offset: cf.sectorOffset(sect) + int64(i*dirEntrySize)}
			r := bytes.NewReader(b[i*dirEntrySize : (i+1)*dirEntrySize])
			if err := binary.Read(r, binary.LittleEndian, &e.fields); err != nil {
				return err
			}
			if e.fields.NameLength > 64 {
				return fmt.Errorf("%w: directory entry %d name length %d", ErrFormat, len(cf.entries), e.fields.NameLength)
			}
			e.name = decodeName(e.fields.Name[:], e.fields.NameLength)
			cf.entries = append(cf.entries, e)
		}
	}
	if len(cf.entries) == 0 || cf.entries[0].fields.Type != typeRoot {
		return fmt.Errorf("%w: missing root entry", ErrFormat)
	}

	visited := make(map[uint32]bool)
	return cf.buildTree(0, "", visited)
}

func decodeName(units []uint16, length uint16) string {
	n := int(length)/2 - 1
	if n <= 0 {
		return ""
	}
	return string(utf16.Decode(units[:n]))
}

// buildTree records the children of storage sid in red-black tree order.
func (cf *File) buildTree(sid uint32, path string, visited map[uint32]bool) error {
	parent := cf.entries[sid]
	parent.path = path

	var walk func(id uint32) error
	walk = func(id uint32) error {
		if id == noStream {
			return nil
		}
		if int(id) >= len(cf.entries) {
			return fmt.Errorf("%w: directory entry %d out of range", ErrFormat, id)
		}
		if visited[id] {
			return fmt.Errorf("%w: directory entry %d referenced twice", ErrFormat, id)
		}
		visited[id] = true
		e := cf.entries[id]
		if err := walk(e.fields.Left); err != nil {
			return err
		}
		parent.children = append(parent.children, int(id))
		return walk(e.fields.Right)
	}
	visited[sid] = true
	if err := walk(parent.fields.Child); err != nil {
		return err
	}

	for _, id := range parent.children {
		child := cf.entries[id]
		switch child.fields.Type {
		case typeStorage:
			if err := cf.buildTree(uint32(id), storage.Join(path, child.name), visited); err != nil {
				return err
			}
		case typeStream:
			child.path = storage.Join(path, child.name)
		default:
			return fmt.Errorf("%w: unexpected object type %d for %q", ErrFormat, child.fields.Type, child.name)
		}
	}
	return nil
}

func (cf *File) loadMiniFat() error {
	root := cf.entries[0]
	if cf.hdr.NumMiniFatSectors == 0 || cf.size(root) == 0 {
		return nil
	}
	sects, err := chain(cf.fat, cf.hdr.FirstMiniFatSector)
	if err != nil {
		return fmt.Errorf("mini FAT: %w", err)
	}
	for _, sect := range sects {
		b, err := cf.readSector(sect)
		if err != nil {
			return err
		}
		cf.miniFat = append(cf.miniFat, sectorWords(b)...)
	}
	cf.miniChain, err = chain(cf.fat, root.fields.StartSector)
	if err != nil {
		return fmt.Errorf("mini stream: %w", err)
	}
	logger.Debugf("mini FAT holds %d entries, mini stream spans %d sectors", len(cf.miniFat), len(cf.miniChain))
	return nil
}

// size returns the stream size of e. Version 3 files only use the low 32
// bits of the size field.
func (cf *File) size(e *dirEntry) uint64 {
	if cf.hdr.MajorVersion == 3 {
		return e.fields.Size & 0xFFFFFFFF
	}
	return e.fields.Size
}

func (cf *File) toEntry(e *dirEntry) storage.Entry {
	out := storage.Entry{
		Name:      e.name,
		Path:      e.path,
		Created:   filetimeToTime(e.fields.Created),
		Modified:  filetimeToTime(e.fields.Modified),
		StateBits: e.fields.StateBits,
		CLSID:     guidToUUID(e.fields.CLSID),
	}
	switch e.fields.Type {
	case typeRoot:
		out.Kind = storage.KindRoot
	case typeStorage:
		out.Kind = storage.KindStorage
	default:
		out.Kind = storage.KindStream
		out.Size = cf.size(e)
	}
	return out
}

func (cf *File) lookup(path string) (*dirEntry, error) {
	if cf.closed {
		return nil, storage.ErrClosed
	}
	node := cf.entries[0]
	for _, name := range storage.Split(path) {
		var next *dirEntry
		for _, id := range node.children {
			if strings.EqualFold(cf.entries[id].name, name) {
				next = cf.entries[id]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		node = next
	}
	return node, nil
}

// Root returns the root storage entry.
func (cf *File) Root() storage.Entry {
	return cf.toEntry(cf.entries[0])
}

// Entry returns the entry at path.
func (cf *File) Entry(path string) (storage.Entry, error) {
	e, err := cf.lookup(path)
	if err != nil {
		return storage.Entry{}, err
	}
	return cf.toEntry(e), nil
}

// ReadStorage lists the immediate children of the storage at path in
// directory order.
func (cf *File) ReadStorage(path string) ([]storage.Entry, error) {
	e, err := cf.lookup(path)
	if err != nil {
		return nil, err
	}
	if e.fields.Type == typeStream {
		return nil, fmt.Errorf("%s: %w", path, storage.ErrNotStorage)
	}
	entries := make([]storage.Entry, len(e.children))
	for i, id := range e.children {
		entries[i] = cf.toEntry(cf.entries[id])
	}
	return entries, nil
}

// OpenStream returns a reader over the stream at path.
func (cf *File) OpenStream(path string) (io.ReadCloser, error) {
	e, err := cf.lookup(path)
	if err != nil {
		return nil, err
	}
	if e.fields.Type != typeStream {
		return nil, fmt.Errorf("%s: %w", path, storage.ErrNotStream)
	}
	size := cf.size(e)
	if size == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if size < miniCutoff {
		sects, err := chain(cf.miniFat, e.fields.StartSector)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &streamReader{cf: cf, sects: sects, sectorSize: miniSectorSize, size: int64(size), mini: true}, nil
	}
	sects, err := chain(cf.fat, e.fields.StartSector)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &streamReader{cf: cf, sects: sects, sectorSize: cf.sectorSize, size: int64(size)}, nil
}

// SetStorageCLSID rewrites the class identifier of the storage at path.
// The change is written to the file immediately; Flush syncs it to disk.
func (cf *File) SetStorageCLSID(path string, id uuid.UUID) error {
	e, err := cf.lookup(path)
	if err != nil {
		return err
	}
	if e.fields.Type == typeStream {
		return fmt.Errorf("%s: %w", path, storage.ErrNotStorage)
	}
	if !cf.writable {
		return storage.ErrReadOnly
	}
	guid := uuidToGUID(id)
	if _, err := cf.f.WriteAt(guid[:], e.offset+clsidOffset); err != nil {
		return fmt.Errorf("%s: writing class id: %w", path, err)
	}
	e.fields.CLSID = guid
	logger.Debugf("class id of %q set to %s", e.name, id)
	return nil
}

// Flush commits pending writes to stable storage.
func (cf *File) Flush() error {
	if cf.closed {
		return storage.ErrClosed
	}
	if !cf.writable {
		return nil
	}
	return cf.f.Sync()
}

// Close releases the underlying file.
func (cf *File) Close() error {
	if cf.closed {
		return nil
	}
	cf.closed = true
	return cf.f.Close()
}

type streamReader struct {
	cf         *File
	sects      []uint32
	sectorSize int64
	size       int64
	pos        int64
	mini       bool
}

// fileOffset maps a position in the stream to an absolute file offset and
// the number of bytes readable there without crossing a sector.
func (r *streamReader) fileOffset(pos int64) (int64, int64, error) {
	idx := pos / r.sectorSize
	if idx >= int64(len(r.sects)) {
		return 0, 0, fmt.Errorf("%w: stream shorter than declared size", ErrFormat)
	}
	within := pos % r.sectorSize
	avail := r.sectorSize - within
	if !r.mini {
		return r.cf.sectorOffset(r.sects[idx]) + within, avail, nil
	}

	// Mini sectors live inside the mini stream, itself a regular chain.
	miniPos := int64(r.sects[idx])*miniSectorSize + within
	big := miniPos / r.cf.sectorSize
	if big >= int64(len(r.cf.miniChain)) {
		return 0, 0, fmt.Errorf("%w: mini sector outside mini stream", ErrFormat)
	}
	return r.cf.sectorOffset(r.cf.miniChain[big]) + miniPos%r.cf.sectorSize, avail, nil
}

func (r *streamReader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	off, avail, err := r.fileOffset(r.pos)
	if err != nil {
		return 0, err
	}
	n := int64(len(p))
	if n > avail {
		n = avail
	}
	if rem := r.size - r.pos; n > rem {
		n = rem
	}
	read, err := r.cf.f.ReadAt(p[:n], off)
	r.pos += int64(read)
	if err == io.EOF && int64(read) == n {
		err = nil
	}
	return read, err
}

func (r *streamReader) Close() error {
	r.pos = r.size
	return nil
}
