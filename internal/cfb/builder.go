package cfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/CageChen/cfbtool/internal/storage"
)

// ErrTooLarge is returned by Write when the FAT would not fit in the header
// DIFAT.
var ErrTooLarge = errors.New("container too large to build")

const sectorSize = 1 << v3SectorShift

type buildNode struct {
	entry storage.Entry
	data  []byte
	left  uint32
	right uint32
	child uint32
	start uint32
}

type builder struct {
	nodes   []*buildNode
	mini    bytes.Buffer
	miniFat []uint32
}

// Create writes src as a new version 3 compound file at path. It fails if
// path already exists.
func Create(path string, src storage.Container) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write serialises the tree held by src as a version 3 compound file.
// Streams below the mini stream cutoff are packed into the mini stream.
func Write(w io.Writer, src storage.Container) error {
	b := &builder{}
	root := &buildNode{entry: src.Root(), child: noStream, left: noStream, right: noStream}
	b.nodes = append(b.nodes, root)
	if err := b.collect(src, 0); err != nil {
		return err
	}
	return b.write(w)
}

// collect appends the children of node idx, read from src, and links them
// into a balanced binary tree in directory order.
func (b *builder) collect(src storage.Container, idx int) error {
	children, err := src.ReadStorage(b.nodes[idx].entry.Path)
	if err != nil {
		return err
	}
	sort.SliceStable(children, func(i, j int) bool {
		return compareNames(children[i].Name, children[j].Name) < 0
	})

	ids := make([]int, 0, len(children))
	for _, child := range children {
		if n := len(utf16.Encode([]rune(child.Name))); n > maxNameUnits {
			return fmt.Errorf("%s: name longer than %d UTF-16 units", child.Path, maxNameUnits)
		}
		node := &buildNode{entry: child, child: noStream, left: noStream, right: noStream, start: endOfChain}
		if child.IsStream() {
			r, err := src.OpenStream(child.Path)
			if err != nil {
				return err
			}
			node.data, err = io.ReadAll(r)
			_ = r.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", child.Path, err)
			}
		}
		b.nodes = append(b.nodes, node)
		ids = append(ids, len(b.nodes)-1)
	}
	b.nodes[idx].child = b.link(ids)

	for _, id := range ids {
		if b.nodes[id].entry.IsStorage() {
			if err := b.collect(src, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// link arranges sorted ids into a balanced tree and returns its root.
func (b *builder) link(ids []int) uint32 {
	if len(ids) == 0 {
		return noStream
	}
	mid := len(ids) / 2
	n := b.nodes[ids[mid]]
	n.left = b.link(ids[:mid])
	n.right = b.link(ids[mid+1:])
	return uint32(ids[mid])
}

// compareNames orders names the way directory trees are sorted: shorter
// names first, then by upper-cased code units.
func compareNames(a, b string) int {
	ua := utf16.Encode([]rune(strings.ToUpper(a)))
	ub := utf16.Encode([]rune(strings.ToUpper(b)))
	if len(ua) != len(ub) {
		return len(ua) - len(ub)
	}
	for i := range ua {
		if ua[i] != ub[i] {
			return int(ua[i]) - int(ub[i])
		}
	}
	return 0
}

func sectorsFor(n int) int {
	return (n + sectorSize - 1) / sectorSize
}

func (b *builder) write(w io.Writer) error {
	// Pack small streams into the mini stream.
	var large []*buildNode
	for _, n := range b.nodes[1:] {
		if !n.entry.IsStream() || len(n.data) == 0 {
			continue
		}
		if len(n.data) >= miniCutoff {
			large = append(large, n)
			continue
		}
		n.start = uint32(b.mini.Len() / miniSectorSize)
		count := (len(n.data) + miniSectorSize - 1) / miniSectorSize
		for i := 0; i < count; i++ {
			next := uint32(len(b.miniFat) + 1)
			if i == count-1 {
				next = endOfChain
			}
			b.miniFat = append(b.miniFat, next)
		}
		b.mini.Write(n.data)
		if pad := b.mini.Len() % miniSectorSize; pad != 0 {
			b.mini.Write(make([]byte, miniSectorSize-pad))
		}
	}

	dirSectors := sectorsFor(len(b.nodes) * dirEntrySize)
	miniFatSectors := sectorsFor(len(b.miniFat) * 4)
	miniSectors := sectorsFor(b.mini.Len())
	dataSectors := 0
	for _, n := range large {
		dataSectors += sectorsFor(len(n.data))
	}

	payload := dirSectors + miniFatSectors + miniSectors + dataSectors
	fatSectors := 1
	for fatSectors*(sectorSize/4) < payload+fatSectors {
		fatSectors++
	}
	if fatSectors > headerDifatLen {
		return ErrTooLarge
	}
	total := payload + fatSectors

	fat := make([]uint32, fatSectors*(sectorSize/4))
	for i := range fat {
		fat[i] = freeSect
	}
	next := uint32(0)
	run := func(count int, mark uint32) uint32 {
		if count == 0 {
			return endOfChain
		}
		start := next
		for i := 0; i < count; i++ {
			switch {
			case mark != 0:
				fat[next] = mark
			case i == count-1:
				fat[next] = endOfChain
			default:
				fat[next] = next + 1
			}
			next++
		}
		return start
	}

	hdr := header{
		Signature:         Magic,
		MinorVersion:      0x003E,
		MajorVersion:      3,
		ByteOrder:         0xFFFE,
		SectorShift:       v3SectorShift,
		MiniSectorShift:   miniSectorShift,
		NumFatSectors:     uint32(fatSectors),
		MiniStreamCutoff:  miniCutoff,
		NumMiniFatSectors: uint32(miniFatSectors),
		FirstDifatSector:  endOfChain,
	}
	for i := range hdr.Difat {
		hdr.Difat[i] = freeSect
	}
	fatStart := run(fatSectors, fatSect)
	for i := 0; i < fatSectors; i++ {
		hdr.Difat[i] = fatStart + uint32(i)
	}
	hdr.FirstDirSector = run(dirSectors, 0)
	hdr.FirstMiniFatSector = run(miniFatSectors, 0)
	b.nodes[0].start = run(miniSectors, 0)
	for _, n := range large {
		n.start = run(sectorsFor(len(n.data)), 0)
	}
	logger.Debugf("building %d sectors: %d FAT, %d directory, %d mini FAT, %d mini stream, %d data",
		total, fatSectors, dirSectors, miniFatSectors, miniSectors, dataSectors)

	out := &sectorWriter{w: w}
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, fat); err != nil {
		return err
	}
	for _, n := range b.nodes {
		if err := binary.Write(out, binary.LittleEndian, b.fields(n)); err != nil {
			return err
		}
	}
	empty := dirEntryFields{Left: noStream, Right: noStream, Child: noStream}
	for i := len(b.nodes); i < dirSectors*(sectorSize/dirEntrySize); i++ {
		if err := binary.Write(out, binary.LittleEndian, &empty); err != nil {
			return err
		}
	}
	if miniFatSectors > 0 {
		for len(b.miniFat) < miniFatSectors*(sectorSize/4) {
			b.miniFat = append(b.miniFat, freeSect)
		}
		if err := binary.Write(out, binary.LittleEndian, b.miniFat); err != nil {
			return err
		}
	}
	if _, err := out.Write(b.mini.Bytes()); err != nil {
		return err
	}
	if err := out.pad(); err != nil {
		return err
	}
	for _, n := range large {
		if _, err := out.Write(n.data); err != nil {
			return err
		}
		if err := out.pad(); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) fields(n *buildNode) *dirEntryFields {
	f := &dirEntryFields{
		Color:       colorBlack,
		Left:        n.left,
		Right:       n.right,
		Child:       n.child,
		CLSID:       uuidToGUID(n.entry.CLSID),
		StateBits:   n.entry.StateBits,
		Created:     timeToFiletime(n.entry.Created),
		Modified:    timeToFiletime(n.entry.Modified),
		StartSector: n.start,
	}
	units := utf16.Encode([]rune(n.entry.Name))
	copy(f.Name[:], units)
	f.NameLength = uint16((len(units) + 1) * 2)

	switch n.entry.Kind {
	case storage.KindRoot:
		f.Type = typeRoot
		f.Size = uint64(b.mini.Len())
	case storage.KindStorage:
		f.Type = typeStorage
		f.StartSector = 0
	default:
		f.Type = typeStream
		f.Size = uint64(len(n.data))
		f.CLSID = [16]byte{}
	}
	return f
}

// sectorWriter tracks the write position so sections can be padded to a
// sector boundary.
type sectorWriter struct {
	w io.Writer
	n int64
}

func (s *sectorWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	return n, err
}

func (s *sectorWriter) pad() error {
	rem := s.n % sectorSize
	if rem == 0 {
		return nil
	}
	_, err := s.Write(make([]byte, sectorSize-rem))
	return err
}
