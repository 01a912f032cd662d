package cfb

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Magic is the signature every compound file starts with.
var Magic = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Special sector IDs.
const (
	maxRegSect uint32 = 0xFFFFFFFA
	difSect    uint32 = 0xFFFFFFFC
	fatSect    uint32 = 0xFFFFFFFD
	endOfChain uint32 = 0xFFFFFFFE
	freeSect   uint32 = 0xFFFFFFFF
)

// noStream marks an absent sibling or child in the directory tree.
const noStream uint32 = 0xFFFFFFFF

// Directory entry object types.
const (
	typeEmpty   uint8 = 0
	typeStorage uint8 = 1
	typeStream  uint8 = 2
	typeRoot    uint8 = 5
)

const (
	headerSize      = 512
	dirEntrySize    = 128
	miniSectorSize  = 64
	miniCutoff      = 4096
	headerDifatLen  = 109
	maxNameUnits    = 31
	clsidOffset     = 80 // within a directory entry
	colorBlack      = 1
	filetimeToUnix  = 11644473600
	filetimePerSec  = 10_000_000
	v3SectorShift   = 9
	v4SectorShift   = 12
	miniSectorShift = 6
)

type header struct {
	Signature          [8]byte
	CLSID              [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMiniFatSector uint32
	NumMiniFatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32
	Difat              [headerDifatLen]uint32
}

type dirEntryFields struct {
	Name        [32]uint16
	NameLength  uint16
	Type        uint8
	Color       uint8
	Left        uint32
	Right       uint32
	Child       uint32
	CLSID       [16]byte
	StateBits   uint32
	Created     uint64
	Modified    uint64
	StartSector uint32
	Size        uint64
}

// guidToUUID converts the on-disk GUID layout (first three groups little
// endian) to the canonical byte order.
func guidToUUID(b [16]byte) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(u[8:], b[8:])
	return u
}

func uuidToGUID(u uuid.UUID) [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(b[8:], u[8:])
	return b
}

// filetimeToTime converts a Windows FILETIME. Zero stays the zero time.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	secs := int64(ft/filetimePerSec) - filetimeToUnix
	nanos := int64(ft%filetimePerSec) * 100
	return time.Unix(secs, nanos).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	secs := t.Unix() + filetimeToUnix
	if secs < 0 {
		return 0
	}
	return uint64(secs)*filetimePerSec + uint64(t.Nanosecond()/100)
}
