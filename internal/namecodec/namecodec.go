// Package namecodec decodes the compressed entry names that Jet/ESE-derived
// producers store in CFB directory entries.
//
// Such producers pack names drawn from the alphabet 0-9A-Za-z._ into two
// private-use codepoint ranges so that long table names fit into the
// 31-character limit of a directory entry.
package namecodec

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TableMarker prefixes names that address a compressed table object.
	TableMarker rune = 0x4840

	pairBase   rune = 0x3800 // two symbols per codepoint
	pairEnd    rune = 0x4800
	singleBase rune = 0x4800 // one symbol per codepoint
	singleEnd  rune = 0x4840
)

// ErrNotEncodable is returned by Encode for characters outside the alphabet.
var ErrNotEncodable = errors.New("character outside the name alphabet")

// Name is a decoded directory entry name.
type Name struct {
	Display string
	IsTable bool
}

// Symbol maps a 6-bit value to its alphabet character.
func Symbol(v uint32) rune {
	switch {
	case v < 10:
		return '0' + rune(v)
	case v < 36:
		return 'A' + rune(v-10)
	case v < 62:
		return 'a' + rune(v-36)
	case v == 62:
		return '.'
	default:
		return '_'
	}
}

// Value is the inverse of Symbol.
func Value(r rune) (uint32, bool) {
	switch {
	case r >= '0' && r <= '9':
		return uint32(r - '0'), true
	case r >= 'A' && r <= 'Z':
		return uint32(r-'A') + 10, true
	case r >= 'a' && r <= 'z':
		return uint32(r-'a') + 36, true
	case r == '.':
		return 62, true
	case r == '_':
		return 63, true
	}
	return 0, false
}

// Decode expands a raw on-disk name. Codepoints outside both escape ranges
// are copied through, so plain names come back unchanged.
func Decode(raw string) Name {
	var b strings.Builder
	b.Grow(len(raw))

	isTable := false
	if strings.HasPrefix(raw, string(TableMarker)) {
		isTable = true
		raw = raw[len(string(TableMarker)):]
	}

	for _, c := range raw {
		switch {
		case c >= pairBase && c < pairEnd:
			v := uint32(c - pairBase)
			// low six bits come first
			b.WriteRune(Symbol(v & 0x3f))
			b.WriteRune(Symbol(v >> 6))
		case c >= singleBase && c < singleEnd:
			b.WriteRune(Symbol(uint32(c - singleBase)))
		default:
			b.WriteRune(c)
		}
	}

	return Name{Display: b.String(), IsTable: isTable}
}

// Encode packs display into the compressed form understood by Decode.
// Symbols are paired into the two-symbol range; an odd trailing symbol uses
// the single-symbol range.
func Encode(display string, isTable bool) (string, error) {
	symbols := []rune(display)

	var b strings.Builder
	if isTable {
		b.WriteRune(TableMarker)
	}
	for i := 0; i < len(symbols); i += 2 {
		lo, ok := Value(symbols[i])
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNotEncodable, symbols[i])
		}
		if i+1 == len(symbols) {
			b.WriteRune(singleBase + rune(lo))
			break
		}
		hi, ok := Value(symbols[i+1])
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNotEncodable, symbols[i+1])
		}
		b.WriteRune(pairBase + rune(lo|hi<<6))
	}
	return b.String(), nil
}
