package namecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PlainNames(t *testing.T) {
	tests := []string{
		"",
		"Root Entry",
		"\x05SummaryInformation",
		"WordDocument",
		"名前",
		"㟿䡁", // just outside both ranges
	}

	for _, name := range tests {
		got := Decode(name)
		assert.Equal(t, name, got.Display, "Decode(%q)", name)
		assert.False(t, got.IsTable, "Decode(%q).IsTable", name)
	}
}

func TestDecode_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		display string
		table   bool
	}{
		{"pair low bits first", string(rune(0x3800 + 1 + 2<<6)), "12", false},
		{"pair bounds", "㠀䟿", "00__", false},
		{"single", "䠀䠿", "0_", false},
		{"table marker", "䡀䠀", "0", true},
		{"table marker only", "䡀", "", true},
		{"marker not leading", "A䡀", "A䡀", false},
		{"mixed literal", "x䠁y", "x1y", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.raw)
			assert.Equal(t, tt.display, got.Display)
			assert.Equal(t, tt.table, got.IsTable)
		})
	}
}

func TestDecode_Idempotent(t *testing.T) {
	raw, err := Encode("MSysObjects", true)
	require.NoError(t, err)

	once := Decode(raw)
	twice := Decode(once.Display)
	assert.Equal(t, once.Display, twice.Display)
	assert.False(t, twice.IsTable)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		display string
		table   bool
	}{
		{"", false},
		{"a", false},
		{"ab", true},
		{"MSysObjects", true},
		{"_Property.Table_9", false},
		{"0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz._", true},
	}

	for _, tt := range tests {
		raw, err := Encode(tt.display, tt.table)
		require.NoError(t, err, "Encode(%q)", tt.display)

		n := len([]rune(tt.display))
		want := n/2 + n%2
		if tt.table {
			want++
		}
		assert.Len(t, []rune(raw), want, "encoded length of %q", tt.display)

		got := Decode(raw)
		assert.Equal(t, tt.display, got.Display)
		assert.Equal(t, tt.table, got.IsTable)
	}
}

func TestEncode_RejectsOutsideAlphabet(t *testing.T) {
	_, err := Encode("a b", false)
	assert.ErrorIs(t, err, ErrNotEncodable)
}

func TestSymbol_Bijective(t *testing.T) {
	seen := make(map[rune]uint32)
	for v := uint32(0); v < 64; v++ {
		r := Symbol(v)
		prev, dup := seen[r]
		require.False(t, dup, "values %d and %d share %q", prev, v, r)
		seen[r] = v

		back, ok := Value(r)
		require.True(t, ok)
		assert.Equal(t, v, back)
	}
	assert.Len(t, seen, 64)

	for _, r := range "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz._" {
		_, ok := seen[r]
		assert.True(t, ok, "alphabet character %q not produced", r)
	}
}
