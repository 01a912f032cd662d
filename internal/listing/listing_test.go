package listing

import (
	"bytes"
	"testing"
	"time"

	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size uint64
		want string
	}{
		{0, "0 B "},
		{9_999, "9999 B "},
		{999_999, "999999 B "},
		{1_000_000, "976 kB"},
		{99_999_999, "97656 kB"},
		{100_000_000, "95 MB"},
		{9_999_999_999, "9536 MB"},
		{10_000_000_000, "9 GB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.size); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "1970-01-01", FormatDate(time.Time{}))
	assert.Equal(t, "2023-07-09", FormatDate(time.Date(2023, 7, 9, 23, 0, 0, 0, time.UTC)))
}

func TestFormat_Short(t *testing.T) {
	e := storage.Entry{Name: "Stream", Kind: storage.KindStream, Size: 12}
	assert.Equal(t, "Stream", Format("Stream", e, false))
	assert.Equal(t, ".", Format(".", e, false))
}

func TestFormat_LongStream(t *testing.T) {
	e := storage.Entry{
		Name:      "Book",
		Kind:      storage.KindStream,
		Size:      1_000_000,
		StateBits: 0xbeef,
		Created:   time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC),
		Modified:  time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, "-0000beef       976 kB   2021-03-04   Book", Format("Book", e, true))
}

func TestFormat_LongStorage(t *testing.T) {
	e := storage.Entry{
		Name:    "Macros",
		Kind:    storage.KindStorage,
		Size:    4096, // ignored for storages
		Created: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
		CLSID:   uuid.MustParse("00020906-0000-0000-C000-000000000046"),
	}

	want := "+00000000         0 B    2022-12-31   Macros\n 00020906-0000-0000-c000-000000000046"
	assert.Equal(t, want, Format("Macros", e, true))
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, false)

	require.NoError(t, p.Print(".", storage.Entry{Kind: storage.KindRoot}))
	require.NoError(t, p.Print("Data", storage.Entry{Kind: storage.KindStream, Size: 3}))

	want := "+00000000         0 B    1970-01-01   .\n 00000000-0000-0000-0000-000000000000\n" +
		"-00000000         3 B    1970-01-01   Data\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_Color(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)

	require.NoError(t, p.Print("Dir", storage.Entry{Kind: storage.KindStorage}))
	assert.Contains(t, buf.String(), "\x1b[")

	buf.Reset()
	short := NewPrinter(&buf, false, true)
	require.NoError(t, short.Print("Dir", storage.Entry{Kind: storage.KindStorage}))
	assert.Equal(t, "Dir\n", buf.String())
}
