// Package listing renders directory entries as ls-style lines.
package listing

import (
	"fmt"
	"io"
	"time"

	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/fatih/color"
)

// FormatSize scales n for the long listing. Each unit is chosen by a
// decimal threshold and divided by its binary multiple.
func FormatSize(n uint64) string {
	switch {
	case n >= 10_000_000_000:
		return fmt.Sprintf("%d GB", n/(1<<30))
	case n >= 100_000_000:
		return fmt.Sprintf("%d MB", n/(1<<20))
	case n >= 1_000_000:
		return fmt.Sprintf("%d kB", n/(1<<10))
	default:
		return fmt.Sprintf("%d B ", n)
	}
}

// FormatDate renders the calendar date of t in UTC. Times before the Unix
// epoch, including unset FILETIMEs, render as the epoch.
func FormatDate(t time.Time) string {
	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	return t.UTC().Format("2006-01-02")
}

// Format renders e under the given display name. Long mode adds kind, state
// bits, size and date, and a second line with the class identifier for
// storages.
func Format(name string, e storage.Entry, long bool) string {
	if !long {
		return name
	}
	return formatLong(e, name)
}

func formatLong(e storage.Entry, shown string) string {
	kind := '-'
	var size uint64
	if e.IsStorage() {
		kind = '+'
	} else {
		size = e.Size
	}
	line := fmt.Sprintf("%c%08x   %10s   %s   %s",
		kind, e.StateBits, FormatSize(size), FormatDate(e.LastModified()), shown)
	if e.IsStorage() {
		line += "\n " + e.CLSID.String()
	}
	return line
}

// Printer writes formatted entries to an output stream.
type Printer struct {
	w       io.Writer
	long    bool
	storage *color.Color
}

// NewPrinter creates a Printer. When colorize is set, storage names in long
// listings are highlighted.
func NewPrinter(w io.Writer, long, colorize bool) *Printer {
	c := color.New(color.FgBlue, color.Bold)
	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return &Printer{w: w, long: long, storage: c}
}

// Print writes one entry under name.
func (p *Printer) Print(name string, e storage.Entry) error {
	line := name
	if p.long {
		shown := name
		if e.IsStorage() {
			shown = p.storage.Sprint(name)
		}
		line = formatLong(e, shown)
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}
