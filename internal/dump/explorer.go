package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CageChen/cfbtool/internal/namecodec"
	"github.com/CageChen/cfbtool/internal/storage"
)

// DefaultQuit ends an explorer session.
const DefaultQuit = "q"

// backInput returns to the previous level when back navigation is enabled.
const backInput = ".."

// ErrBadSelection is returned when explorer input is neither the quit
// sentinel nor an index into the current listing.
var ErrBadSelection = errors.New("selection was not a valid number or quit")

// Frame is one level of the explorer: a storage path and its children.
type Frame struct {
	Path    string
	Entries []storage.Entry
}

// Explorer walks a container one storage at a time and extracts a single
// stream chosen by the user.
//
// Each round lists the current frame and reads a selection. Selecting a
// storage descends into it, selecting a stream asks for a destination file,
// copies the stream there and ends the session. The quit sentinel ends the
// session without side effects. Any other input is fatal.
type Explorer struct {
	c   storage.Container
	in  *bufio.Reader
	out io.Writer

	// Quit is the input that ends the session.
	Quit string
	// AllowBack keeps visited frames so ".." returns to the parent.
	AllowBack bool

	stack []Frame
}

// NewExplorer creates an explorer reading selections from in and writing
// prompts to out.
func NewExplorer(c storage.Container, in io.Reader, out io.Writer) *Explorer {
	return &Explorer{
		c:    c,
		in:   bufio.NewReader(in),
		out:  out,
		Quit: DefaultQuit,
	}
}

// Frame returns the level currently displayed.
func (x *Explorer) Frame() Frame {
	if len(x.stack) == 0 {
		return Frame{}
	}
	return x.stack[len(x.stack)-1]
}

func (x *Explorer) load(path string) (Frame, error) {
	entries, err := Children(x.c, path)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Path: storage.Clean(path), Entries: entries}, nil
}

// descend replaces the current frame, or pushes onto it when back
// navigation is enabled.
func (x *Explorer) descend(f Frame) {
	if x.AllowBack || len(x.stack) == 0 {
		x.stack = append(x.stack, f)
		return
	}
	x.stack[len(x.stack)-1] = f
}

func (x *Explorer) readLine() (string, error) {
	line, err := x.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", fmt.Errorf("reading selection: %w", io.ErrUnexpectedEOF)
		}
	}
	return strings.TrimSpace(line), nil
}

func (x *Explorer) list(f Frame) {
	for i, e := range f.Entries {
		fmt.Fprintf(x.out, "[%d] %s\n", i, namecodec.Decode(e.Name).Display)
	}
	fmt.Fprintln(x.out, "Inspect?: ")
}

// Run starts the session at the storage at path.
func (x *Explorer) Run(path string) error {
	f, err := x.load(path)
	if err != nil {
		return err
	}
	x.stack = x.stack[:0]
	x.descend(f)

	for {
		cur := x.Frame()
		x.list(cur)

		input, err := x.readLine()
		if err != nil {
			return err
		}
		if input == x.Quit {
			return nil
		}
		if x.AllowBack && input == backInput {
			if len(x.stack) > 1 {
				x.stack = x.stack[:len(x.stack)-1]
			}
			continue
		}

		idx, err := strconv.ParseUint(input, 10, 0)
		if err != nil || idx >= uint64(len(cur.Entries)) {
			return fmt.Errorf("%w: %q", ErrBadSelection, input)
		}
		sel := cur.Entries[idx]

		if sel.IsStorage() {
			next, err := x.load(sel.Path)
			if err != nil {
				return err
			}
			x.descend(next)
			continue
		}
		return x.extract(sel)
	}
}

func (x *Explorer) extract(e storage.Entry) error {
	fmt.Fprintln(x.out, "Stream dump location: ")
	dest, err := x.readLine()
	if err != nil {
		return err
	}
	fmt.Fprintf(x.out, "Dumping stream [%s] to [%s]\n", namecodec.Decode(e.Name).Display, dest)

	r, err := x.c.OpenStream(e.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := createFile(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", e.Path, err)
	}
	return f.Close()
}
