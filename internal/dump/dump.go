// Package dump extracts container streams to the local filesystem, either
// by walking a whole tree or through an interactive explorer.
package dump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CageChen/cfbtool/internal/namecodec"
	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSuffix is appended to stream names when dumping a whole tree.
const DefaultSuffix = ".dump"

// ErrUnsafeName is returned for entries whose decoded name cannot be used
// as a single path element.
var ErrUnsafeName = errors.New("entry name is not usable as a file name")

// Children lists the immediate children of the storage at path.
func Children(c storage.Container, path string) ([]storage.Entry, error) {
	return c.ReadStorage(path)
}

// fileName returns the decoded display name of e, rejecting names that
// would escape the destination directory.
func fileName(e storage.Entry) (string, error) {
	name := namecodec.Decode(e.Name).Display
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return name, nil
}

// createFile opens path for writing, failing if anything already exists
// there.
func createFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// Dumper reconstructs a container tree on disk.
type Dumper struct {
	// Out receives one line per extracted stream. Nil discards them.
	Out io.Writer
	// Suffix is appended to every stream file name.
	Suffix string
	// Progress, when set, receives a byte progress bar.
	Progress io.Writer

	bar *progressbar.ProgressBar
}

// NewDumper creates a Dumper that reports to out.
func NewDumper(out io.Writer) *Dumper {
	return &Dumper{Out: out, Suffix: DefaultSuffix}
}

// All creates dest and mirrors the storage at from beneath it: every storage
// becomes a directory, every stream a file holding its bytes verbatim.
// Nothing that already exists is overwritten. A failure part way through
// leaves whatever was already written in place.
func (d *Dumper) All(c storage.Container, from, dest string) error {
	start, err := c.Entry(from)
	if err != nil {
		return err
	}
	if !start.IsStorage() {
		return fmt.Errorf("%s: %w", from, storage.ErrNotStorage)
	}
	if err := os.Mkdir(dest, 0o755); err != nil {
		return err
	}

	if d.Progress != nil {
		total, err := d.totalSize(c, start.Path)
		if err != nil {
			return err
		}
		if total > 0 {
			d.startBar(total)
			defer d.stopBar()
		}
	}

	return d.walk(c, start.Path, dest)
}

func (d *Dumper) startBar(total uint64) {
	d.bar = progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(d.Progress),
		progressbar.OptionSetDescription("dumping"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(d.Progress) }),
	)
}

func (d *Dumper) stopBar() {
	_ = d.bar.Finish()
	d.bar = nil
}

func (d *Dumper) walk(c storage.Container, path, dest string) error {
	entries, err := Children(c, path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name, err := fileName(e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Path, err)
		}
		if e.IsStorage() {
			dir := filepath.Join(dest, name)
			logrus.WithField("dir", dir).Debug("creating storage directory")
			if err := os.Mkdir(dir, 0o755); err != nil {
				return err
			}
			if err := d.walk(c, e.Path, dir); err != nil {
				return err
			}
			continue
		}
		if err := d.stream(c, e, filepath.Join(dest, name+d.Suffix)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dumper) stream(c storage.Container, e storage.Entry, target string) error {
	if d.Out != nil {
		fmt.Fprintf(d.Out, "Dumping stream [%s] to [%s]\n", namecodec.Decode(e.Name).Display, target)
	}
	r, err := c.OpenStream(e.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := createFile(target)
	if err != nil {
		return err
	}
	var w io.Writer = f
	if d.bar != nil {
		w = io.MultiWriter(f, d.bar)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", e.Path, err)
	}
	return f.Close()
}

func (d *Dumper) totalSize(c storage.Container, path string) (uint64, error) {
	entries, err := Children(c, path)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		if !e.IsStorage() {
			total += e.Size
			continue
		}
		n, err := d.totalSize(c, e.Path)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
