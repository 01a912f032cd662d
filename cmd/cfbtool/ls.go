package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/CageChen/cfbtool/internal/address"
	"github.com/CageChen/cfbtool/internal/listing"
	"github.com/CageChen/cfbtool/internal/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type lsOptions struct {
	long  bool
	all   bool
	watch bool
}

func newLsCommand(a *app) *cobra.Command {
	var long, all, watch bool

	cmd := &cobra.Command{
		Use:   "ls <container[:path]>...",
		Short: "List a stream or the children of a storage",
		Long: `List a stream or the children of a storage.

A stream lists as itself. A storage lists its children in directory order;
with --all the storage itself is listed first as ".". The long format shows
the entry kind (+ storage, - stream), state bits, size, modification date
and name, followed by the class identifier for storages.`,
		Example: `  cfbtool ls report.doc
  cfbtool ls -la report.doc:Macros
  cfbtool ls --watch report.doc`,
		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			opts := lsOptions{
				long:  boolOption(cmd, "long", long, a.cfg.Long),
				all:   boolOption(cmd, "all", all, a.cfg.All),
				watch: watch,
			}
			if err := a.lsAll(args, opts); err != nil {
				return err
			}
			if !opts.watch {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.watchLs(ctx, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Use long listing format")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List the storage itself as '.'")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "List again whenever the container changes")
	return cmd
}

func (a *app) lsAll(args []string, opts lsOptions) error {
	for _, arg := range args {
		if err := a.ls(arg, opts); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) ls(arg string, opts lsOptions) error {
	locator, inner := address.Split(arg)
	c, err := openContainer(locator)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, err := c.Entry(inner)
	if err != nil {
		return err
	}

	p := listing.NewPrinter(a.out, opts.long, a.colorize())
	if entry.IsStream() {
		return p.Print(entry.Name, entry)
	}
	if opts.all {
		if err := p.Print(".", entry); err != nil {
			return err
		}
	}
	children, err := c.ReadStorage(inner)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := p.Print(child.Name, child); err != nil {
			return err
		}
	}
	return nil
}

// watchLs lists args again after every change to one of their containers
// until ctx is done. Listing failures while a container is being rewritten
// are logged and do not end the watch.
func (a *app) watchLs(ctx context.Context, args []string, opts lsOptions) error {
	changes := make(chan watcher.Event, 1)
	seen := make(map[string]bool)
	for _, arg := range args {
		locator, _ := address.Split(arg)
		if seen[locator] {
			continue
		}
		seen[locator] = true

		w, err := watcher.New(locator)
		if err != nil {
			return err
		}
		w.OnChange(func(e watcher.Event) {
			select {
			case changes <- e:
			default:
			}
		})
		if err := w.Start(); err != nil {
			_ = w.Stop()
			return err
		}
		defer func() { _ = w.Stop() }()
		logrus.WithField("container", w.Path()).Debug("watching container")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-changes:
			logrus.WithFields(logrus.Fields{
				"event": e.Type.String(),
				"path":  e.Path,
			}).Debug("container changed")
			if err := a.lsAll(args, opts); err != nil {
				logrus.WithError(err).Warn("listing failed")
			}
		}
	}
}
