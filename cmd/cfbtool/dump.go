package main

import (
	"os"

	"github.com/CageChen/cfbtool/internal/address"
	"github.com/CageChen/cfbtool/internal/dump"
	"github.com/spf13/cobra"
)

type dumpOptions struct {
	all      bool
	output   string
	progress bool
	back     bool
}

func newDumpCommand(a *app) *cobra.Command {
	var opts dumpOptions

	cmd := &cobra.Command{
		Use:   "dump <container[:path]>",
		Short: "Extract streams to the filesystem",
		Long: `Extract streams to the filesystem.

With --all the whole tree is written under a new directory (./root by
default): every storage becomes a directory and every stream a file named
<name>.dump. Without --all an interactive explorer lists the entries of
the current storage and asks which one to inspect. Existing files and
directories are never overwritten.`,
		Example: `  cfbtool dump --all report.doc
  cfbtool dump -a -o extracted report.doc:Macros
  cfbtool dump report.doc`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			opts.progress = boolOption(cmd, "progress", opts.progress, a.cfg.Progress)
			opts.back = boolOption(cmd, "back", opts.back, a.cfg.AllowBack)
			if cmd.Flags().Changed("output") {
				a.cfg.DumpDir = opts.output
			}
			return a.dump(args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Dump the whole tree without prompting")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Destination directory for --all (default \"root\")")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar while dumping")
	cmd.Flags().BoolVar(&opts.back, "back", false, "Allow '..' to return to the previous storage")
	return cmd
}

func (a *app) dump(arg string, opts dumpOptions) error {
	locator, inner := address.Split(arg)
	c, err := openContainer(locator)
	if err != nil {
		return err
	}
	defer c.Close()

	if !opts.all {
		x := dump.NewExplorer(c, a.in, a.out)
		x.Quit = a.cfg.Quit
		x.AllowBack = opts.back
		return x.Run(inner)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	d := dump.NewDumper(a.out)
	d.Suffix = a.cfg.DumpSuffix
	if opts.progress {
		d.Progress = a.errOut
	}
	return d.All(c, inner, a.cfg.DumpRoot(cwd))
}
