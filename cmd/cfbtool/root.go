package main

import (
	"fmt"
	"io"
	"os"

	"github.com/CageChen/cfbtool/internal/cfb"
	"github.com/CageChen/cfbtool/internal/config"
	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries what every subcommand shares: the loaded configuration and
// the process streams.
type app struct {
	cfg        *config.Config
	configFile string
	debug      bool
	noColor    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "cfbtool",
		Short: "Inspect and modify Compound File Binary containers",
		Long: `Inspect and modify Compound File Binary (OLE structured storage) containers.

Entries are addressed as <container>[:<path>], where path is a
slash-separated path inside the container. Without a path the root
storage is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newCatCommand(a),
		newChclsCommand(a),
		newLsCommand(a),
		newDumpCommand(a),
		newServeCommand(a),
	)
	return cmd
}

// setup loads the configuration and applies the global flags on top of it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	if a.noColor {
		cfg.Color = false
	}
	a.cfg = cfg

	logrus.SetOutput(a.errOut)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		cfb.EnableDebug(a.errOut)
	}
	logrus.WithField("config", cfg.GetConfigFilePath()).Debug("configuration loaded")
	return nil
}

// colorize reports whether listings written to out should be colored.
func (a *app) colorize() bool {
	if !a.cfg.Color || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := a.out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// boolOption returns the flag value when it was given on the command line
// and the configured value otherwise.
func boolOption(cmd *cobra.Command, name string, flag, configured bool) bool {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return configured
}

func openReadOnly(locator string) (storage.Container, error) {
	f, err := cfb.Open(locator)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func openContainer(locator string) (storage.Container, error) {
	c, err := openReadOnly(locator)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	logrus.WithField("container", locator).Debug("container opened")
	return c, nil
}
