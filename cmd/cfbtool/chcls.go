package main

import (
	"fmt"

	"github.com/CageChen/cfbtool/internal/address"
	"github.com/CageChen/cfbtool/internal/cfb"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newChclsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "chcls <class-id> <container[:path]>...",
		Short:   "Set the class identifier of storages",
		Example: `  cfbtool chcls 00020906-0000-0000-c000-000000000046 report.doc`,
		Args:    cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			clsid, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid class id %q: %w", args[0], err)
			}
			for _, arg := range args[1:] {
				if err := a.chcls(clsid, arg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) chcls(clsid uuid.UUID, arg string) error {
	locator, inner := address.Split(arg)
	f, err := cfb.OpenRW(locator)
	if err != nil {
		return fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	if err := f.SetStorageCLSID(inner, clsid); err != nil {
		return err
	}
	if err := f.Flush(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"container": locator,
		"path":      inner,
		"clsid":     clsid,
	}).Debug("class id updated")
	return f.Close()
}
