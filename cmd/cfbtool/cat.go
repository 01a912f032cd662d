package main

import (
	"io"

	"github.com/CageChen/cfbtool/internal/address"
	"github.com/spf13/cobra"
)

func newCatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <container[:path]>...",
		Short: "Concatenate streams to standard output",
		Example: `  cfbtool cat report.doc:WordDocument
  cfbtool cat a.msg:__substg1.0_0037001F b.msg:__substg1.0_0037001F`,
		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if err := a.cat(arg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) cat(arg string) error {
	locator, inner := address.Split(arg)
	c, err := openContainer(locator)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := c.OpenStream(inner)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(a.out, r)
	return err
}
