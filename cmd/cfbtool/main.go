// Package main is the entry point for cfbtool.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
