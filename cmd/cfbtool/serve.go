package main

import (
	"fmt"

	"github.com/CageChen/cfbtool/internal/handler"
	"github.com/CageChen/cfbtool/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve <container>",
		Short: "Browse a container over HTTP",
		Long: `Serve a read-only HTTP API for a container.

  GET /api/tree          whole storage tree as JSON
  GET /api/entry/<path>  metadata of one entry
  GET /api/raw/<path>    stream contents
  GET /api/ws            websocket notified when the container changes`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			return a.serve(args[0])
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	return cmd
}

func (a *app) serve(locator string) error {
	// Fail before listening if the container cannot be read at all.
	c, err := openContainer(locator)
	if err != nil {
		return err
	}
	if err := c.Close(); err != nil {
		return err
	}

	wsHandler := handler.NewWSHandler(locator)

	w, err := watcher.New(locator)
	if err != nil {
		logrus.WithError(err).Warn("failed to create container watcher")
	} else {
		w.OnChange(wsHandler.OnContainerChange)
		if err := w.Start(); err != nil {
			logrus.WithError(err).Warn("failed to start container watcher")
		}
		defer func() { _ = w.Stop() }()
	}

	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(handler.NewTreeHandler(locator, openReadOnly), wsHandler)

	logrus.Infof("Serving %s at http://localhost:%d", locator, a.cfg.Port)
	return r.Run(fmt.Sprintf(":%d", a.cfg.Port))
}
