package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/kwgraph/internal/config"
	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/graph"
	"github.com/hurttlocker/kwgraph/internal/layout"
	kwmcp "github.com/hurttlocker/kwgraph/internal/mcp"
	"github.com/hurttlocker/kwgraph/internal/ui"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive graph viewer",
		Long: "Serve the web viewer, its JSON API and /metrics. Edits made by other\n" +
			"kwgraph processes sharing the same storage show up live.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				opts.host = host
			}
			if cmd.Flags().Changed("port") {
				opts.port = strconv.Itoa(port)
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				return serve(cmd, a)
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (default all interfaces)")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultHTTPPort, "Listen port")
	return cmd
}

func serve(cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.store.Start(ctx); err != nil {
		return err
	}
	engineCfg := engine.Config{
		Store: a.store,
		Layout: layout.Config{
			LinkDistance: a.cfg.LinkDistance.Float(0),
			Charge:       a.cfg.Charge.Float(0),
		},
		Width:   float64(a.cfg.ViewportWidth.Int(engine.DefaultWidth)),
		Height:  float64(a.cfg.ViewportHeight.Int(engine.DefaultHeight)),
		Logger:  a.logger,
		Metrics: a.metrics,
	}
	// Browser tabs get their own sessions from the hub; this one serves
	// plain HTTP callers.
	session, err := engine.New(ctx, engineCfg)
	if err != nil {
		return err
	}
	defer session.Close()

	srvCfg := graph.ServerConfig{
		Session:  session,
		Engine:   engineCfg,
		Store:    a.store,
		Usage:    a.usage,
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Host:     a.cfg.HTTPHost.Value,
		Port:     a.cfg.HTTPPort.Int(config.DefaultHTTPPort),
		Logger:   a.logger,
	}
	ui.Banner(cmd.OutOrStdout(), "graph viewer")
	fmt.Fprintf(cmd.OutOrStdout(), "  %s http://%s\n", ui.Info.Sprint("Listening on"), srvCfg.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "  %s %s (%s)\n\n", ui.Subtle.Sprint("Storage"), a.cfg.Backend.Value, a.cfg.Namespace.Value)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error {
		err := graph.Serve(gctx, srvCfg)
		cancel()
		return err
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func mcpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the keyword graph to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.store.Start(cmd.Context()); err != nil {
					return err
				}
				srv := kwmcp.NewServer(kwmcp.ServerConfig{Store: a.store, Usage: a.usage, Version: version})
				err := kwmcp.ServeStdio(cmd.Context(), srv, cmd.InOrStdin(), cmd.OutOrStdout())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
