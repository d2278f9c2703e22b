package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API over the console state.

The server ingests activity from the configured backend and exposes task
submission, history queries, the view projection, a live event stream
and Prometheus metrics.

Examples:
  # Start with defaults (localhost:8080)
  agentmesh serve

  # Start on custom host and port
  agentmesh serve --host 0.0.0.0 --port 3000

  # Disable CORS (for production behind a reverse proxy)
  agentmesh serve --no-cors`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveNoCORS bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default: server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default: server.port)")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := newLogger(os.Stdout, "")
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(contextOr(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newConsoleRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithSubmitter(rt),
		api.WithEventBus(rt.bus),
		api.WithMetrics(rt.registry),
		api.WithCORS(cfg.Server.CORS && !serveNoCORS),
	}
	if rt.store != nil {
		opts = append(opts, api.WithHistory(rt.store))
	}
	server := api.NewServer(rt.adapter, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(gctx)
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, serveAddr())
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// serveAddr resolves the listen address, flags over config.
func serveAddr() string {
	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// contextOr returns ctx, or a background context when ctx is nil, which is
// the case when a RunE is invoked directly in tests.
func contextOr(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
