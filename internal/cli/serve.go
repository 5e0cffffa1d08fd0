package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		opts clientOptions
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve replays over HTTP and WebSocket",
		Long: `Starts an HTTP server that replays the cache on request.

Endpoints:
  GET /                  Server info and current time
  GET /health            Health check
  GET /metrics           Prometheus metrics
  GET /api/exchanges     Supported exchanges and channels
  GET /api/sessions      Live WebSocket replays
  GET /api/replay        Replay as newline-delimited JSON
  WS  /ws/replay         Replay as one WebSocket message per record

Replay endpoints take exchange, from, to, filters (JSON) and decode.`,
		Example: `  tickreplay serve
  tickreplay serve --addr :9090 --cache-dir /data/tardis-cache
  tickreplay serve --notify redis --redis-host redis:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = opts.fromConfig.Server.Addr
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := server.New(addr, rt.replayer,
				server.WithLogger(rt.log),
				server.WithMetrics(rt.metrics),
			)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				rt.log.Info("shutting down", logger.NewField("sessions", srv.Sessions().Count()))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")

	return cmd
}
