package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nomadcxx/animerge/internal/api"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long: `Start the HTTP admin API.

Endpoints (under /api/v1):
  GET  /health                      Health check
  GET  /dedup/groups?limit=N        Preview duplicate groups
  POST /dedup/run?dry_run=&limit=   Run a dedup pass
  GET  /batches?limit=N             List merge batches
  POST /batches/{batchId}/restore   Undo a batch
  POST /ingest?preview=             Import a JSON batch
  GET  /stats                       Catalog counts

Examples:
  animerge serve                     # Listen on the configured address
  animerge serve --addr :9000 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch {
				w, err := newWatcher(e)
				if err != nil {
					return err
				}
				defer w.Close()
				go runWatcher(ctx, w, e.logger)
			}

			server := api.NewServer(e.db, e.runner, e.ingester, e.logger, api.Options{
				CORSOrigins: e.cfg.Server.CORSOrigins,
				Token:       e.cfg.Server.Token,
			})
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			e.logger.Info("api", "Starting API server",
				logging.F("addr", addr),
				logging.F("watch", watch),
				logging.F("auth", e.cfg.Server.Token != ""))
			ui.InfoMsg("Listening on %s (Ctrl+C to stop)", addr)

			errChan := make(chan error, 1)
			go func() {
				errChan <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errChan:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("api server: %w", err)
				}
				return nil

			case <-ctx.Done():
				e.logger.Info("api", "Received shutdown signal")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "also ingest batches dropped into the watch directory")

	return cmd
}
