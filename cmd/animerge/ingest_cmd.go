package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Import a JSON batch of anime records",
		Long: `Import raw records from a JSON file (an array or a single object).
Duplicates inside the batch are collapsed and each survivor is checked against
the catalog; only new records are inserted.

Examples:
  animerge ingest fetched.json --preview
  animerge ingest fetched.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if !preview {
				res, err := e.ingester.IngestFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				ui.Section("Ingest")
				printIngestResult(res)
				return nil
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("unable to open batch: %w", err)
			}
			defer f.Close()

			raws, err := ingest.DecodeBatch(f)
			if err != nil {
				return err
			}
			candidates, diags, err := e.ingester.Preview(cmd.Context(), raws)
			if err != nil {
				return err
			}
			ui.Section("Ingest Preview")
			printCandidates(candidates)
			printDiagnostics(diags)
			ui.InfoMsg("Preview only - no changes made")
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "show what would be inserted without writing")

	return cmd
}

func newWatchCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest JSON batches dropped into the watch directory",
		Long: `Watch the ingest directory and import every JSON batch written into it.
Imported files move to the processed directory, rejected ones to the failed
directory next to a .err file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if dir != "" {
				e.cfg.Ingest.WatchDir = dir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := newWatcher(e)
			if err != nil {
				return err
			}
			defer w.Close()

			ui.InfoMsg("Watching %s (Ctrl+C to stop)", e.cfg.Ingest.WatchDir)
			return w.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (default from config)")

	return cmd
}

func newWatcher(e *env) (*ingest.Watcher, error) {
	ic := e.cfg.Ingest
	if ic.WatchDir == "" {
		return nil, fmt.Errorf("no watch directory configured (set ingest.watch_dir)")
	}
	return ingest.NewWatcher(e.ingester, ic.WatchDir, ic.ProcessedPath(), ic.FailedPath(), e.logger)
}

// runWatcher runs w until ctx is done, logging a failure instead of
// returning it.
func runWatcher(ctx context.Context, w *ingest.Watcher, logger *logging.Logger) {
	if err := w.Start(ctx); err != nil {
		logger.Error("watcher", "Watcher stopped", err)
	}
}
