package main

import (
	"fmt"

	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

func newBatchesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recorded merge batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			batches, err := e.db.ListMergeBatches(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}

			ui.Section("Merge Batches")
			printBatches(batches)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "show at most N batches (0 = all)")

	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <batch-id>",
		Short: "Undo a merge batch",
		Long: `Restore every record and reference merged under a batch id to its state
before the merge. Restoring the same batch twice is harmless.

Examples:
  animerge batches                  # Find the batch id
  animerge restore 0b6c4e1a-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.runner.Restore(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			if res.RestoredCount == 0 {
				ui.WarningMsg("Nothing restored: no records recorded under batch %s", res.BatchID)
				return nil
			}
			ui.SuccessMsg("Restored %s from batch %s", ui.Plural(res.RestoredCount, "record"), ui.Key(res.BatchID))
			return nil
		},
	}
}
