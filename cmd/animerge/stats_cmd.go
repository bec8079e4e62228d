package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and merge counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			stats, err := e.db.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read stats: %w", err)
			}
			printStats(stats)
			return nil
		},
	}
}
