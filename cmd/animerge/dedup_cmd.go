package main

import (
	"errors"
	"fmt"

	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/Nomadcxx/animerge/internal/review"
	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

func newDedupCmd() *cobra.Command {
	var (
		dryRun bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Find and merge duplicate anime records",
		Long: `Scan the whole catalog for duplicate groups and merge each group into its
primary record. Watchlist entries, reviews and list items are repointed to the
primary. Every merged group is snapshotted under one batch id.

Examples:
  animerge dedup --dry-run         # Show what would be merged
  animerge dedup                   # Merge all groups
  animerge dedup --limit 10        # Merge at most 10 groups`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if !cmd.Flags().Changed("limit") {
				limit = e.cfg.Dedup.LimitGroups
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			spinner := ui.NewSpinner("Grouping records")
			spinner.Start()
			res, err := e.runner.Run(cmd.Context(), merge.RunOptions{
				DryRun:      dryRun,
				LimitGroups: limit,
				Progress:    groupProgress(spinner, dryRun),
			})
			spinner.Stop()
			if err != nil {
				return fmt.Errorf("dedup run failed: %w", err)
			}

			printRunResult(res)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "preview merges without changing anything")
	cmd.Flags().IntVar(&limit, "limit", 0, "merge at most N groups (default from config, 0 = all)")

	return cmd
}

func newGroupsCmd() *cobra.Command {
	var (
		limit    int
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List duplicate groups without merging",
		Long: `List the duplicate groups a dedup run would merge, with the record each
group keeps.

Examples:
  animerge groups
  animerge groups --details --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			groups, err := e.runner.Groups(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to group records: %w", err)
			}

			total := len(groups)
			if limit > 0 && len(groups) > limit {
				groups = groups[:limit]
			}

			ui.Section("Duplicate Groups")
			printGroups(groups, detailed)
			if len(groups) < total {
				ui.InfoMsg("Showing %d of %s", len(groups), ui.Plural(total, "group"))
			} else if total > 0 {
				ui.InfoMsg("%s found", ui.Plural(total, "group"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show at most N groups")
	cmd.Flags().BoolVarP(&detailed, "details", "d", false, "show every member of each group")

	return cmd
}

func newReviewCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively approve duplicate groups before merging",
		Long: `Step through the duplicate groups one at a time and choose which ones to
merge. Only approved groups are merged, all under one batch id.

Keys:
  y / enter   merge this group
  n / s       skip this group
  A           merge all remaining groups
  b           go back
  q           finish and merge the approved groups
  esc         cancel without merging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			groups, err := e.runner.Groups(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to group records: %w", err)
			}
			if len(groups) == 0 {
				ui.SuccessMsg("No duplicate groups found")
				return nil
			}

			approved, err := review.Run(groups)
			if errors.Is(err, review.ErrCancelled) {
				ui.InfoMsg("Review cancelled - no changes made")
				return nil
			}
			if err != nil {
				return err
			}
			if len(approved) == 0 {
				ui.InfoMsg("No groups approved - no changes made")
				return nil
			}

			res, err := e.runner.RunGroups(cmd.Context(), approved, merge.RunOptions{
				DryRun:   dryRun,
				Progress: groupProgress(nil, dryRun),
			})
			if err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}
			printRunResult(res)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "review without merging")

	return cmd
}

// groupProgress draws a progress bar over the groups of a run, stopping
// spinner once the first group is done.
func groupProgress(spinner *ui.Spinner, dryRun bool) func(done, total int) {
	label := "Merging groups"
	if dryRun {
		label = "Planning groups"
	}
	var bar *ui.ProgressBar
	return func(done, total int) {
		if bar == nil {
			if spinner != nil {
				spinner.Stop()
			}
			bar = ui.NewProgressBar(total, label)
		}
		bar.Update(done)
	}
}
