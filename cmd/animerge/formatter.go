package main

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/Nomadcxx/animerge/internal/quality"
	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

//go:embed assets/header.txt
var asciiHeader string

func printHeader(cmd *cobra.Command, version string) {
	fmt.Fprintln(cmd.OutOrStdout(), asciiHeader)
	fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n\n", version)
}

// describe renders a record as "Title (Year)".
func describe(r *anime.Record) string {
	if r.Year != nil {
		return fmt.Sprintf("%s (%d)", r.Title, *r.Year)
	}
	return r.Title
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func printGroups(groups []dedup.Group, detailed bool) {
	if len(groups) == 0 {
		ui.SuccessMsg("No duplicate groups found")
		return
	}

	if !detailed {
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			primary := &g.Members[dedup.SelectPrimary(g.Members)]
			seasons := ""
			if dedup.SeasonIdentities(g.Members) > 1 {
				seasons = "yes"
			}
			rows = append(rows, []string{
				ui.Key(g.Key),
				strconv.Itoa(len(g.Members)),
				describe(primary),
				seasons,
			})
		}
		ui.CompactTable([]string{"Key", "Size", "Keeps", "Seasons"}, rows)
		return
	}

	for _, g := range groups {
		primary := dedup.SelectPrimary(g.Members)
		table := ui.NewTable("", "ID", "Title", "Year", "MAL", "AniList", "Score")
		for i := range g.Members {
			m := &g.Members[i]
			marker := ""
			if i == primary {
				marker = ui.Primary("keep")
			}
			table.AddRow(marker, strconv.FormatInt(m.ID, 10), m.Title, optInt(m.Year),
				optInt(m.MalID), optInt(m.AniListID), strconv.Itoa(quality.ScoreRecord(m)))
		}
		fmt.Fprintln(ui.Output())
		ui.Subsection(ui.Key(g.Key))
		table.Render()
	}
}

func printRunResult(res *merge.RunResult) {
	title := "Dedup Run"
	if res.DryRun {
		title = "Dedup Plan (dry run)"
	}
	ui.Section(title)

	if len(res.Results) > 0 {
		table := ui.NewTable("Group", "Primary", "Merged", "Status")
		for _, r := range res.Results {
			status := ui.Success("merged")
			switch {
			case r.Error != "":
				status = ui.Error("failed: " + r.Error)
			case r.Skipped && r.Reason == merge.ReasonDryRun:
				status = ui.Info("planned")
			case r.Skipped:
				status = ui.Warning("skipped: " + r.Reason)
			case r.Consolidated:
				status = ui.Success("consolidated")
			}
			primary := "-"
			if r.PrimaryID != 0 {
				primary = strconv.FormatInt(r.PrimaryID, 10)
			}
			table.AddRow(r.GroupKey, primary, joinIDs(r.DeletedIDs), status)
		}
		table.Render()
	}

	out := ui.Output()
	fmt.Fprintln(out)
	if res.BatchID != "" {
		fmt.Fprintf(out, "Batch:     %s\n", ui.Key(res.BatchID))
	}
	fmt.Fprintf(out, "Examined:  %s\n", ui.FormatCount(res.GroupsExamined))
	fmt.Fprintf(out, "Processed: %s\n", ui.FormatCount(res.GroupsProcessed))
	if res.GroupsFailed > 0 {
		fmt.Fprintf(out, "Failed:    %s\n", ui.Error(ui.FormatCount(res.GroupsFailed)))
	}
	fmt.Fprintf(out, "Duration:  %s\n", ui.FormatDuration(res.Duration))

	if res.DryRun {
		ui.InfoMsg("Dry run complete - no changes made")
	} else if res.GroupsProcessed > 0 {
		ui.InfoMsg("Undo with: animerge restore %s", res.BatchID)
	}
}

func printBatches(batches []database.BatchSummary) {
	if len(batches) == 0 {
		ui.InfoMsg("No merge batches recorded")
		return
	}
	table := ui.NewTable("Batch", "Groups", "Duplicates", "Created")
	for _, b := range batches {
		table.AddRow(b.BatchID, ui.FormatCount(b.Groups), ui.FormatCount(b.Duplicates), ui.FormatAge(b.CreatedAt))
	}
	table.Render()
}

func printCandidates(candidates []dedup.Candidate) {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		action := ui.Success("insert")
		if c.Disposition == dedup.DispositionAlreadyPresent {
			action = ui.Dim(fmt.Sprintf("present #%d", c.ExistingID))
		}
		rows = append(rows, []string{describe(&c.Record), action, fmt.Sprint(c.Sources)})
	}
	ui.CompactTable([]string{"Title", "Action", "Input rows"}, rows)
}

func printDiagnostics(diags []ingest.Diagnostic) {
	for _, d := range diags {
		ui.WarningMsg("%s", d.String())
	}
}

func printIngestResult(res *ingest.Result) {
	candidates := make([]dedup.Candidate, len(res.Outcomes))
	for i, o := range res.Outcomes {
		candidates[i] = o.Candidate
		if o.Disposition == dedup.DispositionInsert {
			candidates[i].Record.ID = o.ID
		}
	}
	printCandidates(candidates)
	printDiagnostics(res.Diagnostics)

	fmt.Fprintln(ui.Output())
	ui.SuccessMsg("Received %s, inserted %s, already present %s",
		ui.FormatCount(res.Received), ui.FormatCount(res.Inserted), ui.FormatCount(res.AlreadyPresent))
}

func printStats(s *database.Stats) {
	ui.Section("Catalog")
	out := ui.Output()
	fmt.Fprintf(out, "Anime:            %s\n", ui.FormatCount(s.AnimeCount))
	fmt.Fprintf(out, "  consolidated:   %s\n", ui.FormatCount(s.ConsolidatedCount))
	fmt.Fprintf(out, "Watchlist:        %s\n", ui.FormatCount(s.WatchlistCount))
	fmt.Fprintf(out, "Reviews:          %s\n", ui.FormatCount(s.ReviewCount))
	fmt.Fprintf(out, "List items:       %s\n", ui.FormatCount(s.ListItemCount))
	ui.Section("Merges")
	fmt.Fprintf(out, "Batches:          %s\n", ui.FormatCount(s.BatchCount))
	fmt.Fprintf(out, "Restored records: %s\n", ui.FormatCount(s.RestoredCount))
}
