package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/google/uuid"
)

// RunOptions controls a dedup run.
type RunOptions struct {
	// DryRun reports the planned merges without writing anything.
	DryRun bool
	// LimitGroups caps the groups merged in this run; 0 means all.
	LimitGroups int
	// Progress, if set, is called after each group with the number of
	// groups handled so far and the number that will be handled.
	Progress func(done, total int)
}

// RunResult summarizes a dedup run.
type RunResult struct {
	BatchID         string        `json:"batch_id"`
	DryRun          bool          `json:"dry_run"`
	GroupsExamined  int           `json:"groups_examined"`
	GroupsProcessed int           `json:"groups_processed"`
	GroupsFailed    int           `json:"groups_failed"`
	Results         []GroupResult `json:"results"`
	Duration        time.Duration `json:"duration"`
}

// Runner scans the whole store for duplicate groups and merges them.
type Runner struct {
	db      *database.AnimeDB
	grouper *dedup.Grouper
	orch    *Orchestrator
	logger  *logging.Logger
	newID   func() string
}

// NewRunner creates a runner over db. A nil grouper uses default options.
func NewRunner(db *database.AnimeDB, grouper *dedup.Grouper, logger *logging.Logger) *Runner {
	if grouper == nil {
		grouper = dedup.NewGrouper(dedup.DefaultOptions())
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{
		db:      db,
		grouper: grouper,
		orch:    NewOrchestrator(db, nil, logger),
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// Orchestrator returns the orchestrator the runner merges with.
func (r *Runner) Orchestrator() *Orchestrator {
	return r.orch
}

// Groups returns the duplicate groups currently in the store.
func (r *Runner) Groups(ctx context.Context) ([]dedup.Group, error) {
	records, err := r.db.ListAnime(ctx)
	if err != nil {
		return nil, fmt.Errorf("load anime: %w", err)
	}
	return r.grouper.Group(records), nil
}

// Run groups every record in the store and merges the groups one after
// another under a fresh batch id. A failing group is recorded in its result
// and the run moves on.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	groups, err := r.Groups(ctx)
	if err != nil {
		return nil, err
	}

	result, err := r.RunGroups(ctx, groups, opts)
	if result != nil {
		result.GroupsExamined = len(groups)
	}
	return result, err
}

// RunGroups merges the given groups under a fresh batch id.
func (r *Runner) RunGroups(ctx context.Context, groups []dedup.Group, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		BatchID:        r.newID(),
		DryRun:         opts.DryRun,
		GroupsExamined: len(groups),
		Results:        []GroupResult{},
	}

	if opts.LimitGroups > 0 && len(groups) > opts.LimitGroups {
		groups = groups[:opts.LimitGroups]
	}

	r.logger.Info("dedup", "Dedup run started",
		logging.F("batch_id", result.BatchID),
		logging.F("groups", len(groups)),
		logging.F("dry_run", opts.DryRun))

	for n, g := range groups {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		if opts.DryRun {
			result.Results = append(result.Results, Plan(g))
		} else {
			gr, err := r.orch.ProcessGroup(ctx, result.BatchID, g.Key, g.IDs())
			if err != nil {
				result.GroupsFailed++
			} else if !gr.Skipped {
				result.GroupsProcessed++
			}
			result.Results = append(result.Results, gr)
		}

		if opts.Progress != nil {
			opts.Progress(n+1, len(groups))
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info("dedup", "Dedup run finished",
		logging.F("batch_id", result.BatchID),
		logging.F("processed", result.GroupsProcessed),
		logging.F("failed", result.GroupsFailed),
		logging.F("duration", result.Duration.String()))
	return result, nil
}

// Restore undoes every merge recorded under batchID.
func (r *Runner) Restore(ctx context.Context, batchID string) (RestoreResult, error) {
	return r.orch.RestoreBatch(ctx, batchID)
}
