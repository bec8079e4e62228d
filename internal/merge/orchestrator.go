// Package merge applies duplicate groups to the store and undoes them.
//
// Every group is merged inside one transaction that first snapshots the
// members and all rows referencing them into a merge batch. Restoring a batch
// replays those snapshots.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/logging"
)

// Skip reasons
const (
	ReasonTooFewMembers = "fewer than two members remain"
	ReasonAlreadyMerged = "group already merged in this batch"
	ReasonDryRun        = "dry run"
)

// GroupResult reports what happened to one duplicate group.
type GroupResult struct {
	GroupKey     string  `json:"group_key"`
	PrimaryID    int64   `json:"primary_id,omitempty"`
	DeletedIDs   []int64 `json:"deleted_ids,omitempty"`
	GroupSize    int     `json:"group_size"`
	Consolidated bool    `json:"consolidated"`
	Repointed    int     `json:"repointed"`
	Skipped      bool    `json:"skipped,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Orchestrator merges duplicate groups one transaction at a time.
type Orchestrator struct {
	db     *database.AnimeDB
	refs   []Reference
	logger *logging.Logger
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil refs uses DefaultReferences
// and a nil logger discards output.
func NewOrchestrator(db *database.AnimeDB, refs []Reference, logger *logging.Logger) *Orchestrator {
	if refs == nil {
		refs = DefaultReferences()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		db:     db,
		refs:   refs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessGroup merges the records with ids into one. Records that no longer
// exist are ignored; if fewer than two remain, or the group was already
// merged under batchID, the result is marked skipped. On error nothing is
// written.
func (o *Orchestrator) ProcessGroup(ctx context.Context, batchID, groupKey string, ids []int64) (GroupResult, error) {
	result := GroupResult{GroupKey: groupKey}

	err := o.db.WithTx(ctx, func(tx *database.Tx) error {
		members, err := tx.GetAnimeByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		result.GroupSize = len(members)
		if len(members) < 2 {
			result.Skipped = true
			result.Reason = ReasonTooFewMembers
			return nil
		}

		done, err := tx.HasMergeBatch(ctx, batchID, groupKey)
		if err != nil {
			return fmt.Errorf("check batch: %w", err)
		}
		if done {
			result.Skipped = true
			result.Reason = ReasonAlreadyMerged
			return nil
		}

		p := dedup.SelectPrimary(members)
		primary := members[p]
		duplicates := make([]anime.Record, 0, len(members)-1)
		memberIDs := make([]int64, 0, len(members))
		for i, m := range members {
			memberIDs = append(memberIDs, m.ID)
			if i != p {
				duplicates = append(duplicates, m)
				result.DeletedIDs = append(result.DeletedIDs, m.ID)
			}
		}
		result.PrimaryID = primary.ID

		refRows := make(map[string][]database.Row, len(o.refs))
		for _, ref := range o.refs {
			rows, err := tx.SelectRows(ctx, ref.Collection, ref.ForeignKey, memberIDs)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", ref.Collection, err)
			}
			refRows[ref.Collection] = rows
		}

		if err := tx.InsertMergeBatch(ctx, &database.MergeBatch{
			BatchID:      batchID,
			GroupKey:     groupKey,
			PrimaryID:    primary.ID,
			DuplicateIDs: result.DeletedIDs,
			Anime:        members,
			References:   snapshotRows(refRows),
			CreatedAt:    o.now(),
		}); err != nil {
			return err
		}

		var merged anime.Record
		if dedup.SeasonIdentities(members) > 1 {
			if merged, err = dedup.ConsolidateSeasons(members); err != nil {
				return err
			}
			result.Consolidated = true
		} else {
			merged = primary.Clone()
			dedup.FillMissing(&merged, duplicates)
		}
		merged.ID = primary.ID
		merged.UpdatedAt = o.now()
		if err := tx.UpdateAnime(ctx, &merged); err != nil {
			return err
		}

		for _, ref := range o.refs {
			n, err := repoint(ctx, tx, ref, refRows[ref.Collection], primary.ID)
			if err != nil {
				return fmt.Errorf("repoint %s: %w", ref.Collection, err)
			}
			result.Repointed += n
		}

		for _, id := range result.DeletedIDs {
			if err := tx.DeleteAnime(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.logger.Error("merge", "Group merge rolled back", err,
			logging.F("batch_id", batchID),
			logging.F("group_key", groupKey))
		return GroupResult{GroupKey: groupKey, GroupSize: result.GroupSize, Error: err.Error()}, err
	}

	if result.Skipped {
		o.logger.Debug("merge", "Group skipped",
			logging.F("group_key", groupKey),
			logging.F("reason", result.Reason))
	} else {
		o.logger.Info("merge", "Group merged",
			logging.F("batch_id", batchID),
			logging.F("group_key", groupKey),
			logging.F("primary_id", result.PrimaryID),
			logging.F("deleted_ids", result.DeletedIDs),
			logging.F("consolidated", result.Consolidated),
			logging.F("repointed", result.Repointed))
	}
	return result, nil
}

// Plan describes what ProcessGroup would do with a group without touching
// the store.
func Plan(group dedup.Group) GroupResult {
	result := GroupResult{
		GroupKey:  group.Key,
		GroupSize: len(group.Members),
		Skipped:   true,
		Reason:    ReasonDryRun,
	}
	p := dedup.SelectPrimary(group.Members)
	if p < 0 {
		return result
	}
	result.PrimaryID = group.Members[p].ID
	for i, m := range group.Members {
		if i != p {
			result.DeletedIDs = append(result.DeletedIDs, m.ID)
		}
	}
	result.Consolidated = dedup.SeasonIdentities(group.Members) > 1
	return result
}

// snapshotRows copies rows so later repointing cannot alter the snapshot.
func snapshotRows(in map[string][]database.Row) map[string][]database.Row {
	out := make(map[string][]database.Row, len(in))
	for coll, rows := range in {
		copied := make([]database.Row, len(rows))
		for i, r := range rows {
			copied[i] = cloneRow(r)
		}
		out[coll] = copied
	}
	return out
}
