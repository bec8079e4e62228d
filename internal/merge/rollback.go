package merge

import (
	"context"
	"fmt"

	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/logging"
)

// RestoreResult reports a batch restore.
type RestoreResult struct {
	BatchID       string `json:"batch_id"`
	RestoredCount int    `json:"restored_count"`
}

// RestoreBatch rebuilds the pre-merge state of every group merged under
// batchID in one transaction. Records that still exist are patched back to
// their snapshot; deleted ones are re-inserted under a new id that is
// remembered, so restoring the same batch again reuses it. Referencing rows
// are written back pointing at the restored ids. An unknown batch restores
// nothing and is not an error.
func (o *Orchestrator) RestoreBatch(ctx context.Context, batchID string) (RestoreResult, error) {
	result := RestoreResult{BatchID: batchID}

	err := o.db.WithTx(ctx, func(tx *database.Tx) error {
		batches, err := tx.GetMergeBatches(ctx, batchID)
		if err != nil {
			return fmt.Errorf("load batch %s: %w", batchID, err)
		}

		idMap := make(map[int64]int64)
		for _, b := range batches {
			for i := range b.Anime {
				rec := b.Anime[i]
				oldID := rec.ID

				target, err := restoreTarget(ctx, tx, batchID, oldID)
				if err != nil {
					return err
				}

				if target != 0 {
					rec.ID = target
					if err := tx.UpdateAnime(ctx, &rec); err != nil {
						return fmt.Errorf("patch anime %d: %w", target, err)
					}
				} else {
					newID, err := tx.InsertAnime(ctx, &rec)
					if err != nil {
						return fmt.Errorf("re-insert anime %d: %w", oldID, err)
					}
					if err := tx.RecordRestoration(ctx, batchID, oldID, newID); err != nil {
						return err
					}
					target = newID
				}
				idMap[oldID] = target
				result.RestoredCount++
			}
		}

		for _, b := range batches {
			for _, ref := range o.refs {
				for _, row := range b.References[ref.Collection] {
					restored := cloneRow(row)
					if id, ok := idMap[database.AsInt64(row[ref.ForeignKey])]; ok {
						restored[ref.ForeignKey] = id
					}
					if err := tx.UpsertRow(ctx, ref.Collection, restored); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		o.logger.Error("restore", "Batch restore rolled back", err, logging.F("batch_id", batchID))
		return RestoreResult{BatchID: batchID}, err
	}

	o.logger.Info("restore", "Batch restored",
		logging.F("batch_id", batchID),
		logging.F("restored", result.RestoredCount))
	return result, nil
}

// restoreTarget returns the id a snapshot record should be written back to,
// or 0 when it has to be re-inserted.
func restoreTarget(ctx context.Context, tx *database.Tx, batchID string, oldID int64) (int64, error) {
	if newID, ok, err := tx.Restoration(ctx, batchID, oldID); err != nil {
		return 0, err
	} else if ok {
		exists, err := tx.AnimeExists(ctx, newID)
		if err != nil {
			return 0, err
		}
		if exists {
			return newID, nil
		}
	}

	exists, err := tx.AnimeExists(ctx, oldID)
	if err != nil {
		return 0, err
	}
	if exists {
		return oldID, nil
	}
	return 0, nil
}
