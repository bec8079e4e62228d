package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Nomadcxx/animerge/internal/anime"
)

// MergeBatch is the snapshot of one merged group. Together, its rows for a
// batch id are enough to rebuild the state before the merge.
type MergeBatch struct {
	ID           int64
	BatchID      string
	GroupKey     string
	PrimaryID    int64
	DuplicateIDs []int64
	Anime        []anime.Record
	// Foreign rows keyed by collection name.
	References map[string][]Row
	CreatedAt  time.Time
}

// BatchSummary describes a recorded batch for listings.
type BatchSummary struct {
	BatchID    string    `json:"batch_id"`
	Groups     int       `json:"groups"`
	Duplicates int       `json:"duplicates"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertMergeBatch stores a group snapshot.
func (t *Tx) InsertMergeBatch(ctx context.Context, b *MergeBatch) error {
	dupIDs, err := json.Marshal(b.DuplicateIDs)
	if err != nil {
		return err
	}
	animeSnap, err := json.Marshal(b.Anime)
	if err != nil {
		return fmt.Errorf("failed to encode anime snapshot: %w", err)
	}
	refs := b.References
	if refs == nil {
		refs = map[string][]Row{}
	}
	refSnap, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to encode reference snapshot: %w", err)
	}

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO merge_batches (
			batch_id, group_key, primary_id, duplicate_ids,
			anime_snapshot, reference_snapshot, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.BatchID, b.GroupKey, b.PrimaryID, string(dupIDs), string(animeSnap), string(refSnap), createdAt)
	if err != nil {
		return fmt.Errorf("failed to record merge batch %s/%s: %w", b.BatchID, b.GroupKey, err)
	}
	return nil
}

// HasMergeBatch reports whether a snapshot for (batchID, groupKey) exists.
func (t *Tx) HasMergeBatch(ctx context.Context, batchID, groupKey string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM merge_batches WHERE batch_id = ? AND group_key = ?`, batchID, groupKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMergeBatches returns every snapshot of a batch in creation order.
func (t *Tx) GetMergeBatches(ctx context.Context, batchID string) ([]MergeBatch, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, batch_id, group_key, primary_id, duplicate_ids,
		       anime_snapshot, reference_snapshot, created_at
		FROM merge_batches WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []MergeBatch
	for rows.Next() {
		var b MergeBatch
		var dupIDs, animeSnap, refSnap string
		if err := rows.Scan(&b.ID, &b.BatchID, &b.GroupKey, &b.PrimaryID, &dupIDs,
			&animeSnap, &refSnap, &b.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dupIDs), &b.DuplicateIDs); err != nil {
			return nil, fmt.Errorf("batch %s duplicate_ids: %w", batchID, err)
		}
		if err := json.Unmarshal([]byte(animeSnap), &b.Anime); err != nil {
			return nil, fmt.Errorf("batch %s anime snapshot: %w", batchID, err)
		}
		if b.References, err = decodeReferenceSnapshot(refSnap); err != nil {
			return nil, fmt.Errorf("batch %s reference snapshot: %w", batchID, err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// decodeReferenceSnapshot restores integer columns as int64 rather than
// float64.
func decodeReferenceSnapshot(raw string) (map[string][]Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var refs map[string][]Row
	if err := dec.Decode(&refs); err != nil {
		return nil, err
	}
	for _, rows := range refs {
		for _, row := range rows {
			for k, v := range row {
				if n, ok := v.(json.Number); ok {
					if i, err := n.Int64(); err == nil {
						row[k] = i
					} else if f, err := n.Float64(); err == nil {
						row[k] = f
					}
				}
			}
		}
	}
	return refs, nil
}

// Restoration returns the id a restore assigned to oldID, if any.
func (t *Tx) Restoration(ctx context.Context, batchID string, oldID int64) (int64, bool, error) {
	var newID int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT new_id FROM merge_restorations WHERE batch_id = ? AND old_id = ?`, batchID, oldID).Scan(&newID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newID, true, nil
}

// RecordRestoration remembers that oldID of batchID now lives at newID.
func (t *Tx) RecordRestoration(ctx context.Context, batchID string, oldID, newID int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO merge_restorations (batch_id, old_id, new_id) VALUES (?, ?, ?)
		ON CONFLICT(batch_id, old_id) DO UPDATE SET new_id = excluded.new_id, restored_at = CURRENT_TIMESTAMP
	`, batchID, oldID, newID)
	if err != nil {
		return fmt.Errorf("failed to record restoration %d -> %d: %w", oldID, newID, err)
	}
	return nil
}

// ListMergeBatches summarizes recorded batches, newest first.
func (m *AnimeDB) ListMergeBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT batch_id, COUNT(*), COALESCE(SUM(json_array_length(duplicate_ids)), 0), MIN(created_at)
		FROM merge_batches
		GROUP BY batch_id
		ORDER BY MIN(id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var s BatchSummary
		var created string
		if err := rows.Scan(&s.BatchID, &s.Groups, &s.Duplicates, &created); err != nil {
			return nil, err
		}
		s.CreatedAt = AsTime(created)
		out = append(out, s)
	}
	return out, rows.Err()
}
