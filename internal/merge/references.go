package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nomadcxx/animerge/internal/database"
)

// Policy decides what happens when a duplicate's row collides with a row the
// primary already has for the same owner.
type Policy int

const (
	// PolicyMergeFields folds the duplicate row into the primary's row.
	PolicyMergeFields Policy = iota
	// PolicyKeepLatest keeps whichever row has the newest TimestampKey.
	PolicyKeepLatest
	// PolicyCollapse drops the duplicate row, applying Merge if set.
	PolicyCollapse
)

func (p Policy) String() string {
	switch p {
	case PolicyMergeFields:
		return "merge_fields"
	case PolicyKeepLatest:
		return "keep_latest"
	case PolicyCollapse:
		return "collapse"
	default:
		return "unknown"
	}
}

// Reference describes a collection whose rows point at anime records.
type Reference struct {
	Collection string
	ForeignKey string
	// OwnerKey is the column that, together with ForeignKey, is unique.
	OwnerKey     string
	Policy       Policy
	TimestampKey string
	// Merge returns the surviving row given the kept and the dropped one.
	Merge func(keep, drop database.Row) database.Row
}

// DefaultReferences returns the registry of every collection that references
// anime.
func DefaultReferences() []Reference {
	return []Reference{
		{
			Collection:   "watchlist",
			ForeignKey:   "anime_id",
			OwnerKey:     "user_id",
			Policy:       PolicyMergeFields,
			TimestampKey: "updated_at",
			Merge:        mergeWatchlist,
		},
		{
			Collection:   "reviews",
			ForeignKey:   "anime_id",
			OwnerKey:     "user_id",
			Policy:       PolicyKeepLatest,
			TimestampKey: "updated_at",
		},
		{
			Collection: "custom_list_items",
			ForeignKey: "anime_id",
			OwnerKey:   "list_id",
			Policy:     PolicyCollapse,
			Merge:      mergeListItem,
		},
	}
}

// mergeWatchlist combines two entries of one user: Completed wins, progress
// is the maximum, the first rating set is kept and notes are concatenated.
func mergeWatchlist(keep, drop database.Row) database.Row {
	out := cloneRow(keep)

	if database.AsString(drop["status"]) == database.StatusCompleted {
		out["status"] = database.StatusCompleted
	}
	if database.AsInt64(drop["progress"]) > database.AsInt64(keep["progress"]) {
		out["progress"] = database.AsInt64(drop["progress"])
	}
	if keep["rating"] == nil && drop["rating"] != nil {
		out["rating"] = drop["rating"]
	}

	keepNotes := strings.TrimSpace(database.AsString(keep["notes"]))
	dropNotes := strings.TrimSpace(database.AsString(drop["notes"]))
	switch {
	case dropNotes == "" || dropNotes == keepNotes:
	case keepNotes == "":
		out["notes"] = dropNotes
	default:
		out["notes"] = keepNotes + "\n" + dropNotes
	}

	out["created_at"] = earliest(keep["created_at"], drop["created_at"])
	out["updated_at"] = latest(keep["updated_at"], drop["updated_at"])
	return out
}

// mergeListItem keeps the earliest position and addition time of a title
// listed twice.
func mergeListItem(keep, drop database.Row) database.Row {
	out := cloneRow(keep)
	if database.AsInt64(drop["position"]) < database.AsInt64(keep["position"]) {
		out["position"] = database.AsInt64(drop["position"])
	}
	out["added_at"] = earliest(keep["added_at"], drop["added_at"])
	return out
}

// repoint moves every row in rows that references a duplicate over to
// primaryID, resolving owner collisions with the reference's policy. rows
// must hold the collection's rows for the primary and all duplicates,
// ordered by id.
func repoint(ctx context.Context, tx *database.Tx, ref Reference, rows []database.Row, primaryID int64) (int, error) {
	keepByOwner := make(map[string]database.Row)
	for _, row := range rows {
		if database.AsInt64(row[ref.ForeignKey]) == primaryID {
			keepByOwner[ownerOf(row, ref.OwnerKey)] = row
		}
	}

	moved := 0
	for _, row := range rows {
		if database.AsInt64(row[ref.ForeignKey]) == primaryID {
			continue
		}
		owner := ownerOf(row, ref.OwnerKey)
		keep, collides := keepByOwner[owner]

		if !collides {
			if err := tx.UpdateRow(ctx, ref.Collection, row.ID(), database.Row{ref.ForeignKey: primaryID}); err != nil {
				return moved, err
			}
			moved++
			row = cloneRow(row)
			row[ref.ForeignKey] = primaryID
			keepByOwner[owner] = row
			continue
		}

		survivor, err := resolve(ctx, tx, ref, keep, row, primaryID)
		if err != nil {
			return moved, err
		}
		moved++
		keepByOwner[owner] = survivor
	}
	return moved, nil
}

// resolve settles a collision between the primary's row keep and a
// duplicate's row drop and returns the row left referencing the primary.
func resolve(ctx context.Context, tx *database.Tx, ref Reference, keep, drop database.Row, primaryID int64) (database.Row, error) {
	switch ref.Policy {
	case PolicyKeepLatest:
		if !database.AsTime(drop[ref.TimestampKey]).After(database.AsTime(keep[ref.TimestampKey])) {
			return keep, tx.DeleteRow(ctx, ref.Collection, drop.ID())
		}
		// Free the unique slot before moving the newer row in.
		if err := tx.DeleteRow(ctx, ref.Collection, keep.ID()); err != nil {
			return nil, err
		}
		if err := tx.UpdateRow(ctx, ref.Collection, drop.ID(), database.Row{ref.ForeignKey: primaryID}); err != nil {
			return nil, err
		}
		out := cloneRow(drop)
		out[ref.ForeignKey] = primaryID
		return out, nil

	case PolicyMergeFields, PolicyCollapse:
		if err := tx.DeleteRow(ctx, ref.Collection, drop.ID()); err != nil {
			return nil, err
		}
		if ref.Merge == nil {
			if ref.Policy == PolicyMergeFields {
				return nil, fmt.Errorf("reference %s: merge policy without merge function", ref.Collection)
			}
			return keep, nil
		}
		merged := ref.Merge(keep, drop)
		if changed := diffRow(keep, merged); len(changed) > 0 {
			if err := tx.UpdateRow(ctx, ref.Collection, keep.ID(), changed); err != nil {
				return nil, err
			}
		}
		return merged, nil

	default:
		return nil, fmt.Errorf("reference %s: unknown policy %d", ref.Collection, ref.Policy)
	}
}

// diffRow returns the columns of next that differ from prev, never the id.
func diffRow(prev, next database.Row) database.Row {
	changed := make(database.Row)
	for k, v := range next {
		if k == "id" {
			continue
		}
		if old, ok := prev[k]; !ok || !sameValue(old, v) {
			changed[k] = v
		}
	}
	return changed
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := database.AsFloat(a); ok {
		if fb, ok := database.AsFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func ownerOf(row database.Row, key string) string {
	return fmt.Sprint(row[key])
}

func cloneRow(r database.Row) database.Row {
	out := make(database.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func earliest(a, b any) any {
	ta, tb := database.AsTime(a), database.AsTime(b)
	switch {
	case ta.IsZero():
		return b
	case tb.IsZero():
		return a
	case tb.Before(ta):
		return b
	default:
		return a
	}
}

func latest(a, b any) any {
	ta, tb := database.AsTime(a), database.AsTime(b)
	switch {
	case ta.IsZero():
		return b
	case tb.IsZero():
		return a
	case tb.After(ta):
		return b
	default:
		return a
	}
}
