package merge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.AnimeDB {
	t.Helper()
	db, err := database.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insert(t *testing.T, db *database.AnimeDB, r anime.Record) int64 {
	t.Helper()
	id, err := db.InsertAnime(context.Background(), &r)
	require.NoError(t, err)
	return id
}

func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

// bebopFixture stores a rich and a sparse copy of the same title plus
// watchlist entries, reviews and list items on both.
type bebopFixture struct {
	primaryID int64
	dupID     int64
	listID    int64
}

func seedBebop(t *testing.T, db *database.AnimeDB) bebopFixture {
	t.Helper()
	ctx := context.Background()

	primaryID := insert(t, db, anime.Record{
		Title:       "Cowboy Bebop",
		MalID:       anime.IntPtr(1),
		Year:        anime.IntPtr(1998),
		Episodes:    anime.IntPtr(26),
		Description: anime.StringPtr("Bounty hunters travel the solar system aboard the Bebop."),
		PosterURL:   anime.StringPtr("https://cdn.example.org/bebop.jpg"),
	})
	dupID := insert(t, db, anime.Record{
		Title:     "Cowboy Bebop",
		AniListID: anime.IntPtr(1),
		Year:      anime.IntPtr(1998),
		Genres:    []string{"Action", "Sci-Fi"},
	})

	_, err := db.AddWatchlistEntry(ctx, &database.WatchlistEntry{
		UserID: "alice", AnimeID: primaryID, Status: database.StatusWatching, Progress: 5,
		Notes: anime.StringPtr("first"), UpdatedAt: day("2024-01-01"),
	})
	require.NoError(t, err)
	_, err = db.AddWatchlistEntry(ctx, &database.WatchlistEntry{
		UserID: "alice", AnimeID: dupID, Status: database.StatusCompleted, Progress: 26,
		Rating: anime.FloatPtr(9), Notes: anime.StringPtr("rewatch"), UpdatedAt: day("2024-03-01"),
	})
	require.NoError(t, err)
	_, err = db.AddWatchlistEntry(ctx, &database.WatchlistEntry{
		UserID: "bob", AnimeID: dupID, Status: database.StatusPlanToWatch,
	})
	require.NoError(t, err)

	_, err = db.AddReview(ctx, &database.Review{
		AnimeID: primaryID, UserID: "alice", Body: "older", UpdatedAt: day("2024-01-01"),
	})
	require.NoError(t, err)
	_, err = db.AddReview(ctx, &database.Review{
		AnimeID: dupID, UserID: "alice", Body: "newer", UpdatedAt: day("2024-06-01"),
	})
	require.NoError(t, err)
	_, err = db.AddReview(ctx, &database.Review{
		AnimeID: primaryID, UserID: "bob", Body: "classic", UpdatedAt: day("2024-02-01"),
	})
	require.NoError(t, err)

	listID, err := db.CreateCustomList(ctx, "alice", "favorites")
	require.NoError(t, err)
	_, err = db.AddListItem(ctx, listID, primaryID, 3)
	require.NoError(t, err)
	_, err = db.AddListItem(ctx, listID, dupID, 1)
	require.NoError(t, err)

	return bebopFixture{primaryID: primaryID, dupID: dupID, listID: listID}
}

func TestProcessGroup_RepointsReferences(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fx := seedBebop(t, db)

	orch := NewOrchestrator(db, nil, nil)
	res, err := orch.ProcessGroup(ctx, "batch-1", "mal:1", []int64{fx.primaryID, fx.dupID})
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, fx.primaryID, res.PrimaryID)
	assert.Equal(t, []int64{fx.dupID}, res.DeletedIDs)
	assert.Equal(t, 2, res.GroupSize)
	assert.False(t, res.Consolidated)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	merged, err := db.GetAnime(ctx, fx.primaryID)
	require.NoError(t, err)
	require.NotNil(t, merged)
	require.NotNil(t, merged.AniListID, "absent fields are filled from duplicates")
	assert.Equal(t, 1, *merged.AniListID)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, merged.Genres)

	alice, err := db.GetWatchlist(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, fx.primaryID, alice[0].AnimeID)
	assert.Equal(t, database.StatusCompleted, alice[0].Status)
	assert.Equal(t, 26, alice[0].Progress)
	require.NotNil(t, alice[0].Rating)
	assert.Equal(t, 9.0, *alice[0].Rating)
	require.NotNil(t, alice[0].Notes)
	assert.Equal(t, "first\nrewatch", *alice[0].Notes)

	bob, err := db.GetWatchlist(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, fx.primaryID, bob[0].AnimeID)

	reviews, err := db.GetReviews(ctx, fx.primaryID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	bodies := map[string]string{}
	for _, r := range reviews {
		bodies[r.UserID] = r.Body
	}
	assert.Equal(t, "newer", bodies["alice"])
	assert.Equal(t, "classic", bodies["bob"])

	items, err := db.ListItems(ctx, fx.listID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fx.primaryID, items[0].AnimeID)
	assert.Equal(t, 1, items[0].Position)

	dangling, err := db.DanglingReferences(ctx)
	require.NoError(t, err)
	assert.Zero(t, dangling)
}

func TestRestoreBatch_ReturnsPreMergeState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fx := seedBebop(t, db)

	orch := NewOrchestrator(db, nil, nil)
	_, err := orch.ProcessGroup(ctx, "batch-1", "mal:1", []int64{fx.primaryID, fx.dupID})
	require.NoError(t, err)

	for round := 0; round < 2; round++ {
		res, err := orch.RestoreBatch(ctx, "batch-1")
		require.NoError(t, err)
		assert.Equal(t, "batch-1", res.BatchID)
		assert.Equal(t, 2, res.RestoredCount)

		count, err := db.CountAnime(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count, "round %d", round)

		dangling, err := db.DanglingReferences(ctx)
		require.NoError(t, err)
		assert.Zero(t, dangling, "round %d", round)

		alice, err := db.GetWatchlist(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, alice, 2, "round %d", round)

		primary, err := db.GetAnime(ctx, fx.primaryID)
		require.NoError(t, err)
		require.NotNil(t, primary)
		assert.Nil(t, primary.AniListID, "primary is patched back to its snapshot")
		assert.Empty(t, primary.Genres)

		for _, e := range alice {
			if e.AnimeID == fx.primaryID {
				assert.Equal(t, database.StatusWatching, e.Status)
				assert.Equal(t, 5, e.Progress)
			} else {
				assert.Equal(t, database.StatusCompleted, e.Status)
				assert.NotEqual(t, fx.dupID, e.AnimeID, "deleted records come back under a new id")
			}
		}

		reviews, err := db.GetReviews(ctx, fx.primaryID)
		require.NoError(t, err)
		require.Len(t, reviews, 2)

		items, err := db.ListItems(ctx, fx.listID)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	}

	gone, err := db.GetAnime(ctx, fx.dupID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRestoreBatch_Unknown(t *testing.T) {
	db := setupTestDB(t)
	res, err := NewOrchestrator(db, nil, nil).RestoreBatch(context.Background(), "no-such-batch")
	require.NoError(t, err)
	assert.Zero(t, res.RestoredCount)
}

func TestProcessGroup_Skips(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fx := seedBebop(t, db)
	orch := NewOrchestrator(db, nil, nil)

	res, err := orch.ProcessGroup(ctx, "b", "t:x", []int64{fx.primaryID, 9999})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ReasonTooFewMembers, res.Reason)

	_, err = orch.ProcessGroup(ctx, "b", "mal:1", []int64{fx.primaryID, fx.dupID})
	require.NoError(t, err)
	_, err = orch.RestoreBatch(ctx, "b")
	require.NoError(t, err)

	alice, err := db.GetWatchlist(ctx, "alice")
	require.NoError(t, err)
	ids := []int64{alice[0].AnimeID, alice[1].AnimeID}

	res, err = orch.ProcessGroup(ctx, "b", "mal:1", ids)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ReasonAlreadyMerged, res.Reason)
}

func TestProcessGroup_FailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fx := seedBebop(t, db)

	refs := append(DefaultReferences(), Reference{Collection: "bogus", ForeignKey: "anime_id"})
	orch := NewOrchestrator(db, refs, nil)

	res, err := orch.ProcessGroup(ctx, "batch-x", "mal:1", []int64{fx.primaryID, fx.dupID})
	require.Error(t, err)
	assert.NotEmpty(t, res.Error)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	batches, err := db.ListMergeBatches(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRunner_RunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBebop(t, db)
	insert(t, db, anime.Record{Title: "Naruto", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)})
	insert(t, db, anime.Record{Title: "Naruto (TV)", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)})
	insert(t, db, anime.Record{Title: "Naruto Shippuden", Year: anime.IntPtr(2007), Episodes: anime.IntPtr(500)})
	insert(t, db, anime.Record{Title: "Made in Abyss", Year: anime.IntPtr(2017)})

	runner := NewRunner(db, nil, nil)
	first, err := runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.GroupsExamined)
	assert.Equal(t, 2, first.GroupsProcessed)
	assert.Zero(t, first.GroupsFailed)
	assert.NotEmpty(t, first.BatchID)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	second, err := runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.GroupsProcessed)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	after, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, after)
}

func TestRunner_NarutoConsolidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	insert(t, db, anime.Record{Title: "Naruto", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002), Episodes: anime.IntPtr(220)})
	insert(t, db, anime.Record{Title: "Naruto (TV)", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)})
	insert(t, db, anime.Record{Title: "Naruto Shippuden", Year: anime.IntPtr(2007), Episodes: anime.IntPtr(500)})

	res, err := NewRunner(db, nil, nil).Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Consolidated)

	all, err := db.ListAnime(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Consolidated)
	require.NotNil(t, all[0].SeriesKey)
	assert.Equal(t, "t:naruto", *all[0].SeriesKey)
	assert.Len(t, all[0].Seasons, 3)
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	fx := seedBebop(t, db)

	res, err := NewRunner(db, nil, nil).Run(ctx, RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Zero(t, res.GroupsProcessed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, fx.primaryID, res.Results[0].PrimaryID)
	assert.Equal(t, []int64{fx.dupID}, res.Results[0].DeletedIDs)
	assert.Equal(t, ReasonDryRun, res.Results[0].Reason)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	batches, err := db.ListMergeBatches(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRunner_LimitGroups(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBebop(t, db)
	insert(t, db, anime.Record{Title: "Naruto", MalID: anime.IntPtr(20)})
	insert(t, db, anime.Record{Title: "Naruto (TV)", MalID: anime.IntPtr(20)})

	res, err := NewRunner(db, nil, nil).Run(ctx, RunOptions{LimitGroups: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.GroupsExamined)
	assert.Equal(t, 1, res.GroupsProcessed)
	assert.Len(t, res.Results, 1)

	runner := NewRunner(db, nil, nil)
	groups, err := runner.Groups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestRunner_ReportsProgress(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBebop(t, db)
	insert(t, db, anime.Record{Title: "Naruto", MalID: anime.IntPtr(20)})
	insert(t, db, anime.Record{Title: "Naruto (TV)", MalID: anime.IntPtr(20)})

	tests := []struct {
		name string
		opts RunOptions
		want [][2]int
	}{
		{"dry run", RunOptions{DryRun: true}, [][2]int{{1, 2}, {2, 2}}},
		{"limited", RunOptions{LimitGroups: 1}, [][2]int{{1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls [][2]int
			tt.opts.Progress = func(done, total int) {
				calls = append(calls, [2]int{done, total})
			}
			_, err := NewRunner(db, nil, nil).Run(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, calls)
		})
	}
}

func TestRunner_RestoreAfterRun(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBebop(t, db)

	runner := NewRunner(db, nil, nil)
	res, err := runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	restored, err := runner.Restore(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.RestoredCount)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPlan(t *testing.T) {
	g := dedup.Group{Key: "mal:1", Members: []anime.Record{
		{ID: 1, Title: "Trigun"},
		{ID: 2, Title: "Trigun", MalID: anime.IntPtr(6), Description: anime.StringPtr("Vash")},
	}}
	res := Plan(g)
	assert.Equal(t, int64(2), res.PrimaryID)
	assert.Equal(t, []int64{1}, res.DeletedIDs)
	assert.True(t, res.Skipped)
	assert.False(t, res.Consolidated)
}
