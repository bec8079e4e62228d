package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
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

func TestDecodeBatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"array", `[{"title":"Naruto","mal_id":20},{"title":"Bleach"}]`, 2, false},
		{"single object", `{"title":"Monster"}`, 1, false},
		{"empty array", `[]`, 0, false},
		{"blank", "  ", 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBatch(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBatch)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	raws := []RawRecord{
		{Title: "  Cowboy Bebop ", MalID: anime.IntPtr(1), Genres: []string{"Action", " action ", ""}},
		{Title: ""},
		{Title: "Trigun", MalID: anime.IntPtr(-4), Year: anime.IntPtr(1200), Rating: anime.FloatPtr(42)},
		{Title: "Monster", TitleEnglish: anime.StringPtr("   ")},
	}

	records, sources, diags := Validate(raws)
	require.Len(t, records, 3)
	assert.Equal(t, []int{0, 2, 3}, sources)

	assert.Equal(t, "Cowboy Bebop", records[0].Title)
	assert.Equal(t, []string{"Action"}, records[0].Genres)
	assert.Nil(t, records[1].MalID)
	assert.Nil(t, records[1].Year)
	assert.Nil(t, records[1].Rating)
	assert.Nil(t, records[2].TitleEnglish)

	var skipped, fields int
	for _, d := range diags {
		if d.Skipped {
			skipped++
			assert.Equal(t, 1, d.Index)
		} else {
			fields++
			assert.Equal(t, 2, d.Index)
		}
	}
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 3, fields)
}

func TestIngest_CollapsesAndCrossChecks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	existing := anime.Record{Title: "Cowboy Bebop", MalID: anime.IntPtr(1), Year: anime.IntPtr(1998)}
	existingID, err := db.InsertAnime(ctx, &existing)
	require.NoError(t, err)

	ing := NewIngester(db, nil, nil)
	res, err := ing.Ingest(ctx, []RawRecord{
		{Title: "Naruto", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)},
		{Title: ""},
		{Title: "Naruto (TV)", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002), Episodes: anime.IntPtr(220)},
		{Title: "Cowboy Bebop", AniListID: anime.IntPtr(1), MalID: anime.IntPtr(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Received)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.AlreadyPresent)
	require.Len(t, res.Outcomes, 2)

	naruto := res.Outcomes[0]
	assert.Equal(t, dedup.DispositionInsert, naruto.Disposition)
	assert.Equal(t, []int{0, 2}, naruto.Sources)
	assert.NotZero(t, naruto.ID)

	bebop := res.Outcomes[1]
	assert.Equal(t, dedup.DispositionAlreadyPresent, bebop.Disposition)
	assert.Equal(t, existingID, bebop.ID)
	assert.Equal(t, []int{3}, bebop.Sources)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := db.GetAnime(ctx, naruto.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Episodes)
	assert.Equal(t, 220, *stored.Episodes)

	again, err := ing.Ingest(ctx, []RawRecord{{Title: "Naruto", MalID: anime.IntPtr(20)}})
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, 1, again.AlreadyPresent)
}

func TestIngest_ConcurrentBatchesInsertOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ing := NewIngester(db, nil, nil)

	const batches = 8
	var wg sync.WaitGroup
	inserted := make([]int, batches)
	errs := make([]error, batches)
	for n := 0; n < batches; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := ing.Ingest(ctx, []RawRecord{{Title: "Naruto", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)}})
			errs[n] = err
			if res != nil {
				inserted[n] = res.Inserted
			}
		}(n)
	}
	wg.Wait()

	total := 0
	for n := range inserted {
		require.NoError(t, errs[n])
		total += inserted[n]
	}
	assert.Equal(t, 1, total)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngest_AllSkipped(t *testing.T) {
	db := setupTestDB(t)
	res, err := NewIngester(db, nil, nil).Ingest(context.Background(), []RawRecord{{Title: " "}})
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Len(t, res.Diagnostics, 1)
	assert.Empty(t, res.Outcomes)
}

func TestPreview_WritesNothing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	candidates, diags, err := NewIngester(db, nil, nil).Preview(ctx, []RawRecord{
		{Title: "Mushishi", Year: anime.IntPtr(2005)},
		{Title: "Mushishi (TV)", Year: anime.IntPtr(2005)},
	})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, candidates, 1)
	assert.Equal(t, []int{0, 1}, candidates[0].Sources)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWatcher_ProcessFile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	root := t.TempDir()
	drop := filepath.Join(root, "incoming")

	w, err := NewWatcher(NewIngester(db, nil, nil), drop,
		filepath.Join(root, "processed"), filepath.Join(root, "failed"), nil)
	require.NoError(t, err)
	defer w.Close()

	good := filepath.Join(drop, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"title":"Mononoke","year":2007}]`), 0644))
	bad := filepath.Join(drop, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title":`), 0644))
	ignored := filepath.Join(drop, "notes.txt")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0644))

	require.NoError(t, w.ProcessExisting(ctx))

	assert.FileExists(t, filepath.Join(root, "processed", "good.json"))
	assert.FileExists(t, filepath.Join(root, "failed", "bad.json"))
	assert.FileExists(t, filepath.Join(root, "failed", "bad.json.err"))
	assert.FileExists(t, ignored)
	assert.NoFileExists(t, good)

	count, err := db.CountAnime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWatcher_StoreErrorLeavesBatch(t *testing.T) {
	db := setupTestDB(t)
	root := t.TempDir()
	drop := filepath.Join(root, "incoming")
	failed := filepath.Join(root, "failed")

	w, err := NewWatcher(NewIngester(db, nil, nil), drop,
		filepath.Join(root, "processed"), failed, nil, WithRetryDelay(0))
	require.NoError(t, err)
	defer w.Close()

	batch := filepath.Join(drop, "batch.json")
	require.NoError(t, os.WriteFile(batch, []byte(`[{"title":"Mononoke","year":2007}]`), 0644))

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := w.ProcessFile(ctx, batch)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidBatch)
		assert.FileExists(t, batch)
		assert.NoFileExists(t, filepath.Join(failed, "batch.json"))
	})

	t.Run("closed store", func(t *testing.T) {
		require.NoError(t, db.Close())
		_, err := w.ProcessFile(context.Background(), batch)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidBatch)
		assert.FileExists(t, batch)
		assert.NoFileExists(t, filepath.Join(failed, "batch.json"))
		assert.NoFileExists(t, filepath.Join(failed, "batch.json.err"))
	})
}

func TestWatcher_Start(t *testing.T) {
	db := setupTestDB(t)
	root := t.TempDir()
	drop := filepath.Join(root, "incoming")

	var mu sync.Mutex
	var seen []string
	w, err := NewWatcher(NewIngester(db, nil, nil), drop,
		filepath.Join(root, "processed"), filepath.Join(root, "failed"), nil,
		WithSettleDelay(20*time.Millisecond),
		WithResultHook(func(path string, res *Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				seen = append(seen, filepath.Base(path))
			}
		}))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(drop, "batch.json"),
		[]byte(`[{"title":"Haikyuu!!","mal_id":20583}]`), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	found, err := db.FindByMalID(context.Background(), 20583)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Haikyuu!!", found.Title)
}
