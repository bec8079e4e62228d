package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T, opts Options) (*Server, *database.AnimeDB) {
	t.Helper()
	db, err := database.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewServer(db, merge.NewRunner(db, nil, nil), ingest.NewIngester(db, nil, nil), nil, opts)
	return s, db
}

func seed(t *testing.T, db *database.AnimeDB, records ...anime.Record) {
	t.Helper()
	for i := range records {
		_, err := db.InsertAnime(context.Background(), &records[i])
		require.NoError(t, err)
	}
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t, Options{})
	h := s.Handler()

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(t, h, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"ok"`)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := setupServer(t, Options{Token: "s3cret"})
	h := s.Handler()

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing token", "/api/v1/stats", nil, http.StatusUnauthorized},
		{"wrong token", "/api/v1/stats", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid token", "/api/v1/stats", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"health is public", "/api/v1/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, nil, tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestDedupFlow(t *testing.T) {
	s, db := setupServer(t, Options{})
	h := s.Handler()
	seed(t, db,
		anime.Record{Title: "Naruto", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002), Episodes: anime.IntPtr(220)},
		anime.Record{Title: "Naruto (TV)", MalID: anime.IntPtr(20), Year: anime.IntPtr(2002)},
		anime.Record{Title: "Monster", Year: anime.IntPtr(2004)},
	)

	w := do(t, h, http.MethodGet, "/api/v1/dedup/groups", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups GroupList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Equal(t, 1, groups.Total)
	assert.Equal(t, "mal:20", groups.Groups[0].Key)
	require.Len(t, groups.Groups[0].Members, 2)
	assert.True(t, groups.Groups[0].Members[0].Primary)

	w = do(t, h, http.MethodPost, "/api/v1/dedup/run?dry_run=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dry merge.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dry))
	assert.True(t, dry.DryRun)
	assert.Zero(t, dry.GroupsProcessed)

	count, err := db.CountAnime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	w = do(t, h, http.MethodPost, "/api/v1/dedup/run", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run merge.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, 1, run.GroupsProcessed)

	w = do(t, h, http.MethodGet, "/api/v1/batches", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var batches []database.BatchSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, run.BatchID, batches[0].BatchID)
	assert.Equal(t, 1, batches[0].Duplicates)

	w = do(t, h, http.MethodPost, "/api/v1/batches/"+run.BatchID+"/restore", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var restored merge.RestoreResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &restored))
	assert.Equal(t, 2, restored.RestoredCount)

	count, err = db.CountAnime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunDedup_InvalidParams(t *testing.T) {
	s, _ := setupServer(t, Options{})
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/dedup/run?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_parameter")

	w = do(t, h, http.MethodPost, "/api/v1/dedup/run?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunDedup_Conflict(t *testing.T) {
	s, _ := setupServer(t, Options{})
	s.runMu.Lock()
	defer s.runMu.Unlock()

	w := do(t, s.Handler(), http.MethodPost, "/api/v1/dedup/run", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRestoreUnknownBatch(t *testing.T) {
	s, _ := setupServer(t, Options{})
	w := do(t, s.Handler(), http.MethodPost, "/api/v1/batches/nope/restore", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res merge.RestoreResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "nope", res.BatchID)
	assert.Zero(t, res.RestoredCount)
}

func TestIngest(t *testing.T) {
	s, db := setupServer(t, Options{})
	h := s.Handler()
	body := []byte(`[{"title":"Mob Psycho 100","mal_id":32182},{"title":""},{"title":"Mob Psycho 100 (TV)","mal_id":32182}]`)

	w := do(t, h, http.MethodPost, "/api/v1/ingest?preview=true", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview IngestPreview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	require.Len(t, preview.Candidates, 1)
	assert.Len(t, preview.Diagnostics, 1)

	w = do(t, h, http.MethodPost, "/api/v1/ingest", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res ingest.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Received)
	assert.Equal(t, 1, res.Inserted)

	count, err := db.CountAnime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	w = do(t, h, http.MethodPost, "/api/v1/ingest", []byte("{"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	s, db := setupServer(t, Options{})
	seed(t, db, anime.Record{Title: "Mushishi"})

	w := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats database.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.AnimeCount)
}
