package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/naming"
)

const animeColumns = `id, title, title_english, alt_titles, mal_id, anilist_id,
	year, episodes, total_episodes, genres, studios, rating, poster_url,
	description, consolidated, series_key, seasons, created_at, updated_at`

// InsertAnime stores a new record and returns its id. CreatedAt and
// UpdatedAt default to now when zero.
func (m *AnimeDB) InsertAnime(ctx context.Context, r *anime.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return insertAnime(ctx, m.db, r)
}

// GetAnime returns a record by id, or nil if it does not exist.
func (m *AnimeDB) GetAnime(ctx context.Context, id int64) (*anime.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return getAnime(ctx, m.db, id)
}

// ListAnime returns every record ordered by id.
func (m *AnimeDB) ListAnime(ctx context.Context) ([]anime.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return queryAnime(ctx, m.db, `SELECT `+animeColumns+` FROM anime ORDER BY id`)
}

// CountAnime returns the number of anime records.
func (m *AnimeDB) CountAnime(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&n)
	return n, err
}

// FindByMalID returns the lowest-id record carrying a MyAnimeList id, or nil.
func (m *AnimeDB) FindByMalID(ctx context.Context, malID int) (*anime.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return firstAnime(queryAnime(ctx, m.db,
		`SELECT `+animeColumns+` FROM anime WHERE mal_id = ? ORDER BY id LIMIT 1`, malID))
}

// FindByAniListID returns the lowest-id record carrying an AniList id, or nil.
func (m *AnimeDB) FindByAniListID(ctx context.Context, anilistID int) (*anime.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return firstAnime(queryAnime(ctx, m.db,
		`SELECT `+animeColumns+` FROM anime WHERE anilist_id = ? ORDER BY id LIMIT 1`, anilistID))
}

// FindByBaseTitle returns records whose title, stripped of season markers,
// equals base. The series_key of consolidated records is matched as well.
func (m *AnimeDB) FindByBaseTitle(ctx context.Context, base string) ([]anime.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return queryAnime(ctx, m.db,
		`SELECT `+animeColumns+` FROM anime
		 WHERE base_title = ? OR series_key = ?
		 ORDER BY id`, base, "t:"+base)
}

// GetAnime returns a record by id inside the transaction, or nil.
func (t *Tx) GetAnime(ctx context.Context, id int64) (*anime.Record, error) {
	return getAnime(ctx, t.tx, id)
}

// GetAnimeByIDs returns the records that still exist among ids, ordered by id.
func (t *Tx) GetAnimeByIDs(ctx context.Context, ids []int64) ([]anime.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	return queryAnime(ctx, t.tx,
		`SELECT `+animeColumns+` FROM anime WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
}

// InsertAnime stores a new record inside the transaction.
func (t *Tx) InsertAnime(ctx context.Context, r *anime.Record) (int64, error) {
	return insertAnime(ctx, t.tx, r)
}

// UpdateAnime overwrites every column of an existing record.
func (t *Tx) UpdateAnime(ctx context.Context, r *anime.Record) error {
	cols, err := animeValues(r)
	if err != nil {
		return err
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE anime SET
			title = ?, title_normalized = ?, base_title = ?, title_english = ?,
			alt_titles = ?, mal_id = ?, anilist_id = ?, year = ?, episodes = ?,
			total_episodes = ?, genres = ?, studios = ?, rating = ?,
			poster_url = ?, description = ?, consolidated = ?, series_key = ?,
			seasons = ?, updated_at = ?
		WHERE id = ?
	`, append(cols, updatedAt, r.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update anime %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update anime %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

// DeleteAnime removes a record. Rows still referencing it make this fail.
func (t *Tx) DeleteAnime(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM anime WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete anime %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete anime %d: %w", id, ErrNotFound)
	}
	return nil
}

// AnimeExists reports whether a record with id exists.
func (t *Tx) AnimeExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM anime WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func insertAnime(ctx context.Context, q querier, r *anime.Record) (int64, error) {
	cols, err := animeValues(r)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	createdAt, updatedAt := r.CreatedAt, r.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO anime (
			title, title_normalized, base_title, title_english, alt_titles,
			mal_id, anilist_id, year, episodes, total_episodes, genres,
			studios, rating, poster_url, description, consolidated,
			series_key, seasons, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append(cols, createdAt, updatedAt)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert anime %q: %w", r.Title, err)
	}
	return res.LastInsertId()
}

// animeValues returns the writable columns in schema order, from title to
// seasons.
func animeValues(r *anime.Record) ([]any, error) {
	if strings.TrimSpace(r.Title) == "" {
		return nil, errors.New("anime title is required")
	}

	altTitles, err := encodeJSON(r.AltTitles)
	if err != nil {
		return nil, err
	}
	genres, err := encodeJSON(r.Genres)
	if err != nil {
		return nil, err
	}
	studios, err := encodeJSON(r.Studios)
	if err != nil {
		return nil, err
	}
	var seasons *string
	if len(r.Seasons) > 0 {
		if seasons, err = encodeJSON(r.Seasons); err != nil {
			return nil, err
		}
	}

	return []any{
		r.Title,
		naming.NormalizeTitle(r.Title),
		naming.ExtractSeason(r.Title).BaseTitle,
		r.TitleEnglish,
		altTitles,
		r.MalID,
		r.AniListID,
		r.Year,
		r.Episodes,
		r.TotalEpisodes,
		genres,
		studios,
		r.Rating,
		r.PosterURL,
		r.Description,
		r.Consolidated,
		r.SeriesKey,
		seasons,
	}, nil
}

func getAnime(ctx context.Context, q querier, id int64) (*anime.Record, error) {
	return firstAnime(queryAnime(ctx, q, `SELECT `+animeColumns+` FROM anime WHERE id = ?`, id))
}

func firstAnime(records []anime.Record, err error) (*anime.Record, error) {
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func queryAnime(ctx context.Context, q querier, query string, args ...any) ([]anime.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []anime.Record
	for rows.Next() {
		r, err := scanAnime(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func scanAnime(rows *sql.Rows) (*anime.Record, error) {
	var r anime.Record
	var altTitles, genres, studios, seasons *string

	err := rows.Scan(
		&r.ID, &r.Title, &r.TitleEnglish, &altTitles, &r.MalID, &r.AniListID,
		&r.Year, &r.Episodes, &r.TotalEpisodes, &genres, &studios, &r.Rating,
		&r.PosterURL, &r.Description, &r.Consolidated, &r.SeriesKey, &seasons,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(altTitles, &r.AltTitles); err != nil {
		return nil, fmt.Errorf("anime %d alt_titles: %w", r.ID, err)
	}
	if err := decodeJSON(genres, &r.Genres); err != nil {
		return nil, fmt.Errorf("anime %d genres: %w", r.ID, err)
	}
	if err := decodeJSON(studios, &r.Studios); err != nil {
		return nil, fmt.Errorf("anime %d studios: %w", r.ID, err)
	}
	if err := decodeJSON(seasons, &r.Seasons); err != nil {
		return nil, fmt.Errorf("anime %d seasons: %w", r.ID, err)
	}
	return &r, nil
}

// encodeJSON stores empty collections as NULL.
func encodeJSON[T any](v []T) (*string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeJSON(raw *string, dst any) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(*raw), dst)
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
