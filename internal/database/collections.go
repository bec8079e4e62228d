package database

import (
	"context"
	"fmt"
	"time"
)

// Watch statuses
const (
	StatusPlanToWatch = "Plan to Watch"
	StatusWatching    = "Watching"
	StatusCompleted   = "Completed"
	StatusDropped     = "Dropped"
)

// WatchlistEntry is a user's watch state for one title.
type WatchlistEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	AnimeID   int64     `json:"anime_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Rating    *float64  `json:"rating,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review is a user's review of one title.
type Review struct {
	ID        int64     `json:"id"`
	AnimeID   int64     `json:"anime_id"`
	UserID    string    `json:"user_id"`
	Rating    *float64  `json:"rating,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListItem is one membership of a title in a custom list.
type ListItem struct {
	ID       int64 `json:"id"`
	ListID   int64 `json:"list_id"`
	AnimeID  int64 `json:"anime_id"`
	Position int   `json:"position"`
}

func stamps(created, updated time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return created, updated
}

// AddWatchlistEntry inserts a watchlist entry and returns its id.
func (m *AnimeDB) AddWatchlistEntry(ctx context.Context, e *WatchlistEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := e.Status
	if status == "" {
		status = StatusPlanToWatch
	}
	created, updated := stamps(e.CreatedAt, e.UpdatedAt)

	res, err := m.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, anime_id, status, progress, rating, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.UserID, e.AnimeID, status, e.Progress, e.Rating, e.Notes, created, updated)
	if err != nil {
		return 0, fmt.Errorf("failed to add watchlist entry: %w", err)
	}
	return res.LastInsertId()
}

// GetWatchlist returns a user's entries ordered by id.
func (m *AnimeDB) GetWatchlist(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, anime_id, status, progress, rating, notes, created_at, updated_at
		FROM watchlist WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.AnimeID, &e.Status, &e.Progress,
			&e.Rating, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddReview inserts a review and returns its id.
func (m *AnimeDB) AddReview(ctx context.Context, r *Review) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created, updated := stamps(r.CreatedAt, r.UpdatedAt)
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO reviews (anime_id, user_id, rating, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.AnimeID, r.UserID, r.Rating, r.Body, created, updated)
	if err != nil {
		return 0, fmt.Errorf("failed to add review: %w", err)
	}
	return res.LastInsertId()
}

// GetReviews returns the reviews of a title ordered by id.
func (m *AnimeDB) GetReviews(ctx context.Context, animeID int64) ([]Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, anime_id, user_id, rating, COALESCE(body, ''), created_at, updated_at
		FROM reviews WHERE anime_id = ? ORDER BY id
	`, animeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.AnimeID, &r.UserID, &r.Rating, &r.Body,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CreateCustomList creates an empty list and returns its id.
func (m *AnimeDB) CreateCustomList(ctx context.Context, userID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO custom_lists (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create list %q: %w", name, err)
	}
	return res.LastInsertId()
}

// AddListItem appends a title to a list at position.
func (m *AnimeDB) AddListItem(ctx context.Context, listID, animeID int64, position int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO custom_list_items (list_id, anime_id, position) VALUES (?, ?, ?)`,
		listID, animeID, position)
	if err != nil {
		return 0, fmt.Errorf("failed to add anime %d to list %d: %w", animeID, listID, err)
	}
	return res.LastInsertId()
}

// ListItems returns the members of a list in list order.
func (m *AnimeDB) ListItems(ctx context.Context, listID int64) ([]ListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, list_id, anime_id, position
		FROM custom_list_items WHERE list_id = ? ORDER BY position, id
	`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.ListID, &it.AnimeID, &it.Position); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DanglingReferences counts rows in the reference collections that point at
// an anime id that does not exist.
func (m *AnimeDB) DanglingReferences(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int
	for _, table := range []string{"watchlist", "reviews", "custom_list_items"} {
		var n int
		err := m.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT COUNT(*) FROM %s r
			LEFT JOIN anime a ON a.id = r.anime_id
			WHERE a.id IS NULL`, table)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to check %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}
