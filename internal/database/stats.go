package database

import "context"

// Stats represents database statistics
type Stats struct {
	AnimeCount        int `json:"anime"`
	ConsolidatedCount int `json:"consolidated"`
	WatchlistCount    int `json:"watchlist"`
	ReviewCount       int `json:"reviews"`
	ListItemCount     int `json:"list_items"`
	BatchCount        int `json:"batches"`
	RestoredCount     int `json:"restored"`
}

// GetStats returns database statistics
func (m *AnimeDB) GetStats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats Stats

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM anime`, &stats.AnimeCount},
		{`SELECT COUNT(*) FROM anime WHERE consolidated = 1`, &stats.ConsolidatedCount},
		{`SELECT COUNT(*) FROM watchlist`, &stats.WatchlistCount},
		{`SELECT COUNT(*) FROM reviews`, &stats.ReviewCount},
		{`SELECT COUNT(*) FROM custom_list_items`, &stats.ListItemCount},
		{`SELECT COUNT(DISTINCT batch_id) FROM merge_batches`, &stats.BatchCount},
		{`SELECT COUNT(*) FROM merge_restorations`, &stats.RestoredCount},
	}
	for _, c := range counts {
		if err := m.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	return &stats, nil
}
