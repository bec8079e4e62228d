package database

import "database/sql"

// Schema version for migrations
const currentSchemaVersion = 2

// SQL migration scripts
var migrations = []migration{
	{
		version: 1,
		up: []string{
			`CREATE TABLE schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,

			// Anime table
			`CREATE TABLE anime (
				id INTEGER PRIMARY KEY AUTOINCREMENT,

				-- Identification
				title TEXT NOT NULL,
				title_normalized TEXT NOT NULL,
				base_title TEXT NOT NULL,
				title_english TEXT,
				alt_titles TEXT,

				-- External IDs (not unique: duplicates are what we clean up)
				mal_id INTEGER,
				anilist_id INTEGER,

				-- Metadata
				year INTEGER,
				episodes INTEGER,
				total_episodes INTEGER,
				genres TEXT,
				studios TEXT,
				rating REAL,
				poster_url TEXT,
				description TEXT,

				-- Consolidation
				consolidated BOOLEAN NOT NULL DEFAULT 0,
				series_key TEXT,
				seasons TEXT,

				-- Timestamps
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,

			`CREATE INDEX idx_anime_mal ON anime(mal_id)`,
			`CREATE INDEX idx_anime_anilist ON anime(anilist_id)`,
			`CREATE INDEX idx_anime_normalized ON anime(title_normalized)`,
			`CREATE INDEX idx_anime_base_title ON anime(base_title)`,

			// Per-user watch state, one entry per user per title
			`CREATE TABLE watchlist (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				anime_id INTEGER NOT NULL REFERENCES anime(id),
				status TEXT NOT NULL DEFAULT 'Plan to Watch',
				progress INTEGER NOT NULL DEFAULT 0,
				rating REAL,
				notes TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(user_id, anime_id)
			)`,
			`CREATE INDEX idx_watchlist_anime ON watchlist(anime_id)`,

			// Reviews, one per user per title
			`CREATE TABLE reviews (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				anime_id INTEGER NOT NULL REFERENCES anime(id),
				user_id TEXT NOT NULL,
				rating REAL,
				body TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(anime_id, user_id)
			)`,
			`CREATE INDEX idx_reviews_anime ON reviews(anime_id)`,

			// User-curated ordered lists
			`CREATE TABLE custom_lists (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE custom_list_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				list_id INTEGER NOT NULL REFERENCES custom_lists(id) ON DELETE CASCADE,
				anime_id INTEGER NOT NULL REFERENCES anime(id),
				position INTEGER NOT NULL DEFAULT 0,
				added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(list_id, anime_id)
			)`,
			`CREATE INDEX idx_custom_list_items_anime ON custom_list_items(anime_id)`,

			`INSERT INTO schema_version (version) VALUES (1)`,
		},
	},
	{
		version: 2,
		up: []string{
			// One row per merged group; the snapshots alone can rebuild
			// pre-merge state.
			`CREATE TABLE merge_batches (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				batch_id TEXT NOT NULL,
				group_key TEXT NOT NULL,
				primary_id INTEGER NOT NULL,
				duplicate_ids TEXT NOT NULL,
				anime_snapshot TEXT NOT NULL,
				reference_snapshot TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(batch_id, group_key)
			)`,
			`CREATE INDEX idx_merge_batches_batch ON merge_batches(batch_id)`,

			// Identities handed out when a restore had to re-insert a
			// deleted record.
			`CREATE TABLE merge_restorations (
				batch_id TEXT NOT NULL,
				old_id INTEGER NOT NULL,
				new_id INTEGER NOT NULL,
				restored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY(batch_id, old_id)
			)`,

			`INSERT INTO schema_version (version) VALUES (2)`,
		},
	},
}

type migration struct {
	version int
	up      []string
}

// applyMigrations applies any pending schema migrations
func applyMigrations(db *sql.DB) error {
	// Check current version
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		// schema_version doesn't exist yet - this is a fresh database
		currentVersion = 0
	}

	// Apply migrations in order
	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		for _, stmt := range m.up {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return err
			}
		}

		// Each migration inserts its own schema_version row.
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (m *AnimeDB) SchemaVersion() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var v int
	err := m.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&v)
	return v, err
}
