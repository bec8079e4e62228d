// Package database is the SQLite store for anime records, the collections
// that reference them and the merge snapshots that make merges reversible.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("database: not found")

// dsnPragmas enables WAL, waits on locks and enforces foreign keys on every
// pooled connection.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// AnimeDB is the main database handle.
type AnimeDB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenPath opens or creates the database at a specific path
func OpenPath(path string) (*AnimeDB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adb := &AnimeDB{
		db:   db,
		path: path,
	}

	// Apply migrations
	if err := adb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adb, nil
}

// OpenInMemory opens an in-memory database for testing
func OpenInMemory() (*AnimeDB, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping in-memory database: %w", err)
	}

	adb := &AnimeDB{
		db:   db,
		path: ":memory:",
	}

	if err := adb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate in-memory database: %w", err)
	}

	return adb, nil
}

// Close closes the database connection
func (m *AnimeDB) Close() error {
	return m.db.Close()
}

// Path returns the filesystem path to the database file
func (m *AnimeDB) Path() string {
	return m.path
}

// migrate applies any pending schema migrations
func (m *AnimeDB) migrate() error {
	return applyMigrations(m.db)
}

// DB returns the underlying sql.DB for advanced operations
func (m *AnimeDB) DB() *sql.DB {
	return m.db
}

// Tx is a write transaction. It is only valid inside the function passed to
// WithTx.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Writers are serialized.
func (m *AnimeDB) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
