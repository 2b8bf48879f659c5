// Package sqlite implements the storage port on top of an embedded SQLite
// database file.
//
// WHY SQLITE?
// SQLite lives inside the binary as a single file. No separate database server
// to run, and ":memory:" gives every test a fresh, isolated database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler is needed and cross-compilation keeps working.
//
// ONE TABLE, MANY KEYS:
// The repositories persist whole JSON documents under well-known keys
// (ticketapp_users, ticketapp_session, tickets). The table mirrors that:
//
//	kv_entries(storage_key TEXT PRIMARY KEY, storage_value TEXT, updated_at DATETIME)
//
// Each Set is a single-row upsert, which SQLite executes atomically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// BLANK IMPORT:
	// The sqlite package's init() registers a database/sql driver named
	// "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"

	"github.com/sakif/ticketflow/internal/storage"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying storage.Backend the build breaks here, not at the
// call site that wires it into the server.
var _ storage.Backend = (*DB)(nil)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/ticketflow.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests, lost on close)
//
// CONNECTION POOL SIZE:
// The pool is limited to one connection. SQLite serializes writers anyway,
// and with ":memory:" every new connection would otherwise open its own
// empty database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping forces a real connection so a bad path fails here, not on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer it right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the key-value table. CREATE TABLE IF NOT EXISTS makes it
// safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			storage_key   TEXT PRIMARY KEY,
			storage_value TEXT NOT NULL,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv_entries table: %w", err)
	}
	return nil
}

// Get reads one key.
//
// sql.ErrNoRows is NOT a failure here: an absent key simply reports
// ok=false, the same way a browser's storage returns null.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT storage_value FROM kv_entries WHERE storage_key = ?`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite: getting key %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts one key.
//
// ON CONFLICT ... DO UPDATE keeps the row (and its primary key) and only
// replaces the value, unlike INSERT OR REPLACE which deletes and re-inserts.
func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv_entries (storage_key, storage_value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET
		   storage_value = excluded.storage_value,
		   updated_at    = excluded.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting key %s: %w", key, err)
	}
	return nil
}

// Remove deletes one key. Zero rows affected is fine: the key is gone
// either way.
func (db *DB) Remove(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE storage_key = ?`,
		key,
	); err != nil {
		return fmt.Errorf("sqlite: removing key %s: %w", key, err)
	}
	return nil
}
