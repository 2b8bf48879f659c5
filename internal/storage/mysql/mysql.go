// Package mysql implements the storage port on a shared MySQL server, for
// deployments where several app instances must see the same accounts,
// tickets and session.
//
// Each instance serializes only its own writes. Two instances writing the
// same collection at the same moment is last-writer-wins on that document.
//
// The table layout matches the sqlite backend one-to-one, so switching
// drivers is a configuration change only.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sakif/ticketflow/internal/storage"
)

var _ storage.Backend = (*DB)(nil)

// DB wraps a sql.DB connection pool against MySQL.
type DB struct {
	conn *sql.DB
}

// New connects using a go-sql-driver DSN such as
//
//	user:pass@tcp(localhost:3306)/ticketflow
//
// A malformed DSN fails here, before any connection is attempted.
func New(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parsing dsn: %w", err)
	}

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: opening database: %w", err)
	}
	conn.SetConnMaxLifetime(3 * time.Minute)
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			storage_key   VARCHAR(191) NOT NULL PRIMARY KEY,
			storage_value LONGTEXT     NOT NULL,
			updated_at    DATETIME(3)  NOT NULL
		) CHARACTER SET utf8mb4
	`)
	if err != nil {
		return fmt.Errorf("creating kv_entries table: %w", err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT storage_value FROM kv_entries WHERE storage_key = ?",
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("mysql: getting key %s: %w", key, err)
	}
	return value, true, nil
}

func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv_entries (storage_key, storage_value, updated_at)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   storage_value = VALUES(storage_value),
		   updated_at    = VALUES(updated_at)`,
		key,
		value,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mysql: setting key %s: %w", key, err)
	}
	return nil
}

func (db *DB) Remove(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE storage_key = ?",
		key,
	); err != nil {
		return fmt.Errorf("mysql: removing key %s: %w", key, err)
	}
	return nil
}
