// Package sqlite implements the repository interfaces on SQLite.
//
// One database file holds both tables:
//   - browser_storage: per-browser "local storage" items (session JSON, cached token)
//   - users:           development identity provider accounts
//
// WHY SQLITE?
// Both tables are small and only one process writes them: the web client
// for browser storage, the dev provider for accounts. An embedded file
// needs no server next to the app, and ":memory:" gives every test a
// fresh database.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite. mattn/go-sqlite3 would need cgo
// and a C toolchain for every cross-compiled habitctl build.
//
// DATABASE/SQL OVERVIEW:
// database/sql is the driver-agnostic layer; this package only talks to it.
//   - sql.DB   is a connection pool, safe for concurrent use
//   - sql.Row  is one result; Scan reports sql.ErrNoRows when it is empty
//   - sql.Rows is a cursor and must be closed
//
// Repository methods use the *Context variants so a cancelled request
// stops waiting on the database.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/habits.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database, lost on close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets page reads proceed while a session write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS browser_storage (
			sid        TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (sid, key)
		);
		CREATE INDEX IF NOT EXISTS idx_browser_storage_updated_at ON browser_storage(updated_at);
	`)
	if err != nil {
		return fmt.Errorf("creating browser_storage table: %w", err)
	}

	// email is UNIQUE: one account per address, like the hosted provider.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
