package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/repository"
)

// compile-time check that *DB implements repository.BrowserStorage
var _ repository.BrowserStorage = (*DB)(nil)

// GetItem returns the value stored under key for browser sid.
func (db *DB) GetItem(ctx context.Context, sid, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM browser_storage WHERE sid = ? AND key = ?`,
		sid, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("storage item", key)
		}
		return "", fmt.Errorf("sqlite: getting item %q for %s: %w", key, sid, err)
	}
	return value, nil
}

// SetItem inserts or overwrites key for browser sid.
func (db *DB) SetItem(ctx context.Context, sid, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO browser_storage (sid, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(sid, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sid, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting item %q for %s: %w", key, sid, err)
	}
	return nil
}

// RemoveItem deletes key for browser sid. Missing items are ignored.
func (db *DB) RemoveItem(ctx context.Context, sid, key string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM browser_storage WHERE sid = ? AND key = ?`,
		sid, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing item %q for %s: %w", key, sid, err)
	}
	return nil
}

// PurgeBefore drops every item not written since cutoff and returns how
// many rows went. Browsers that stay away that long start over anonymous.
func (db *DB) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM browser_storage WHERE updated_at < ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging storage: %w", err)
	}
	return res.RowsAffected()
}
