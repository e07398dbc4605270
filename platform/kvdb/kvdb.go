// Package kvdb opens the embedded bbolt database used when DATABASE_URL
// selects the kvdb:// backend.
package kvdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Open creates the parent directory if needed and opens the bolt file at path.
func Open(path string) (*bolt.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create kvdb directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open kvdb %s: %w", path, err)
	}
	return db, nil
}

// Checker reports whether the bolt file is still readable.
type Checker struct {
	db *bolt.DB
}

// NewChecker wraps db for readiness probes.
func NewChecker(db *bolt.DB) *Checker {
	return &Checker{db: db}
}

// Ping opens and closes a read transaction.
func (c *Checker) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.View(func(*bolt.Tx) error { return nil })
}
