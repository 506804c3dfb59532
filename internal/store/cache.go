// Package store provides the local SQLite cache backing warm-start
// display. The notification snapshot is written through on every store
// mutation and read back once at startup, before any network completes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bookswap/bookswap/internal/model"
)

// notificationsKey is the fixed key the serialized notification array
// lives under.
const notificationsKey = "notifications"

// accountKey stores the last signed-in account email, used to decide
// whether a cached snapshot belongs to the current identity.
const accountKey = "account"

// Cache is a SQLite-backed key-value cache for session-scoped client
// state.
type Cache struct {
	db *sqlx.DB
}

// NewCache opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewCache(dbPath string) (*Cache, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &Cache{db: db}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (c *Cache) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := c.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = c.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := c.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// set writes a value under key, replacing any previous value.
func (c *Cache) set(key, value string) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing cache key %q: %w", key, err)
	}
	return nil
}

// get reads the value under key. Missing keys return ok=false.
func (c *Cache) get(key string) (string, bool, error) {
	var value string
	err := c.db.Get(&value, "SELECT value FROM kv WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading cache key %q: %w", key, err)
	}
	return value, true, nil
}

// SaveSnapshot persists the capped notification array. It satisfies
// notify.Persister.
func (c *Cache) SaveSnapshot(records []model.Notification) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling notification snapshot: %w", err)
	}
	return c.set(notificationsKey, string(data))
}

// LoadSnapshot reads the persisted notification array. A missing or
// unreadable snapshot yields an empty slice; warm start is best-effort.
func (c *Cache) LoadSnapshot() ([]model.Notification, error) {
	value, ok, err := c.get(notificationsKey)
	if err != nil || !ok {
		return nil, err
	}

	var records []model.Notification
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("unmarshaling notification snapshot: %w", err)
	}
	return records, nil
}

// SetAccount records which account the cached state belongs to.
func (c *Cache) SetAccount(email string) error {
	return c.set(accountKey, email)
}

// Account returns the cached account email, empty if none.
func (c *Cache) Account() (string, error) {
	value, _, err := c.get(accountKey)
	return value, err
}

// Reset drops all cached state. Called at logout so a subsequently
// signed-in identity never sees the previous session's notifications.
func (c *Cache) Reset(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM kv"); err != nil {
		return fmt.Errorf("resetting cache: %w", err)
	}
	return nil
}
