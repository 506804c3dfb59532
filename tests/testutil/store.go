package testutil

import (
	"path/filepath"
	"testing"

	"github.com/bookswap/bookswap/internal/store"
)

// NewTestCache creates a Cache backed by a throwaway database file with
// all migrations applied. It automatically closes the cache when the
// test completes.
func NewTestCache(t *testing.T) *store.Cache {
	t.Helper()

	c, err := store.NewCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("creating test cache: %v", err)
	}

	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("closing test cache: %v", err)
		}
	})

	return c
}
