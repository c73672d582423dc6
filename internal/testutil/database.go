// Package testutil provides test helpers shared across dosewatch packages.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/dosewatch/internal/storage"
)

// SetupTestStore creates a new in-memory, migrated blob store that is closed
// when the test finishes.
func SetupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// MustPut seeds key with value or fails the test.
func MustPut(t *testing.T, store *storage.SQLiteStorage, key string, value []byte) {
	t.Helper()
	if err := store.Put(context.Background(), key, value); err != nil {
		t.Fatalf("failed to seed %q: %v", key, err)
	}
}
