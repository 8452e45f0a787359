package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/ordinal/internal/order"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedGroup appends the given IDs to group in order.
func seedGroup(t *testing.T, s *Store, groupID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := s.AppendItem(context.Background(), order.Item{ID: id, GroupID: groupID}); err != nil {
			t.Fatalf("AppendItem(%s) failed: %v", id, err)
		}
	}
}
