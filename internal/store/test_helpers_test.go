package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/testutil"
)

// createTestStore creates a new temp-dir store with predictable ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("doc")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seededStore returns a store holding the sample items and owners.
func seededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	ctx := context.Background()
	for _, doc := range testutil.SampleOwners() {
		_, err := s.Upsert(ctx, "owners", doc)
		require.NoError(t, err)
	}
	for _, doc := range testutil.SampleItems() {
		_, err := s.Upsert(ctx, "items", doc)
		require.NoError(t, err)
	}
	return s
}

// ids runs q and returns the ids of the returned documents in order.
func ids(t *testing.T, q *Query) []string {
	t.Helper()
	it, err := q.Exec(context.Background())
	require.NoError(t, err)
	defer it.Close()

	out := []string{}
	for it.Next() {
		out = append(out, it.Document().ID)
	}
	require.NoError(t, it.Err())
	return out
}
