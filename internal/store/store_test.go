package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.EnsureNamespace(ctx, "items"))
	_, err = s.Upsert(ctx, "items", map[string]any{"id": "a", "name": "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	doc, ok, err := s.Get(ctx, "items", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"a","name":"kept"}`, string(doc.Raw))
}

func TestOpen_RejectsUnknownJournalMode(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), WithJournalMode("WAL; DROP TABLE x"))
	assert.Error(t, err)
}

func TestEnsureNamespace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNamespace(ctx, "owners"))
	require.NoError(t, s.EnsureNamespace(ctx, "items"))
	require.NoError(t, s.EnsureNamespace(ctx, "items"))
	assert.Error(t, s.EnsureNamespace(ctx, "items; DROP TABLE owners"))

	names, err := s.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "owners"}, names)
}

func TestUpsert_AssignsIDAndReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := map[string]any{"name": "Lamp"}
	id, err := s.Upsert(ctx, "items", doc)
	require.NoError(t, err)
	assert.Equal(t, "doc-0001", id)
	assert.Equal(t, "doc-0001", doc["id"])

	_, err = s.Upsert(ctx, "items", map[string]any{"id": "other", "name": "Chair"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "items", map[string]any{"id": id, "name": "Lamp <b>"})
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, "items", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":"doc-0001","name":"Lamp <b>"}`, string(got.Raw))

	assert.Equal(t, []string{id, "other"}, ids(t, s.Query("items")), "replacing keeps insertion position")

	n, err := s.Count(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsert_RejectsNonStringID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Upsert(context.Background(), "items", map[string]any{"id": 7})
	assert.Error(t, err)
}

func TestGetAndDeleteByID(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "items", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := s.DeleteByID(ctx, "items", "i2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteByID(ctx, "items", "i2")
	require.NoError(t, err)
	assert.False(t, removed)
}
