package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Upsert inserts or replaces a document and returns its id.
//
// The id is read from doc["id"]; a document without one gets a fresh id
// from the store's IDGenerator, written back into doc. Replacing a
// document keeps its original insertion position.
func (s *Store) Upsert(ctx context.Context, ns string, doc map[string]any) (string, error) {
	if err := s.EnsureNamespace(ctx, ns); err != nil {
		return "", err
	}

	id, _ := doc["id"].(string)
	if id == "" {
		if raw, ok := doc["id"]; ok && raw != nil {
			return "", fmt.Errorf("upsert %s: id must be a string, got %T", ns, raw)
		}
		var err error
		if id, err = s.ids.NewID(); err != nil {
			return "", fmt.Errorf("upsert %s: generate id: %w", ns, err)
		}
		doc["id"] = id
	}

	text, err := marshalDoc(doc)
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", ns, err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, ns), id, text)
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", ns, err)
	}

	slog.Debug("document upserted", "namespace", ns, "id", id)
	return id, nil
}

// DeleteByID removes one document. It reports whether a document existed.
func (s *Store) DeleteByID(ctx context.Context, ns, id string) (bool, error) {
	if err := s.EnsureNamespace(ctx, ns); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, ns), id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", ns, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", ns, id, err)
	}
	return n > 0, nil
}
