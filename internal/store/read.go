package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Get returns the document with id. Absence is (Document{}, false, nil).
func (s *Store) Get(ctx context.Context, ns, id string) (Document, bool, error) {
	if err := s.EnsureNamespace(ctx, ns); err != nil {
		return Document{}, false, err
	}
	var doc Document
	var raw string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = ?`, ns), id).
		Scan(&doc.ID, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("get %s/%s: %w", ns, id, err)
	}
	doc.Raw = json.RawMessage(raw)
	return doc, true, nil
}

// Count returns the number of documents in a namespace.
func (s *Store) Count(ctx context.Context, ns string) (int64, error) {
	if err := s.EnsureNamespace(ctx, ns); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ns)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", ns, err)
	}
	return n, nil
}
