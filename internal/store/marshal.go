package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is one stored document.
type Document struct {
	ID  string
	Raw json.RawMessage

	// Joined holds the documents attached by left joins, keyed by the
	// declaring property. Nil when the query has no left joins.
	Joined map[string][]json.RawMessage
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Map decodes the document into a generic map.
func (d Document) Map() (map[string]any, error) {
	var m map[string]any
	if err := d.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// marshalDoc converts a document to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what callers wrote.
func marshalDoc(doc map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// project keeps only fields of raw. Nested paths keep their root property.
func project(raw json.RawMessage, fields []string) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("project document: %w", err)
	}
	out := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		root, _, _ := strings.Cut(f, ".")
		if v, ok := m[root]; ok {
			out[root] = v
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("project document: %w", err)
	}
	return data, nil
}

// splitJoined decodes a json_group_array column into its documents.
func splitJoined(col sql.NullString) ([]json.RawMessage, error) {
	if !col.Valid || col.String == "" {
		return []json.RawMessage{}, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal([]byte(col.String), &docs); err != nil {
		return nil, fmt.Errorf("decode joined documents: %w", err)
	}
	return docs, nil
}
