package materialize

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/store"
)

// Projector converts one stored document into a result value.
type Projector[T any] func(doc store.Document) (T, error)

// JSONProjector decodes documents into T.
//
// Left-joined documents are merged into the document under their property:
// a singular reference becomes an object (null when nothing matched), a
// collection reference a list. Interface projections keep only the shape's
// fields.
func JSONProjector[T any](shape ir.ReturnShape, joins []ir.JoinSpec) Projector[T] {
	collection := make(map[string]bool, len(joins))
	for _, j := range joins {
		collection[j.Property] = j.Condition == ir.CondSet
	}
	var keep map[string]bool
	if shape.Projection == ir.ProjectInterface && len(shape.Fields) > 0 {
		keep = make(map[string]bool, len(shape.Fields))
		for _, f := range shape.Fields {
			keep[f] = true
		}
	}

	return func(doc store.Document) (T, error) {
		var out T
		if len(doc.Joined) == 0 && keep == nil {
			return out, doc.Decode(&out)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(doc.Raw, &m); err != nil {
			return out, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		for prop, docs := range doc.Joined {
			v, err := joinedValue(docs, collection[prop])
			if err != nil {
				return out, err
			}
			m[prop] = v
		}
		if keep != nil {
			for k := range m {
				if !keep[k] {
					delete(m, k)
				}
			}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return out, fmt.Errorf("project document %s: %w", doc.ID, err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("project document %s: %w", doc.ID, err)
		}
		return out, nil
	}
}

func joinedValue(docs []json.RawMessage, collection bool) (json.RawMessage, error) {
	if collection {
		return json.Marshal(docs)
	}
	if len(docs) == 0 {
		return json.RawMessage("null"), nil
	}
	return docs[0], nil
}

// typedValue converts an aggregation value back to the JSON type of field.
func typedValue(entity *ir.EntityMeta, field, v string) any {
	if entity == nil {
		return v
	}
	f, ok := entity.Field(field)
	if !ok {
		return v
	}
	switch f.Type {
	case ir.FieldInt:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case ir.FieldFloat:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	case ir.FieldBool:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return v
}
