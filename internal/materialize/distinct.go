package materialize

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/docrepo/internal/ir"
)

// hasDistinct reports whether aggs carry a facet and at least one distinct
// result, the combination a distinct projection produces.
func hasDistinct(aggs []ir.AggregationResult) bool {
	var facet, distinct bool
	for _, a := range aggs {
		switch a.Type {
		case ir.AggregationFacet:
			facet = true
		case ir.AggregationDistinct:
			distinct = true
		}
	}
	return facet && distinct
}

// DistinctRows rebuilds one record per facet group such that no field value
// appears in two records.
//
// Every distinct field starts with its distinct values as candidates. For
// each facet group the fields are visited in facet order; a value still
// among the candidates is accepted and removed. When the first field's
// value is already used the whole group is dropped. A later used value only
// leaves that field out: the group still contributes a fresh leading value,
// so it yields a partial record such as {color: blue} rather than nothing.
func DistinctRows(entity *ir.EntityMeta, aggs []ir.AggregationResult) []map[string]any {
	candidates := map[string]map[string]bool{}
	var facet *ir.AggregationResult
	for i := range aggs {
		a := &aggs[i]
		switch a.Type {
		case ir.AggregationDistinct:
			set := make(map[string]bool, len(a.Distincts))
			for _, v := range a.Distincts {
				set[v] = true
			}
			candidates[a.Fields[0]] = set
		case ir.AggregationFacet:
			if facet == nil {
				facet = a
			}
		}
	}
	if facet == nil {
		return nil
	}

	rows := []map[string]any{}
	for _, g := range facet.Facets {
		row := map[string]any{}
		for i, field := range facet.Fields {
			if i >= len(g.Values) {
				break
			}
			v := g.Values[i]
			set, ok := candidates[field]
			if !ok {
				row[field] = typedValue(entity, field, v)
				continue
			}
			if !set[v] {
				if i == 0 {
					row = nil
					break
				}
				continue
			}
			delete(set, v)
			row[field] = typedValue(entity, field, v)
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

// Distinct decodes the distinct records of aggs into T.
func Distinct[T any](entity *ir.EntityMeta, aggs []ir.AggregationResult) ([]T, error) {
	rows := DistinctRows(entity, aggs)
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode distinct row: %w", err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode distinct row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
