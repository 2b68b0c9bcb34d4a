package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/docrepo/internal/ir"
)

// Iterator is a cursor over query results. It holds the store's only
// connection until closed, so callers must Close it on every path.
type Iterator struct {
	ctx       context.Context
	rows      *sql.Rows
	selects   []string
	leftProps []string

	cur    Document
	err    error
	closed bool

	total int64
	aggs  []ir.AggregationResult
}

// Exec runs the query. Total count and aggregations are computed first;
// the returned iterator then streams the rows.
func (q *Query) Exec(ctx context.Context) (*Iterator, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := q.ensureNamespaces(ctx); err != nil {
		return nil, err
	}

	it := &Iterator{ctx: ctx, selects: q.selects, total: -1}
	if q.reqTotal {
		text, args, err := q.countSQL()
		if err != nil {
			return nil, err
		}
		if err := q.s.db.QueryRowContext(ctx, text, args...).Scan(&it.total); err != nil {
			return nil, fmt.Errorf("count %s: %w", q.ns, err)
		}
	}

	aggs, err := q.aggregations(ctx)
	if err != nil {
		return nil, err
	}
	it.aggs = aggs

	if q.limit == 0 {
		it.closed = true
		return it, nil
	}

	text, args, err := q.SQL()
	if err != nil {
		return nil, err
	}
	slog.Debug("store query", "namespace", q.ns, "sql", text, "args", len(args))
	rows, err := q.s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.ns, err)
	}
	it.rows = rows
	for _, j := range q.joins {
		if j.typ == ir.JoinLeft {
			it.leftProps = append(it.leftProps, j.property)
		}
	}
	return it, nil
}

// Delete removes every matching document and returns how many were removed.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if err := q.ensureNamespaces(ctx); err != nil {
		return 0, err
	}
	text, args, err := q.deleteSQL()
	if err != nil {
		return 0, err
	}
	slog.Debug("store delete", "namespace", q.ns, "sql", text)
	res, err := q.s.db.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", q.ns, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", q.ns, err)
	}
	return n, nil
}

func (q *Query) ensureNamespaces(ctx context.Context) error {
	if q.err != nil {
		return q.err
	}
	if err := q.s.EnsureNamespace(ctx, q.ns); err != nil {
		return err
	}
	for _, j := range q.joins {
		if err := q.s.EnsureNamespace(ctx, j.sub.ns); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) aggregations(ctx context.Context) ([]ir.AggregationResult, error) {
	var out []ir.AggregationResult
	for _, f := range q.distinct {
		groups, err := q.groups(ctx, []string{f}, false)
		if err != nil {
			return nil, err
		}
		values := make([]string, len(groups))
		for i, g := range groups {
			values[i] = g.Values[0]
		}
		out = append(out, ir.AggregationResult{Type: ir.AggregationDistinct, Fields: []string{f}, Distincts: values})
	}
	for _, fields := range q.facets {
		groups, err := q.groups(ctx, fields, true)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.AggregationResult{Type: ir.AggregationFacet, Fields: fields, Facets: groups})
	}
	return out, nil
}

func (q *Query) groups(ctx context.Context, fields []string, withCount bool) ([]ir.FacetGroup, error) {
	text, args, err := q.aggregateSQL(fields, withCount)
	if err != nil {
		return nil, err
	}
	rows, err := q.s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", q.ns, err)
	}
	defer rows.Close()

	groups := []ir.FacetGroup{}
	n := len(fields)
	if withCount {
		n++
	}
	for rows.Next() {
		cols := make([]any, n)
		ptrs := make([]any, n)
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		g := ir.FacetGroup{Values: make([]string, len(fields))}
		for i := range fields {
			g.Values[i] = formatValue(cols[i])
		}
		if withCount {
			count, _ := cols[len(fields)].(int64)
			g.Count = int(count)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate: %w", err)
	}
	return groups, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Next advances to the next document. It returns false at the end, on
// error and on context cancellation; the iterator is then closed.
func (it *Iterator) Next() bool {
	if it.closed || it.rows == nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		it.Close()
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		it.Close()
		return false
	}

	var id, raw string
	joined := make([]sql.NullString, len(it.leftProps))
	dest := []any{&id, &raw}
	for i := range joined {
		dest = append(dest, &joined[i])
	}
	if err := it.rows.Scan(dest...); err != nil {
		it.err = fmt.Errorf("scan document: %w", err)
		it.Close()
		return false
	}

	doc := Document{ID: id, Raw: json.RawMessage(raw)}
	if len(it.selects) > 0 {
		projected, err := project(doc.Raw, it.selects)
		if err != nil {
			it.err = err
			it.Close()
			return false
		}
		doc.Raw = projected
	}
	if len(it.leftProps) > 0 {
		doc.Joined = make(map[string][]json.RawMessage, len(it.leftProps))
		for i, prop := range it.leftProps {
			docs, err := splitJoined(joined[i])
			if err != nil {
				it.err = err
				it.Close()
				return false
			}
			doc.Joined[prop] = docs
		}
	}
	it.cur = doc
	return true
}

// Document returns the current document.
func (it *Iterator) Document() Document { return it.cur }

// Joined returns the left-joined documents of the current document.
func (it *Iterator) Joined() map[string][]json.RawMessage { return it.cur.Joined }

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// TotalCount returns the number of matching documents, or -1 when the
// query did not request it.
func (it *Iterator) TotalCount() int64 { return it.total }

// Aggregations returns the requested aggregation results.
func (it *Iterator) Aggregations() []ir.AggregationResult { return it.aggs }

// Close releases the rows. It is safe to call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.rows == nil {
		return nil
	}
	return it.rows.Close()
}
