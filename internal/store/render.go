package store

import (
	"fmt"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
)

// sqlWriter accumulates SQL text and its positional arguments in step, so
// arguments always follow the order of their placeholders.
type sqlWriter struct {
	b    strings.Builder
	args []any
}

func (w *sqlWriter) str(s string)              { w.b.WriteString(s) }
func (w *sqlWriter) f(format string, a ...any) { fmt.Fprintf(&w.b, format, a...) }

func (w *sqlWriter) arg(v any) {
	w.b.WriteByte('?')
	w.args = append(w.args, v)
}

func (w *sqlWriter) list(values []any) {
	w.b.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			w.str(", ")
		}
		w.arg(v)
	}
	w.b.WriteByte(')')
}

func path(field string) string { return "'$." + field + "'" }

func extract(alias, field string) string {
	return fmt.Sprintf("json_extract(%s.doc, %s)", alias, path(field))
}

var comparison = map[ir.Condition]string{
	ir.CondEq: "=",
	ir.CondGt: ">",
	ir.CondGe: ">=",
	ir.CondLt: "<",
	ir.CondLe: "<=",
}

// where renders the WHERE stream against alias. An empty stream renders
// nothing.
func (q *Query) where(w *sqlWriter, alias string) error {
	if q.depth != 0 {
		return fmt.Errorf("query %s: %d unclosed brackets", q.ns, q.depth)
	}
	if q.nextNot || q.nextOr || q.nextFld {
		return fmt.Errorf("query %s: dangling modifier at end of conditions", q.ns)
	}
	started := []bool{false}
	for _, e := range q.entries {
		top := len(started) - 1
		if e.kind == entryClose {
			if !started[top] {
				w.str("1")
			}
			started = started[:top]
			w.str(")")
			continue
		}
		if started[top] {
			if e.or {
				w.str(" OR ")
			} else {
				w.str(" AND ")
			}
		} else if e.or {
			return fmt.Errorf("query %s: OR without a preceding condition", q.ns)
		}
		started[top] = true
		if e.not {
			w.str("NOT ")
		}
		if e.kind == entryOpen {
			w.str("(")
			started = append(started, false)
			continue
		}
		writeCond(w, alias, e)
	}
	return nil
}

func writeCond(w *sqlWriter, alias string, e entry) {
	expr := extract(alias, e.field)
	if e.fold {
		expr = "docrepo_fold(" + expr + ")"
	}
	switch e.cond {
	case ir.CondRange:
		w.str(expr + " BETWEEN ")
		w.arg(e.values[0])
		w.str(" AND ")
		w.arg(e.values[1])
	case ir.CondLike:
		w.str("docrepo_like(")
		w.arg(e.values[0])
		w.str(", " + expr + ")")
	case ir.CondSet:
		if len(e.values) == 0 {
			w.str("0")
			return
		}
		value := "value"
		if e.fold {
			value = "docrepo_fold(value)"
		}
		w.f("EXISTS (SELECT 1 FROM json_each(%s.doc, %s) WHERE %s IN ", alias, path(e.field), value)
		w.list(e.values)
		w.str(")")
	case ir.CondEmpty:
		w.str(emptyExpr(alias, e.field))
	case ir.CondAny:
		w.str("NOT " + emptyExpr(alias, e.field))
	default:
		w.str(expr + " " + comparison[e.cond] + " ")
		w.arg(e.values[0])
	}
}

// emptyExpr matches missing properties, JSON null and empty arrays.
func emptyExpr(alias, field string) string {
	t := fmt.Sprintf("json_type(%s.doc, %s)", alias, path(field))
	return fmt.Sprintf("(%s IS NULL OR %s = 'null' OR (%s = 'array' AND json_array_length(%s.doc, %s) = 0))",
		t, t, t, alias, path(field))
}

// singleGroup reports whether the whole stream is one bracket group.
func (q *Query) singleGroup() bool {
	if len(q.entries) < 2 || q.entries[0].kind != entryOpen || q.entries[0].not {
		return false
	}
	depth := 0
	for i, e := range q.entries {
		switch e.kind {
		case entryOpen:
			depth++
		case entryClose:
			depth--
			if depth == 0 && i != len(q.entries)-1 {
				return false
			}
		}
	}
	return true
}

// joinAlias names a joined namespace after its property, so aliases do
// not depend on the order joins were added in.
func joinAlias(property string) string {
	return "j_" + strings.ReplaceAll(property, ".", "_")
}

func (j *Join) on(w *sqlWriter, outer, inner string) {
	if j.cond == ir.CondSet {
		w.f("%s IN (SELECT value FROM json_each(%s.doc, %s))", extract(inner, j.remote), outer, path(j.local))
		return
	}
	w.f("%s = %s", extract(inner, j.remote), extract(outer, j.local))
}

// joinFilter renders the body shared by join columns and EXISTS filters:
// FROM <ns> AS <alias> WHERE <on> [AND (<sub conditions>)].
func (j *Join) joinFilter(w *sqlWriter, outer, alias string) error {
	w.f(" FROM %s AS %s WHERE ", j.sub.ns, alias)
	j.on(w, outer, alias)
	if len(j.sub.entries) == 0 {
		return nil
	}
	w.str(" AND (")
	if err := j.sub.where(w, alias); err != nil {
		return err
	}
	w.str(")")
	return nil
}

// filter renders the complete WHERE expression of q: its conditions ANDed
// with every inner join. Reports whether anything was written.
func (q *Query) filter(w *sqlWriter, alias string) (bool, error) {
	var inner []*Join
	for _, j := range q.joins {
		if j.typ == ir.JoinInner {
			inner = append(inner, j)
		}
	}
	if len(q.entries) == 0 && len(inner) == 0 {
		return false, nil
	}
	w.str(" WHERE ")
	wrap := len(q.entries) > 0 && len(inner) > 0 && !q.singleGroup()
	if wrap {
		w.str("(")
	}
	if err := q.where(w, alias); err != nil {
		return false, err
	}
	if wrap {
		w.str(")")
	}
	for n, j := range inner {
		if n > 0 || len(q.entries) > 0 {
			w.str(" AND ")
		}
		w.str("EXISTS (SELECT 1")
		if err := j.joinFilter(w, alias, joinAlias(j.property)); err != nil {
			return false, err
		}
		w.str(")")
	}
	return true, nil
}

func writeSorts(w *sqlWriter, alias string, sorts []sortKey) {
	for i, s := range sorts {
		if i > 0 {
			w.str(", ")
		}
		dir := "ASC"
		if s.desc {
			dir = "DESC"
		}
		if len(s.forced) == 0 {
			w.f("%s %s", extract(alias, s.field), dir)
			continue
		}
		w.f("CASE %s", extract(alias, s.field))
		for n, v := range s.forced {
			w.str(" WHEN ")
			w.arg(v)
			w.f(" THEN %d", n)
		}
		w.f(" ELSE %d END %s", len(s.forced), dir)
	}
}

// SQL renders the row query of q.
func (q *Query) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	w := &sqlWriter{}
	w.str("SELECT t0.id, t0.doc")
	for _, j := range q.joins {
		if j.typ != ir.JoinLeft {
			continue
		}
		alias := joinAlias(j.property)
		w.f(", (SELECT json_group_array(json(%s.doc) ORDER BY ", alias)
		if len(j.sub.sorts) > 0 {
			writeSorts(w, alias, j.sub.sorts)
			w.str(", ")
		}
		w.f("%s.rowid ASC)", alias)
		if err := j.joinFilter(w, "t0", alias); err != nil {
			return "", nil, err
		}
		w.str(")")
	}
	w.f(" FROM %s AS t0", q.ns)
	if _, err := q.filter(w, "t0"); err != nil {
		return "", nil, err
	}
	w.str(" ORDER BY ")
	if len(q.sorts) > 0 {
		writeSorts(w, "t0", q.sorts)
		w.str(", ")
	}
	w.str("t0.rowid ASC")
	q.writeLimit(w)
	return w.b.String(), w.args, nil
}

func (q *Query) writeLimit(w *sqlWriter) {
	switch {
	case q.limit >= 0:
		w.str(" LIMIT ")
		w.arg(q.limit)
	case q.offset > 0:
		w.str(" LIMIT -1")
	}
	if q.offset > 0 {
		w.str(" OFFSET ")
		w.arg(q.offset)
	}
}

func (q *Query) countSQL() (string, []any, error) {
	w := &sqlWriter{}
	w.f("SELECT COUNT(*) FROM %s AS t0", q.ns)
	if _, err := q.filter(w, "t0"); err != nil {
		return "", nil, err
	}
	return w.b.String(), w.args, nil
}

// aggregateSQL groups the matching documents by fields. Array values
// contribute one group member per element.
func (q *Query) aggregateSQL(fields []string, withCount bool) (string, []any, error) {
	w := &sqlWriter{}
	w.str("SELECT ")
	for i := range fields {
		if i > 0 {
			w.str(", ")
		}
		e := fmt.Sprintf("e%d", i+1)
		w.f("CASE %s.type WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' ELSE %s.value END", e, e)
	}
	if withCount {
		w.str(", COUNT(*)")
	}
	w.f(" FROM %s AS t0", q.ns)
	for i, f := range fields {
		w.f(", json_each(t0.doc, %s) AS e%d", path(f), i+1)
	}
	ok, err := q.filter(w, "t0")
	if err != nil {
		return "", nil, err
	}
	for i := range fields {
		if ok || i > 0 {
			w.str(" AND ")
		} else {
			w.str(" WHERE ")
		}
		w.f("e%d.type NOT IN ('null', 'object', 'array')", i+1)
	}
	w.str(" GROUP BY ")
	for i := range fields {
		if i > 0 {
			w.str(", ")
		}
		w.f("%d", i+1)
	}
	// Groups come in order of first occurrence: document, then element.
	w.str(" ORDER BY MIN(printf('%012d")
	for range fields {
		w.str(".%08d")
	}
	w.str("', t0.rowid")
	for i := range fields {
		w.f(", e%d.id", i+1)
	}
	w.str(")) ASC")
	return w.b.String(), w.args, nil
}

// deleteSQL removes every document the query matches, honoring sort,
// limit and offset.
func (q *Query) deleteSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	w := &sqlWriter{}
	w.f("DELETE FROM %s WHERE id IN (SELECT t0.id FROM %s AS t0", q.ns, q.ns)
	if _, err := q.filter(w, "t0"); err != nil {
		return "", nil, err
	}
	if len(q.sorts) > 0 || q.limit >= 0 || q.offset > 0 {
		w.str(" ORDER BY ")
		if len(q.sorts) > 0 {
			writeSorts(w, "t0", q.sorts)
			w.str(", ")
		}
		w.str("t0.rowid ASC")
		q.writeLimit(w)
	}
	w.str(")")
	return w.b.String(), w.args, nil
}
