package store

import (
	"fmt"
	"regexp"

	"github.com/roach88/docrepo/internal/ir"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

type entryKind uint8

const (
	entryCond entryKind = iota
	entryOpen
	entryClose
)

// entry is one token of the WHERE stream.
type entry struct {
	kind   entryKind
	or     bool
	not    bool
	fold   bool
	field  string
	cond   ir.Condition
	values []any
}

type sortKey struct {
	field  string
	desc   bool
	forced []any
}

// Query is a fluent query against one namespace.
//
// Builder methods never fail; the first error is kept and returned by
// Exec, Delete or SQL.
type Query struct {
	s  *Store
	ns string

	entries []entry
	depth   int
	nextOr  bool
	nextNot bool
	nextFld bool

	selects  []string
	sorts    []sortKey
	limit    int // -1 = unlimited
	offset   int
	reqTotal bool
	distinct []string
	facets   [][]string
	joins    []*Join
	err      error
}

// Join is a join under construction; On completes it.
type Join struct {
	parent   *Query
	typ      ir.JoinType
	sub      *Query
	property string
	local    string
	remote   string
	cond     ir.Condition
}

// Query starts a query against namespace ns.
func (s *Store) Query(ns string) *Query {
	q := &Query{s: s, ns: ns, limit: -1}
	if !namespacePattern.MatchString(ns) {
		q.fail("invalid namespace name %q", ns)
	}
	return q
}

// Namespace returns the queried namespace.
func (q *Query) Namespace() string { return q.ns }

func (q *Query) fail(format string, args ...any) {
	if q.err == nil {
		q.err = fmt.Errorf(format, args...)
	}
}

func (q *Query) checkField(field string) bool {
	if !fieldPattern.MatchString(field) {
		q.fail("invalid field %q", field)
		return false
	}
	return true
}

// Not negates the next condition or bracket.
func (q *Query) Not() *Query {
	q.nextNot = !q.nextNot
	return q
}

// Or joins the next condition or bracket to the previous one with OR.
func (q *Query) Or() *Query {
	q.nextOr = true
	return q
}

// Fold compares the next condition case-insensitively. Values must already
// be folded; the stored field is folded by the store.
func (q *Query) Fold() *Query {
	q.nextFld = true
	return q
}

// Where adds a condition on field.
func (q *Query) Where(field string, cond ir.Condition, values ...any) *Query {
	if !q.checkField(field) {
		return q
	}
	want := -1
	switch cond {
	case ir.CondEq, ir.CondGt, ir.CondGe, ir.CondLt, ir.CondLe, ir.CondLike:
		want = 1
	case ir.CondRange:
		want = 2
	case ir.CondEmpty, ir.CondAny:
		want = 0
	case ir.CondSet:
	default:
		q.fail("unknown condition %q on %s", cond, field)
		return q
	}
	if want >= 0 && len(values) != want {
		q.fail("%s on %s takes %d values, got %d", cond, field, want, len(values))
		return q
	}
	q.push(entry{kind: entryCond, field: field, cond: cond, values: values, fold: q.nextFld})
	return q
}

func (q *Query) push(e entry) {
	e.or = q.nextOr
	e.not = q.nextNot
	q.nextOr, q.nextNot, q.nextFld = false, false, false
	q.entries = append(q.entries, e)
}

// OpenBracket starts a parenthesized group.
func (q *Query) OpenBracket() *Query {
	q.push(entry{kind: entryOpen})
	q.depth++
	return q
}

// CloseBracket ends the innermost group.
func (q *Query) CloseBracket() *Query {
	if q.depth == 0 {
		q.fail("close bracket without open bracket")
		return q
	}
	if q.nextNot || q.nextOr {
		q.fail("dangling NOT or OR before close bracket")
	}
	q.depth--
	q.entries = append(q.entries, entry{kind: entryClose})
	return q
}

// Select restricts returned documents to fields.
func (q *Query) Select(fields ...string) *Query {
	for _, f := range fields {
		if q.checkField(f) {
			q.selects = append(q.selects, f)
		}
	}
	return q
}

// Sort appends an ordering key. Forced values, when given, come first in
// the listed order; the remaining documents follow.
func (q *Query) Sort(field string, desc bool, forced ...any) *Query {
	if q.checkField(field) {
		q.sorts = append(q.sorts, sortKey{field: field, desc: desc, forced: forced})
	}
	return q
}

// Limit caps returned rows. Zero returns no rows; aggregations and the
// total count are still computed.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		q.fail("negative limit %d", n)
		return q
	}
	q.limit = n
	return q
}

// Offset skips n rows.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		q.fail("negative offset %d", n)
		return q
	}
	q.offset = n
	return q
}

// ReqTotal requests the total number of matching documents, ignoring
// limit and offset.
func (q *Query) ReqTotal() *Query {
	q.reqTotal = true
	return q
}

// AggregateDistinct requests the distinct values of field.
func (q *Query) AggregateDistinct(field string) *Query {
	if q.checkField(field) {
		q.distinct = append(q.distinct, field)
	}
	return q
}

// AggregateFacet requests the value combinations of fields with counts.
func (q *Query) AggregateFacet(fields ...string) *Query {
	for _, f := range fields {
		if !q.checkField(f) {
			return q
		}
	}
	if len(fields) == 0 {
		q.fail("facet without fields")
		return q
	}
	q.facets = append(q.facets, fields)
	return q
}

// LeftJoin attaches the documents of sub matching On under property.
func (q *Query) LeftJoin(sub *Query, property string) *Join {
	return &Join{parent: q, typ: ir.JoinLeft, sub: sub, property: property}
}

// InnerJoin keeps only documents with a match in sub.
func (q *Query) InnerJoin(sub *Query, property string) *Join {
	return &Join{parent: q, typ: ir.JoinInner, sub: sub, property: property}
}

// On completes the join: local field of this namespace against remote
// field of the joined one. cond is EQ, or SET when local is an array.
func (j *Join) On(local string, cond ir.Condition, remote string) *Query {
	q := j.parent
	if !q.checkField(local) || !q.checkField(remote) || !q.checkField(j.property) {
		return q
	}
	if cond != ir.CondEq && cond != ir.CondSet {
		q.fail("join condition must be EQ or SET, got %s", cond)
		return q
	}
	if j.sub == nil {
		q.fail("join %s without sub-query", j.property)
		return q
	}
	if j.sub.err != nil {
		q.fail("join %s: %v", j.property, j.sub.err)
		return q
	}
	if len(j.sub.joins) > 0 {
		q.fail("join %s: nested joins are not supported", j.property)
		return q
	}
	j.local, j.cond, j.remote = local, cond, remote
	q.joins = append(q.joins, j)
	return q
}
