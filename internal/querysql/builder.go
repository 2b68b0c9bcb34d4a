package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
)

// StatementType is the verb of a statement.
type StatementType string

const (
	TypeSelect StatementType = "SELECT"
	TypeDelete StatementType = "DELETE"
)

// Operation connects a condition or bracket to the previous one.
type Operation string

const (
	OpAnd Operation = "AND"
	OpOr  Operation = "OR"
)

// item is one element of a WHERE group: a leaf condition or a nested group.
type item struct {
	op      Operation
	negated bool

	// leaf
	field  string
	cond   ir.Condition
	values []string

	// nested group
	group *group
}

type group struct {
	items []item
}

type aggregate struct {
	typ    ir.AggregationType
	fields []string
}

// sortKey is one ORDER BY key. forced holds value tokens for FIELD().
type sortKey struct {
	field  string
	desc   bool
	forced []string
}

type joinClause struct {
	sub      *Builder
	typ      ir.JoinType
	property string
	local    string
	cond     ir.Condition
	remote   string
}

// Builder accumulates one statement and renders it as text.
//
// Values are passed as tokens: Param(name) for a bound placeholder,
// Literal(v) for an inline constant. Fold(field) compares a field
// case-insensitively.
type Builder struct {
	typ       StatementType
	namespace string
	fields    []string
	aggs      []aggregate
	total     bool
	root      group
	stack     []*group
	sorts     []sortKey
	limit     int
	offset    int
	joins     []joinClause

	unbalanced bool
}

// NewBuilder starts a SELECT against namespace.
func NewBuilder(namespace string) *Builder {
	b := &Builder{typ: TypeSelect, namespace: namespace, limit: -1}
	b.stack = []*group{&b.root}
	return b
}

// Type sets the statement verb.
func (b *Builder) Type(t StatementType) *Builder {
	b.typ = t
	return b
}

// Select adds a returned field.
func (b *Builder) Select(field string) *Builder {
	b.fields = append(b.fields, field)
	return b
}

// Aggregate registers an aggregation function over fields.
func (b *Builder) Aggregate(t ir.AggregationType, fields ...string) *Builder {
	b.aggs = append(b.aggs, aggregate{typ: t, fields: fields})
	return b
}

// Total requests the total row count alongside the rows.
func (b *Builder) Total() *Builder {
	b.total = true
	return b
}

func (b *Builder) current() *group { return b.stack[len(b.stack)-1] }

// Where adds a condition to the innermost open group.
func (b *Builder) Where(op Operation, field string, cond ir.Condition, negated bool, values ...string) *Builder {
	g := b.current()
	g.items = append(g.items, item{op: op, negated: negated, field: field, cond: cond, values: values})
	return b
}

// OpenBracket starts a nested group connected with op.
func (b *Builder) OpenBracket(op Operation, negated bool) *Builder {
	g := &group{}
	cur := b.current()
	cur.items = append(cur.items, item{op: op, negated: negated, group: g})
	b.stack = append(b.stack, g)
	return b
}

// CloseBracket ends the innermost group. Extra closes are ignored and
// reported by Render.
func (b *Builder) CloseBracket() *Builder {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	} else {
		b.unbalanced = true
	}
	return b
}

// Sort appends an ordering key. Forced values are rendered inline.
func (b *Builder) Sort(s ir.SortSpec) *Builder {
	forced := make([]string, len(s.Values))
	for i, v := range s.Values {
		forced[i] = Literal(v)
	}
	return b.SortBy(s.Field, s.Desc, forced...)
}

// SortBy appends an ordering key whose forced values are tokens, so they
// may be placeholders.
func (b *Builder) SortBy(field string, desc bool, forced ...string) *Builder {
	b.sorts = append(b.sorts, sortKey{field: field, desc: desc, forced: forced})
	return b
}

// Limit caps returned rows. A negative n removes the cap.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Join adds a join of sub under property on local (=|IN) remote.
func (b *Builder) Join(sub *Builder, typ ir.JoinType, property, local string, cond ir.Condition, remote string) *Builder {
	b.joins = append(b.joins, joinClause{sub: sub, typ: typ, property: property, local: local, cond: cond, remote: remote})
	return b
}

// Param returns the token of placeholder name.
func Param(name string) string { return ":" + name }

// Fold returns field compared case-insensitively.
func Fold(field string) string { return "FOLD(" + field + ")" }

// Literal renders v as an inline constant.
func Literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return Literal(fmt.Sprint(x))
	}
}

// Render returns the statement text.
func (b *Builder) Render() (string, error) {
	body, err := b.renderBody()
	if err != nil {
		return "", err
	}
	if b.typ == TypeDelete {
		return body, nil
	}
	return body + limitClause(b.limit, b.offset), nil
}

// renderBody renders everything except LIMIT and OFFSET.
func (b *Builder) renderBody() (string, error) {
	if len(b.stack) != 1 || b.unbalanced {
		return "", fmt.Errorf("statement on %s: unbalanced brackets", b.namespace)
	}
	var sb strings.Builder
	if b.typ == TypeDelete {
		sb.WriteString("DELETE FROM " + b.namespace)
	} else {
		sb.WriteString("SELECT " + b.selectList() + " FROM " + b.namespace)
		for _, j := range b.joins {
			if j.typ != ir.JoinLeft {
				continue
			}
			target, err := j.target()
			if err != nil {
				return "", err
			}
			sb.WriteString(" LEFT JOIN " + target + " AS " + j.property + " ON " + b.on(j))
		}
	}

	where, err := b.where()
	if err != nil {
		return "", err
	}
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	if b.typ != TypeDelete && len(b.sorts) > 0 {
		sb.WriteString(" ORDER BY " + orderBy(b.sorts))
	}
	return sb.String(), nil
}

func (b *Builder) selectList() string {
	var items []string
	switch {
	case len(b.aggs) > 0:
		for _, a := range b.aggs {
			fn := "DISTINCT"
			if a.typ == ir.AggregationFacet {
				fn = "FACET"
			}
			items = append(items, fn+"("+strings.Join(a.fields, ", ")+")")
		}
	case len(b.fields) > 0:
		items = append(items, b.fields...)
	default:
		items = append(items, "*")
	}
	if b.total {
		items = append(items, "COUNT(*)")
	}
	return strings.Join(items, ", ")
}

func (b *Builder) on(j joinClause) string {
	op := "="
	if j.cond == ir.CondSet {
		op = "IN"
	}
	return b.namespace + "." + j.local + " " + op + " " + j.property + "." + j.remote
}

// target renders the joined namespace, as a sub-select when the joined
// builder filters or sorts.
func (j joinClause) target() (string, error) {
	if len(j.sub.root.items) == 0 && len(j.sub.sorts) == 0 {
		return j.sub.namespace, nil
	}
	if len(j.sub.joins) > 0 {
		return "", fmt.Errorf("join %s: nested joins are not supported", j.property)
	}
	body, err := j.sub.renderBody()
	if err != nil {
		return "", err
	}
	return "(" + body + ")", nil
}

// where renders the predicate groups followed by the INNER joins, which
// filter rows like any other AND-ed predicate.
func (b *Builder) where() (string, error) {
	var inner []string
	for _, j := range b.joins {
		if j.typ != ir.JoinInner {
			continue
		}
		target, err := j.target()
		if err != nil {
			return "", err
		}
		inner = append(inner, "INNER JOIN "+target+" AS "+j.property+" ON "+b.on(j))
	}

	expr := renderGroup(&b.root)
	if expr != "" && len(inner) > 0 && !b.root.single() {
		expr = "(" + expr + ")"
	}
	parts := inner
	if expr != "" {
		parts = append([]string{expr}, inner...)
	}
	return strings.Join(parts, " AND "), nil
}

// single reports whether g is exactly one non-negated nested group.
func (g *group) single() bool {
	return len(g.items) == 1 && g.items[0].group != nil && !g.items[0].negated
}

func renderGroup(g *group) string {
	var sb strings.Builder
	for i, it := range g.items {
		if i > 0 {
			sb.WriteString(" " + string(it.op) + " ")
		}
		if it.negated {
			sb.WriteString("NOT ")
		}
		if it.group != nil {
			sb.WriteString("(" + renderGroup(it.group) + ")")
			continue
		}
		sb.WriteString(renderLeaf(it))
	}
	return sb.String()
}

var comparisonOps = map[ir.Condition]string{
	ir.CondEq: "=",
	ir.CondGt: ">",
	ir.CondGe: ">=",
	ir.CondLt: "<",
	ir.CondLe: "<=",
}

func renderLeaf(it item) string {
	switch it.cond {
	case ir.CondEmpty:
		return it.field + " IS NULL"
	case ir.CondAny:
		return it.field + " IS NOT NULL"
	case ir.CondRange:
		return it.field + " RANGE(" + strings.Join(it.values, ", ") + ")"
	case ir.CondLike:
		return it.field + " LIKE " + first(it.values)
	case ir.CondSet:
		if len(it.values) == 1 {
			return it.field + " IN " + it.values[0]
		}
		return it.field + " IN (" + strings.Join(it.values, ", ") + ")"
	default:
		return it.field + " " + comparisonOps[it.cond] + " " + first(it.values)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return "NULL"
	}
	return values[0]
}

func orderBy(sorts []sortKey) string {
	keys := make([]string, len(sorts))
	for i, s := range sorts {
		dir := "ASC"
		if s.desc {
			dir = "DESC"
		}
		if len(s.forced) == 0 {
			keys[i] = s.field + " " + dir
			continue
		}
		keys[i] = "FIELD(" + s.field + ", " + strings.Join(s.forced, ", ") + ") " + dir
	}
	return strings.Join(keys, ", ")
}

func limitClause(limit, offset int) string {
	var sb strings.Builder
	if limit >= 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(offset))
	}
	return sb.String()
}
