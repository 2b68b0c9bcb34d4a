package queryir

import (
	"strconv"

	"github.com/roach88/docrepo/internal/ir"
)

// Emitter receives the compiled query as a sequence of events.
//
// Events arrive in this order:
//
//	Delete?                                    (delete subject only)
//	Where / Or / OpenBracket / CloseBracket    (predicate tree)
//	Select | AggregateDistinct+ AggregateFacet (projection)
//	Sort*                                      (not for delete)
//	ReqTotal? Limit? Offset?
//	Join*                                      (non-skipped joins)
//
// The object backend applies each event to a store query builder; the text
// backend accumulates them into a statement builder and renders SQL.
type Emitter interface {
	// Delete marks the statement as a delete of the matched documents.
	Delete()

	// Where adds one condition, ANDed with the previous one unless Or was
	// called since.
	Where(c Clause) error

	// Or makes the next condition or bracket an alternative to the
	// previous one.
	Or()

	// OpenBracket starts a parenthesized group.
	OpenBracket()

	// CloseBracket ends the innermost open group.
	CloseBracket()

	// Select restricts the returned fields.
	Select(fields ...string)

	// AggregateDistinct requests the distinct values of one field.
	AggregateDistinct(field string)

	// AggregateFacet requests the value combinations of fields with counts.
	AggregateFacet(fields ...string)

	// Sort appends one ordering key. Forced values are constants of the
	// sorted property and are mapped like bound arguments.
	Sort(s ir.SortSpec) error

	// Limit caps the number of returned rows. Zero returns no rows.
	Limit(n int)

	// Offset skips rows before the first returned one.
	Offset(n int)

	// ReqTotal asks the store for the total number of matching rows.
	ReqTotal()

	// Join attaches (LEFT) or filters by (INNER) another namespace.
	Join(j ir.JoinSpec) error
}

// Wildcard is the decoration applied to a LIKE argument before binding.
type Wildcard string

const (
	WildcardNone   Wildcard = ""
	WildcardPrefix Wildcard = "prefix"   // value% (STARTS_WITH)
	WildcardSuffix Wildcard = "suffix"   // %value (ENDS_WITH)
	WildcardBoth   Wildcard = "contains" // %value% (CONTAINS, NOT_CONTAINS)
)

// Arg references one bound parameter.
type Arg struct {
	Index int    // position in the caller's argument list
	Name  string // placeholder name in rendered text
}

// Clause is one lowered predicate part.
//
// Semantics:
//
//	[NOT] <field> <cond> <values>
//
// Values come either from Literals (TRUE/FALSE parts) or from Args resolved
// through ResolveValues at bind time. Both backends resolve values the same
// way, so a clause binds identical store values regardless of backend.
type Clause struct {
	Field    string
	Cond     ir.Condition
	Negated  bool
	Args     []Arg
	Literals []any

	// Wildcard decorates the single string argument of a LIKE clause.
	Wildcard Wildcard

	// Fold compares case-insensitively: values are folded at bind time and
	// the stored field is folded by the store.
	Fold bool

	// Expand treats the single argument as a collection whose mapped
	// elements form the SET list.
	Expand bool
}

// ValueMapper converts raw bound values into store values.
// mapper.Mapper implements it.
type ValueMapper interface {
	MapValue(index string, v any) (any, error)
	MapValues(index string, v any) ([]any, error)
}

// Plan is everything Compile needs for one method invocation.
type Plan struct {
	Entity *ir.EntityMeta
	Method ir.MethodSpec

	// Page is the caller's page request (nil = unpaged).
	Page *ir.PageRequest

	// Joins are the synthesized joins of the entity. Skipped joins are
	// kept here and dropped by Compile.
	Joins []ir.JoinSpec
}

// NewPlan builds a plan for method against entity.
func NewPlan(entity *ir.EntityMeta, method ir.MethodSpec, page *ir.PageRequest, joins []ir.JoinSpec) *Plan {
	return &Plan{Entity: entity, Method: method, Page: page, Joins: joins}
}

// ParamName returns the placeholder name of argument i.
// Declared parameter names win; otherwise p1, p2, ...
func (p *Plan) ParamName(i int) string {
	if i < len(p.Method.Params) && p.Method.Params[i] != "" {
		return p.Method.Params[i]
	}
	return "p" + strconv.Itoa(i+1)
}
