// Package querysql is the text backend: it compiles a plan into statement
// text in the store's grammar plus the names of its placeholders, for ahead
// of time code generation. Values are bound at run time with Bind.
package querysql

import (
	"fmt"
	"strconv"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/queryir"
)

// Statement is a compiled method.
type Statement struct {
	Kind      StatementType
	Namespace string

	// Text is the complete statement for the plan's page.
	Text string

	// Base is Text without LIMIT and OFFSET; Paginate appends them.
	Base string

	// Params names the caller's arguments in positional order.
	Params []string

	// Clauses drive Bind; they carry the value decoration of each
	// placeholder.
	Clauses []queryir.Clause

	// Forced are the forced sort values, bound through the mapper of
	// their property.
	Forced []ForcedValue

	Cap      int
	Slice    bool
	Pageable bool
}

// ForcedValue is one constant of a FIELD() sort key, bound as Name.
type ForcedValue struct {
	Name  string
	Field string
	Value string
}

// Compile renders p. It needs no values: placeholders are named after the
// method's parameters.
func Compile(p *queryir.Plan) (*Statement, error) {
	if p == nil || p.Entity == nil {
		return nil, fmt.Errorf("cannot compile nil plan")
	}
	e := &emitter{b: NewBuilder(p.Entity.Namespace), next: OpAnd}
	if err := queryir.Compile(p, e); err != nil {
		return nil, err
	}

	text, err := e.b.Render()
	if err != nil {
		return nil, err
	}
	base, err := e.b.renderBody()
	if err != nil {
		return nil, err
	}

	tree := p.Method.Tree
	st := &Statement{
		Kind:      e.b.typ,
		Namespace: p.Entity.Namespace,
		Text:      text,
		Base:      base,
		Clauses:   e.clauses,
		Forced:    e.forced,
		Cap:       tree.MaxResults,
		Slice:     p.Method.Returns.Wrapper == ir.WrapSlice,
		Pageable:  tree.Subject == ir.SubjectFind || tree.Subject == "",
	}
	for i := 0; i < tree.ParamCount(); i++ {
		st.Params = append(st.Params, p.ParamName(i))
	}
	return st, nil
}

// Paginate returns the statement text for page, composing the page with
// the fixed result cap the same way the object backend does.
func (s *Statement) Paginate(page *ir.PageRequest) string {
	if !s.Pageable || s.Kind == TypeDelete {
		return s.Text
	}
	limit, offset := queryir.ResolveLimit(s.Cap, page, s.Slice)
	if limit == 0 {
		limit = -1
	}
	return s.Base + limitClause(limit, offset)
}

// Bind resolves args into the named values the statement's placeholders
// expect. Expanded clauses bind a list.
func (s *Statement) Bind(m queryir.ValueMapper, args []any) (map[string]any, error) {
	if len(args) < len(s.Params) {
		return nil, fmt.Errorf("statement takes %d arguments, got %d", len(s.Params), len(args))
	}
	out := make(map[string]any, len(s.Params))
	for _, c := range s.Clauses {
		if len(c.Literals) > 0 {
			continue
		}
		values, err := queryir.ResolveValues(c, m, args)
		if err != nil {
			return nil, err
		}
		if c.Expand {
			out[c.Args[0].Name] = values
			continue
		}
		for i, a := range c.Args {
			out[a.Name] = values[i]
		}
	}
	for _, f := range s.Forced {
		v, err := m.MapValue(f.Field, f.Value)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// emitter accumulates compile events into a Builder.
type emitter struct {
	b       *Builder
	next    Operation
	clauses []queryir.Clause
	forced  []ForcedValue
}

var _ queryir.Emitter = (*emitter)(nil)

// op returns the connective of the next condition or bracket and resets
// it to AND.
func (e *emitter) op() Operation {
	op := e.next
	e.next = OpAnd
	return op
}

func (e *emitter) Delete() { e.b.Type(TypeDelete) }

func (e *emitter) Where(c queryir.Clause) error {
	var values []string
	if len(c.Literals) > 0 {
		for _, v := range c.Literals {
			values = append(values, Literal(v))
		}
	} else {
		for _, a := range c.Args {
			values = append(values, Param(a.Name))
		}
	}
	field := c.Field
	if c.Fold {
		field = Fold(field)
	}
	e.b.Where(e.op(), field, c.Cond, c.Negated, values...)
	e.clauses = append(e.clauses, c)
	return nil
}

func (e *emitter) Or()           { e.next = OpOr }
func (e *emitter) OpenBracket()  { e.b.OpenBracket(e.op(), false) }
func (e *emitter) CloseBracket() { e.b.CloseBracket() }

func (e *emitter) Select(fields ...string) {
	for _, f := range fields {
		e.b.Select(f)
	}
}

func (e *emitter) AggregateDistinct(field string) { e.b.Aggregate(ir.AggregationDistinct, field) }

func (e *emitter) AggregateFacet(fields ...string) { e.b.Aggregate(ir.AggregationFacet, fields...) }

// Sort binds forced values as _sortN placeholders; their store encoding
// is only known to the mapper.
func (e *emitter) Sort(s ir.SortSpec) error {
	tokens := make([]string, len(s.Values))
	for i, v := range s.Values {
		name := "_sort" + strconv.Itoa(len(e.forced)+1)
		e.forced = append(e.forced, ForcedValue{Name: name, Field: s.Field, Value: v})
		tokens[i] = Param(name)
	}
	e.b.SortBy(s.Field, s.Desc, tokens...)
	return nil
}

func (e *emitter) Limit(n int)  { e.b.Limit(n) }
func (e *emitter) Offset(n int) { e.b.Offset(n) }
func (e *emitter) ReqTotal()    { e.b.Total() }

func (e *emitter) Join(j ir.JoinSpec) error {
	switch j.Type {
	case ir.JoinLeft, ir.JoinInner:
	default:
		return fmt.Errorf("join %s: unknown join type %q", j.Property, j.Type)
	}
	sub := NewBuilder(j.TargetNamespace)
	for _, s := range j.Sort {
		sub.Sort(s)
	}
	e.b.Join(sub, j.Type, j.Property, j.LocalField, j.Condition, j.RemoteField)
	return nil
}
