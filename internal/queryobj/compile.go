// Package queryobj is the object backend: it compiles a plan straight into
// a store query builder, ready to execute.
package queryobj

import (
	"fmt"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/store"
)

// Compiled is an executable store query.
type Compiled struct {
	Query *store.Query

	// Delete is set for delete subjects: run Query.Delete instead of Exec.
	Delete bool
}

// Compile builds the store query of p with args bound through m.
//
// Compile is a pure function of its inputs; it does not touch the database.
func Compile(s *store.Store, p *queryir.Plan, m queryir.ValueMapper, args []any) (*Compiled, error) {
	if p == nil || p.Entity == nil {
		return nil, fmt.Errorf("cannot compile nil plan")
	}
	e := &emitter{s: s, q: s.Query(p.Entity.Namespace), mapper: m, args: args}
	if err := queryir.Compile(p, e); err != nil {
		return nil, err
	}
	return &Compiled{Query: e.q, Delete: e.delete}, nil
}

// emitter applies compile events to a store query.
type emitter struct {
	s      *store.Store
	q      *store.Query
	mapper queryir.ValueMapper
	args   []any
	delete bool
}

var _ queryir.Emitter = (*emitter)(nil)

func (e *emitter) Delete() { e.delete = true }

func (e *emitter) Where(c queryir.Clause) error {
	values, err := queryir.ResolveValues(c, e.mapper, e.args)
	if err != nil {
		return err
	}
	if c.Negated {
		e.q.Not()
	}
	if c.Fold {
		e.q.Fold()
	}
	e.q.Where(c.Field, c.Cond, values...)
	return nil
}

func (e *emitter) Or()           { e.q.Or() }
func (e *emitter) OpenBracket()  { e.q.OpenBracket() }
func (e *emitter) CloseBracket() { e.q.CloseBracket() }

func (e *emitter) Select(fields ...string)         { e.q.Select(fields...) }
func (e *emitter) AggregateDistinct(field string)  { e.q.AggregateDistinct(field) }
func (e *emitter) AggregateFacet(fields ...string) { e.q.AggregateFacet(fields...) }

func (e *emitter) Sort(s ir.SortSpec) error {
	forced, err := queryir.ResolveSort(s, e.mapper)
	if err != nil {
		return err
	}
	e.q.Sort(s.Field, s.Desc, forced...)
	return nil
}

func (e *emitter) Limit(n int)  { e.q.Limit(n) }
func (e *emitter) Offset(n int) { e.q.Offset(n) }
func (e *emitter) ReqTotal()    { e.q.ReqTotal() }

func (e *emitter) Join(j ir.JoinSpec) error {
	sub := e.s.Query(j.TargetNamespace)
	for _, s := range j.Sort {
		sub.Sort(s.Field, s.Desc)
	}
	var pending *store.Join
	switch j.Type {
	case ir.JoinLeft:
		pending = e.q.LeftJoin(sub, j.Property)
	case ir.JoinInner:
		pending = e.q.InnerJoin(sub, j.Property)
	default:
		return fmt.Errorf("join %s: unknown join type %q", j.Property, j.Type)
	}
	pending.On(j.LocalField, j.Condition, j.RemoteField)
	return nil
}
