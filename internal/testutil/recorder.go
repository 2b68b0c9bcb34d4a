package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/queryir"
)

// Recorder is a queryir.Emitter that records every event as a line of text.
//
// Two backends driven by the same plan must produce the same recording; tests
// compare recordings instead of backend internals.
type Recorder struct {
	Events []string

	// Depths holds the bracket depth of each Where event.
	Depths []int

	// Conds holds the condition of each Where event.
	Conds []ir.Condition

	depth int
}

var _ queryir.Emitter = (*Recorder)(nil)

func (r *Recorder) add(format string, args ...any) {
	r.Events = append(r.Events, fmt.Sprintf(format, args...))
}

func (r *Recorder) Delete() { r.add("delete") }

func (r *Recorder) Where(c queryir.Clause) error {
	var names []string
	for _, a := range c.Args {
		names = append(names, a.Name)
	}
	not := ""
	if c.Negated {
		not = "not "
	}
	r.add("where %s%s %s [%s] lit=%v wild=%s fold=%t expand=%t",
		not, c.Field, c.Cond, strings.Join(names, ","), c.Literals, c.Wildcard, c.Fold, c.Expand)
	r.Depths = append(r.Depths, r.depth)
	r.Conds = append(r.Conds, c.Cond)
	return nil
}

func (r *Recorder) Or() { r.add("or") }

func (r *Recorder) OpenBracket() {
	r.depth++
	r.add("(")
}

func (r *Recorder) CloseBracket() {
	r.depth--
	r.add(")")
}

func (r *Recorder) Select(fields ...string) { r.add("select %s", strings.Join(fields, ",")) }

func (r *Recorder) AggregateDistinct(field string) { r.add("distinct %s", field) }

func (r *Recorder) AggregateFacet(fields ...string) { r.add("facet %s", strings.Join(fields, ",")) }

func (r *Recorder) Sort(s ir.SortSpec) error {
	r.add("sort %s desc=%t values=%v", s.Field, s.Desc, s.Values)
	return nil
}

func (r *Recorder) Limit(n int) { r.add("limit %d", n) }

func (r *Recorder) Offset(n int) { r.add("offset %d", n) }

func (r *Recorder) ReqTotal() { r.add("total") }

func (r *Recorder) Join(j ir.JoinSpec) error {
	r.add("join %s %s %s.%s %s %s", j.Type, j.Property, j.TargetNamespace, j.RemoteField, j.Condition, j.LocalField)
	return nil
}
