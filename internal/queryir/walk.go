package queryir

import "github.com/roach88/docrepo/internal/ir"

type nodeKind uint8

const (
	nodeRoot nodeKind = iota
	nodeGroup
	nodeLeaf
)

// node is one arena entry. Links are indexes into the arena; -1 means none.
type node struct {
	kind    nodeKind
	parent  int
	first   int
	next    int
	or      bool // alternative to the previous sibling
	bracket bool // emitted inside OpenBracket/CloseBracket
	clause  Clause
}

// arena holds the predicate tree as index-linked nodes. Node 0 is the root.
type arena struct {
	nodes []node
}

func newArena() *arena {
	return &arena{nodes: []node{{kind: nodeRoot, parent: -1, first: -1, next: -1}}}
}

// add appends a node under parent and returns its index.
func (a *arena) add(parent int, n node) int {
	n.parent, n.first, n.next = parent, -1, -1
	idx := len(a.nodes)
	a.nodes = append(a.nodes, n)

	child := a.nodes[parent].first
	if child < 0 {
		a.nodes[parent].first = idx
		return idx
	}
	for a.nodes[child].next >= 0 {
		child = a.nodes[child].next
	}
	a.nodes[child].next = idx
	return idx
}

// buildArena lays out the lowered groups. The first group is inline; every
// later group is an OR alternative inside brackets.
func buildArena(groups [][]Clause) *arena {
	a := newArena()
	later := false
	for _, chain := range groups {
		if len(chain) == 0 {
			continue
		}
		g := a.add(0, node{kind: nodeGroup, or: later, bracket: later})
		later = true
		for _, c := range chain {
			a.add(g, node{kind: nodeLeaf, clause: c})
		}
	}
	return a
}

// depth returns the bracket nesting depth of node idx.
func (a *arena) depth(idx int) int {
	d := 0
	for n := idx; n >= 0; n = a.nodes[n].parent {
		if a.nodes[n].bracket {
			d++
		}
	}
	return d
}

// frame is a pending node on the walk stack. closing frames emit the
// CloseBracket of a group whose children are done.
type frame struct {
	idx     int
	closing bool
}

// walk emits the predicate events of the arena in document order.
func (a *arena) walk(e Emitter) error {
	var stack []frame
	pushChildren := func(parent int) {
		var kids []int
		for c := a.nodes[parent].first; c >= 0; c = a.nodes[c].next {
			kids = append(kids, c)
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{idx: kids[i]})
		}
	}
	pushChildren(0)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := a.nodes[f.idx]

		if f.closing {
			e.CloseBracket()
			continue
		}
		if n.or {
			e.Or()
		}
		switch n.kind {
		case nodeLeaf:
			if err := e.Where(n.clause); err != nil {
				return err
			}
		case nodeGroup:
			if n.bracket {
				e.OpenBracket()
				stack = append(stack, frame{idx: f.idx, closing: true})
			}
			pushChildren(f.idx)
		}
	}
	return nil
}

// Compile walks the plan and drives e.
//
// Compile validates and lowers the whole plan before the first event, so
// every CompileError is raised with e untouched.
func Compile(p *Plan, e Emitter) error {
	if err := Validate(p); err != nil {
		return err
	}
	groups, err := Lower(p)
	if err != nil {
		return err
	}

	tree := p.Method.Tree
	if tree.Subject == ir.SubjectDelete {
		e.Delete()
	}

	if err := buildArena(groups).walk(e); err != nil {
		return err
	}

	switch {
	case tree.Subject == ir.SubjectExists:
		e.Select(p.Entity.IDField)
	case tree.Distinct:
		fields := DistinctFields(p)
		for _, f := range fields {
			e.AggregateDistinct(f)
		}
		e.AggregateFacet(fields...)
	case p.Method.Returns.Projection == ir.ProjectConstructor && len(p.Method.Returns.Fields) > 0:
		e.Select(p.Method.Returns.Fields...)
	}

	if tree.Subject != ir.SubjectDelete {
		for _, s := range tree.Sort {
			if err := e.Sort(s); err != nil {
				return err
			}
		}
	}

	switch tree.Subject {
	case ir.SubjectCount:
		e.ReqTotal()
		e.Limit(0)
	case ir.SubjectExists:
		e.Limit(1)
	case ir.SubjectDelete:
		// delete statements remove every match
	default:
		if p.Method.Returns.Wrapper == ir.WrapPage {
			e.ReqTotal()
		}
		limit, offset := ResolveLimit(tree.MaxResults, p.Page, p.Method.Returns.Wrapper == ir.WrapSlice)
		if limit > 0 {
			e.Limit(limit)
		}
		if offset > 0 {
			e.Offset(offset)
		}
	}

	for _, j := range p.Joins {
		if j.Skip {
			continue
		}
		if err := e.Join(j); err != nil {
			return err
		}
	}
	return nil
}

// DistinctFields returns the fields a distinct projection aggregates:
// the declared return fields, else every entity field except the id.
func DistinctFields(p *Plan) []string {
	if len(p.Method.Returns.Fields) > 0 {
		return p.Method.Returns.Fields
	}
	var fields []string
	for _, f := range p.Entity.Fields {
		if f.Name != p.Entity.IDField {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// BracketDepths returns the bracket nesting depth of every leaf of the
// lowered tree, in walk order.
func BracketDepths(p *Plan) ([]int, error) {
	groups, err := Lower(p)
	if err != nil {
		return nil, err
	}
	a := buildArena(groups)
	var depths []int
	for i, n := range a.nodes {
		if n.kind == nodeLeaf {
			depths = append(depths, a.depth(i))
		}
	}
	return depths, nil
}
