package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/docrepo/internal/ir"
)

// CompileMethod parses one method descriptor into a MethodSpec. The
// predicate tree is spelled out explicitly:
//
//	method: findByNameOrColor: {
//		entity: "Item"
//		where: [[{path: "name", op: "EQ"}], [{path: "color", op: "EQ"}]]
//	}
//
// Each inner list is an AND-chain; the outer list joins them with OR.
func CompileMethod(v cue.Value) (*ir.MethodSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &ir.MethodSpec{Name: label(v)}
	var err error
	if m.Entity, err = lookupString(v, "entity", true); err != nil {
		return nil, err
	}

	subject, err := lookupString(v, "subject", false)
	if err != nil {
		return nil, err
	}
	switch s := ir.Subject(strings.ToLower(subject)); s {
	case "":
		m.Tree.Subject = ir.SubjectFind
	case ir.SubjectFind, ir.SubjectCount, ir.SubjectExists, ir.SubjectDelete:
		m.Tree.Subject = s
	default:
		return nil, errorAt(v, "subject", "unknown subject %q", subject)
	}

	if m.Tree.Distinct, err = lookupBool(v, "distinct"); err != nil {
		return nil, err
	}
	if m.Tree.Groups, err = parseWhere(v); err != nil {
		return nil, err
	}
	if m.Tree.Sort, err = parseSort(v); err != nil {
		return nil, err
	}
	if m.Tree.MaxResults, err = lookupInt(v, "first"); err != nil {
		return nil, err
	}
	if m.Tree.MaxResults < 0 {
		return nil, errorAt(v, "first", "result cap must not be negative")
	}
	if m.Returns, err = parseReturns(v); err != nil {
		return nil, err
	}
	if m.Params, err = lookupStrings(v, "params"); err != nil {
		return nil, err
	}
	return m, nil
}

func parseWhere(v cue.Value) ([]ir.OrGroup, error) {
	wv := v.LookupPath(cue.ParsePath("where"))
	if !wv.Exists() {
		return nil, nil
	}
	groups, err := wv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.OrGroup
	for groups.Next() {
		parts, err := groups.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var g ir.OrGroup
		for parts.Next() {
			p, err := parsePart(parts.Value())
			if err != nil {
				return nil, err
			}
			g = append(g, p)
		}
		if len(g) == 0 {
			return nil, errorAt(groups.Value(), "where", "empty OR-group")
		}
		out = append(out, g)
	}
	return out, nil
}

func parsePart(v cue.Value) (ir.Part, error) {
	var p ir.Part
	var err error
	if p.Path, err = lookupString(v, "path", true); err != nil {
		return p, err
	}
	op, err := lookupString(v, "op", true)
	if err != nil {
		return p, err
	}
	p.Operator = ir.OperatorKind(strings.ToUpper(op))
	if !p.Operator.Valid() {
		return p, errorAt(v, "where.op", "unknown operator %q on %s", op, p.Path)
	}
	if p.Negated, err = lookupBool(v, "not"); err != nil {
		return p, err
	}
	ic, err := lookupString(v, "ignoreCase", false)
	if err != nil {
		return p, err
	}
	switch c := ir.IgnoreCase(strings.ToUpper(ic)); c {
	case "":
		p.IgnoreCase = ir.IgnoreCaseNever
	case ir.IgnoreCaseNever, ir.IgnoreCaseWhenPossible, ir.IgnoreCaseAlways:
		p.IgnoreCase = c
	default:
		return p, errorAt(v, "where.ignoreCase", "unknown ignoreCase %q", ic)
	}
	return p, nil
}

func parseSort(v cue.Value) ([]ir.SortSpec, error) {
	sv := v.LookupPath(cue.ParsePath("sort"))
	if !sv.Exists() {
		return nil, nil
	}
	it, err := sv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.SortSpec
	for it.Next() {
		e := it.Value()
		var s ir.SortSpec
		if s.Field, err = lookupString(e, "field", true); err != nil {
			return nil, err
		}
		if s.Desc, err = lookupBool(e, "desc"); err != nil {
			return nil, err
		}
		if s.Values, err = lookupStrings(e, "values"); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseReturns(v cue.Value) (ir.ReturnShape, error) {
	r := ir.ReturnShape{Wrapper: ir.WrapList, Projection: ir.ProjectEntity}
	rv := v.LookupPath(cue.ParsePath("returns"))
	if !rv.Exists() {
		return r, nil
	}
	shape, err := lookupString(rv, "shape", false)
	if err != nil {
		return r, err
	}
	if shape != "" {
		r.Wrapper = ir.Wrapper(strings.ToLower(shape))
		switch r.Wrapper {
		case ir.WrapOne, ir.WrapOptional, ir.WrapList, ir.WrapStream, ir.WrapPage, ir.WrapSlice, ir.WrapIterator:
		default:
			return r, errorAt(rv, "returns.shape", "unknown shape %q", shape)
		}
	}
	projection, err := lookupString(rv, "projection", false)
	if err != nil {
		return r, err
	}
	if projection != "" {
		r.Projection = ir.ProjectionKind(strings.ToLower(projection))
		switch r.Projection {
		case ir.ProjectEntity, ir.ProjectInterface, ir.ProjectConstructor:
		default:
			return r, errorAt(rv, "returns.projection", "unknown projection %q", projection)
		}
	}
	if r.Fields, err = lookupStrings(rv, "fields"); err != nil {
		return r, err
	}
	return r, nil
}
