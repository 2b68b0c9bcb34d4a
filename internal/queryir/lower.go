package queryir

import "github.com/roach88/docrepo/internal/ir"

// Lower converts every part of the plan's tree into a clause, grouped the
// same way as the tree. Arguments are numbered in part order across groups.
//
// Lower is a pure function; it fails with a CompileError on the first part
// that cannot be mapped.
func Lower(p *Plan) ([][]Clause, error) {
	if p.Entity == nil {
		return nil, newCompileError(ErrCodeMissingMetadata, p.Method.Entity, "no metadata for entity")
	}
	groups := make([][]Clause, 0, len(p.Method.Tree.Groups))
	next := 0
	for _, g := range p.Method.Tree.Groups {
		chain := make([]Clause, 0, len(g))
		for _, part := range g {
			c, err := lowerPart(p, part, next)
			if err != nil {
				return nil, err
			}
			next += part.Operator.Arity()
			chain = append(chain, c)
		}
		groups = append(groups, chain)
	}
	return groups, nil
}

func lowerPart(p *Plan, part ir.Part, next int) (Clause, error) {
	field, ok := p.Entity.Field(part.Path)
	if !ok {
		return Clause{}, newCompileError(ErrCodeMissingMetadata, part.Path,
			"entity %s declares no property %q", p.Entity.Name, part.Path)
	}
	op := part.Operator
	if !op.Valid() {
		return Clause{}, newCompileError(ErrCodeUnsupportedPredicate, part.Path, "unknown operator %q", op)
	}

	c := Clause{Field: part.Path, Negated: part.Negated}
	for i := 0; i < op.Arity(); i++ {
		c.Args = append(c.Args, Arg{Index: next + i, Name: p.ParamName(next + i)})
	}

	switch {
	case op == ir.OpEqual || op == ir.OpNotEqual:
		c.Cond = ir.CondEq
		if field.Collection {
			// equality against a collection property is element membership
			c.Cond = ir.CondSet
			c.Expand = true
		}
		c.Negated = c.Negated != (op == ir.OpNotEqual)

	case op.IsOrdering():
		if field.Collection || field.Type == ir.FieldBool {
			return Clause{}, newCompileError(ErrCodeUnsupportedPredicate, part.Path,
				"%s is not defined for %s properties", op, describe(field))
		}
		c.Cond = orderingCondition[op]

	case op == ir.OpIn || op == ir.OpNotIn:
		c.Cond = ir.CondSet
		c.Expand = true
		c.Negated = c.Negated != (op == ir.OpNotIn)

	case op == ir.OpIsNull:
		c.Cond = ir.CondEmpty

	case op == ir.OpIsNotNull:
		c.Cond = ir.CondAny

	case op == ir.OpTrue || op == ir.OpFalse:
		if field.Type != ir.FieldBool || field.Collection {
			return Clause{}, newCompileError(ErrCodeTypeMismatch, part.Path,
				"%s requires a bool property, got %s", op, describe(field))
		}
		c.Cond = ir.CondEq
		c.Literals = []any{op == ir.OpTrue}

	case op.IsLikeFamily():
		negatedOp := op == ir.OpNotContains || op == ir.OpNotLike
		c.Negated = c.Negated != negatedOp
		if field.Collection {
			c.Cond = ir.CondSet
			c.Expand = true
			break
		}
		if field.Type != ir.FieldString {
			return Clause{}, newCompileError(ErrCodeTypeMismatch, part.Path,
				"%s requires a string property, got %s", op, describe(field))
		}
		c.Cond = ir.CondLike
		c.Wildcard = likeWildcard[op]

	default:
		return Clause{}, newCompileError(ErrCodeUnsupportedPredicate, part.Path, "no mapping for %s", op)
	}

	switch part.IgnoreCase {
	case ir.IgnoreCaseAlways:
		if field.Type != ir.FieldString {
			return Clause{}, newCompileError(ErrCodeTypeMismatch, part.Path,
				"ignore case requires a string property, got %s", describe(field))
		}
		c.Fold = len(c.Literals) == 0 && c.Cond != ir.CondEmpty && c.Cond != ir.CondAny
	case ir.IgnoreCaseWhenPossible:
		c.Fold = field.Type == ir.FieldString && c.Cond != ir.CondEmpty && c.Cond != ir.CondAny
	case "", ir.IgnoreCaseNever:
	default:
		return Clause{}, newCompileError(ErrCodeUnsupportedPredicate, part.Path, "unknown ignore case mode %q", part.IgnoreCase)
	}
	return c, nil
}

var orderingCondition = map[ir.OperatorKind]ir.Condition{
	ir.OpGreaterThan:    ir.CondGt,
	ir.OpGreaterOrEqual: ir.CondGe,
	ir.OpLessThan:       ir.CondLt,
	ir.OpLessOrEqual:    ir.CondLe,
	ir.OpBetween:        ir.CondRange,
}

var likeWildcard = map[ir.OperatorKind]Wildcard{
	ir.OpStartsWith:  WildcardPrefix,
	ir.OpEndsWith:    WildcardSuffix,
	ir.OpContains:    WildcardBoth,
	ir.OpNotContains: WildcardBoth,
	ir.OpLike:        WildcardNone,
	ir.OpNotLike:     WildcardNone,
}

func describe(f ir.FieldMeta) string {
	if f.Collection {
		return "[]" + string(f.Type)
	}
	return string(f.Type)
}
