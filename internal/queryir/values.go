package queryir

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/docrepo/internal/ir"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ResolveValues produces the store values of c from the caller's
// arguments. Literal clauses ignore args.
//
// Mapping failures from m are returned unchanged.
func ResolveValues(c Clause, m ValueMapper, args []any) ([]any, error) {
	if len(c.Literals) > 0 {
		return c.Literals, nil
	}
	out := make([]any, 0, len(c.Args))
	for _, a := range c.Args {
		if a.Index >= len(args) {
			return nil, fmt.Errorf("missing argument %d (%s) for %s", a.Index+1, a.Name, c.Field)
		}
		raw := args[a.Index]
		if c.Expand {
			vs, err := m.MapValues(c.Field, raw)
			if err != nil {
				return nil, err
			}
			for _, v := range vs {
				v, err = decorate(c, v)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			continue
		}
		v, err := m.MapValue(c.Field, raw)
		if err != nil {
			return nil, err
		}
		if v, err = decorate(c, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ResolveSort maps the forced values of s through m so they compare equal
// to stored values, e.g. an enum name against an ordinal index.
func ResolveSort(s ir.SortSpec, m ValueMapper) ([]any, error) {
	out := make([]any, len(s.Values))
	for i, v := range s.Values {
		mapped, err := m.MapValue(s.Field, v)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

func decorate(c Clause, v any) (any, error) {
	if c.Fold {
		if s, ok := v.(string); ok {
			v = cases.Fold().String(s)
		}
	}
	if c.Wildcard == WildcardNone {
		return v, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, newCompileError(ErrCodeTypeMismatch, c.Field, "pattern argument must be a string, got %T", v)
	}
	s = likeEscaper.Replace(s)
	switch c.Wildcard {
	case WildcardPrefix:
		return s + "%", nil
	case WildcardSuffix:
		return "%" + s, nil
	default:
		return "%" + s + "%", nil
	}
}
