package compiler

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/join"
	"github.com/roach88/docrepo/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownEntity   = "E101" // method names an undeclared entity
	ErrParamArity      = "E102" // declared params do not match the operators
	ErrDuplicateParam  = "E103" // two params share a name
	ErrBadReference    = "E104" // reference cannot be joined
	ErrSortValue       = "E105" // forced sort value is not an enum constant
	ErrRejectedPlan    = "E106" // the query compiler rejects the method
	ErrDuplicateName   = "E107" // two entities share a namespace
	ErrDuplicateMethod = "E108" // two methods share a name
)

// ValidationError is one descriptor that loads but cannot be compiled.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Plan builds the compile plan of m, synthesizing the joins of its entity
// for m's subject.
func (c *Catalog) Plan(m ir.MethodSpec, page *ir.PageRequest) (*queryir.Plan, error) {
	meta, ok := c.Entities[m.Entity]
	if !ok {
		return nil, &queryir.CompileError{
			Code:    queryir.ErrCodeMissingMetadata,
			Path:    m.Entity,
			Message: fmt.Sprintf("method %s names unknown entity", m.Name),
		}
	}
	joins, err := join.Synthesize(meta, c.Entities, m.Tree.Subject)
	if err != nil {
		return nil, err
	}
	return queryir.NewPlan(meta, m, page, joins), nil
}

// Check validates every entity and method of the catalog against each
// other. It returns all errors found (does not fail-fast), entities first.
func Check(c *Catalog) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	namespaces := make(map[string]string)
	for _, name := range c.EntityNames() {
		meta := c.Entities[name]
		if other, dup := namespaces[meta.Namespace]; dup {
			add(ErrDuplicateName, "entity."+name, "namespace %q already used by %s", meta.Namespace, other)
		}
		namespaces[meta.Namespace] = name
		if _, err := join.Synthesize(meta, c.Entities, ir.SubjectFind); err != nil {
			add(ErrBadReference, "entity."+name, "%s", message(err))
		}
	}

	seen := make(map[string]bool)
	for _, m := range c.Methods {
		field := "method." + m.Name
		if seen[m.Name] {
			add(ErrDuplicateMethod, field, "declared twice")
		}
		seen[m.Name] = true

		meta, ok := c.Entities[m.Entity]
		if !ok {
			add(ErrUnknownEntity, field, "unknown entity %q", m.Entity)
			continue
		}
		if n := m.Tree.ParamCount(); len(m.Params) > 0 && len(m.Params) != n {
			add(ErrParamArity, field+".params", "%d params declared, operators consume %d", len(m.Params), n)
		}
		for i, p := range m.Params {
			if slices.Contains(m.Params[:i], p) {
				add(ErrDuplicateParam, field+".params", "param %q declared twice", p)
			}
		}
		for _, s := range m.Tree.Sort {
			f, ok := meta.Field(s.Field)
			if !ok || !f.Enum || len(f.Values) == 0 {
				continue
			}
			for _, v := range s.Values {
				if !slices.Contains(f.Values, v) {
					add(ErrSortValue, field+".sort", "%q is not a value of %s", v, s.Field)
				}
			}
		}

		plan, err := c.Plan(m, nil)
		if err == nil {
			err = queryir.Validate(plan)
		}
		if err == nil {
			_, err = queryir.Lower(plan)
		}
		if err != nil {
			add(ErrRejectedPlan, field, "%s", message(err))
		}
	}
	return errs
}

// Warnings lists legal but suspicious descriptors: plan findings of every
// method plus cycles of eagerly joined references.
func Warnings(c *Catalog) []string {
	var out []string
	for _, m := range c.Methods {
		plan, err := c.Plan(m, nil)
		if err != nil {
			continue
		}
		for _, w := range queryir.Analyze(plan).Warnings {
			out = append(out, fmt.Sprintf("method.%s: %s", m.Name, w))
		}
	}
	for _, w := range AnalyzeCycles(c.Entities) {
		out = append(out, w.Message)
	}
	return out
}

func message(err error) string {
	var ce *queryir.CompileError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
