package queryir

import (
	"fmt"

	"github.com/roach88/docrepo/internal/ir"
)

// Validate checks that every name the plan mentions resolves against the
// entity metadata. Predicate paths are checked by Lower.
//
// Validate is a pure function with no side effects.
func Validate(p *Plan) error {
	if p.Entity == nil {
		return newCompileError(ErrCodeMissingMetadata, p.Method.Entity, "no metadata for entity")
	}
	e := p.Entity
	if e.Namespace == "" {
		return newCompileError(ErrCodeMissingMetadata, e.Name, "entity declares no namespace")
	}
	if _, ok := e.Field(e.IDField); !ok {
		return newCompileError(ErrCodeMissingMetadata, e.IDField, "identifier field of %s is not declared", e.Name)
	}
	for _, s := range p.Method.Tree.Sort {
		if _, ok := e.Field(s.Field); !ok {
			return newCompileError(ErrCodeMissingMetadata, s.Field, "cannot sort %s by undeclared property", e.Name)
		}
	}
	for _, f := range p.Method.Returns.Fields {
		if _, ok := e.Field(f); !ok {
			return newCompileError(ErrCodeMissingMetadata, f, "cannot project undeclared property of %s", e.Name)
		}
	}
	for _, j := range p.Joins {
		if _, ok := e.Reference(j.Property); !ok {
			return newCompileError(ErrCodeMissingMetadata, j.Property, "join on undeclared reference of %s", e.Name)
		}
	}
	if p.Method.Tree.MaxResults < 0 {
		return newCompileError(ErrCodeUnsupportedPredicate, "", "negative result cap %d", p.Method.Tree.MaxResults)
	}
	return nil
}

// ValidationResult lists legal but suspicious plan features.
type ValidationResult struct {
	// IsClean is true when Warnings is empty.
	IsClean bool

	// Warnings describes each finding.
	Warnings []string
}

// Analyze reports plan features that compile but probably do not do what
// the author meant. It never fails; compile errors are Validate's job.
func Analyze(p *Plan) ValidationResult {
	var warnings []string
	add := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	tree := p.Method.Tree
	wrapper := p.Method.Returns.Wrapper
	if wrapper == ir.WrapSlice && tree.MaxResults > 0 {
		add("slice result with a fixed cap of %d cannot detect a following page", tree.MaxResults)
	}
	if tree.Distinct && len(tree.Sort) > 0 {
		add("distinct projection ignores sort order of the facet groups")
	}
	if tree.Subject != ir.SubjectFind && len(tree.Sort) > 0 {
		add("%s subject does not observe sort order", tree.Subject)
	}
	if wrapper == ir.WrapOne && tree.MaxResults == 0 && len(tree.Groups) == 0 {
		add("single result without any predicate fails as soon as the namespace holds two documents")
	}
	for _, g := range tree.Groups {
		for _, part := range g {
			if p.Entity == nil {
				break
			}
			if part.Operator == ir.OpContains || part.Operator == ir.OpEndsWith || part.Operator == ir.OpNotContains {
				if f, ok := p.Entity.Field(part.Path); ok && !f.Collection {
					add("%s on %s uses a leading wildcard and scans every document", part.Operator, part.Path)
				}
			}
		}
	}
	return ValidationResult{IsClean: len(warnings) == 0, Warnings: warnings}
}
