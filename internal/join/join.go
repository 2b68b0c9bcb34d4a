// Package join synthesizes join clauses from an entity's declared references.
package join

import (
	"fmt"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/queryir"
)

// Synthesize returns one JoinSpec per reference declared on meta, in
// declaration order. entities resolves referenced entity names.
//
// A join is marked Skip when the reference is lazy or has a custom lookup
// (both are resolved after materialization), and a LEFT join is also
// skipped for count, exists and delete subjects, which never observe the
// joined documents.
func Synthesize(meta *ir.EntityMeta, entities map[string]*ir.EntityMeta, subject ir.Subject) ([]ir.JoinSpec, error) {
	joins := make([]ir.JoinSpec, 0, len(meta.References))
	for _, ref := range meta.References {
		target, ok := entities[ref.Entity]
		if !ok {
			return nil, &queryir.CompileError{
				Code:    queryir.ErrCodeMissingMetadata,
				Path:    ref.Property,
				Message: fmt.Sprintf("reference %s.%s names unknown entity %q", meta.Name, ref.Property, ref.Entity),
			}
		}
		local, ok := meta.Field(ref.LocalField)
		if !ok {
			return nil, &queryir.CompileError{
				Code:    queryir.ErrCodeMissingMetadata,
				Path:    ref.LocalField,
				Message: fmt.Sprintf("reference %s.%s joins on undeclared property", meta.Name, ref.Property),
			}
		}
		remote := ref.RemoteField
		if remote == "" {
			remote = target.IDField
		}
		if _, ok := target.Field(remote); !ok {
			return nil, &queryir.CompileError{
				Code:    queryir.ErrCodeMissingMetadata,
				Path:    remote,
				Message: fmt.Sprintf("reference %s.%s targets undeclared property of %s", meta.Name, ref.Property, target.Name),
			}
		}
		sort, err := ParseSort(ref.Sort)
		if err != nil {
			return nil, fmt.Errorf("reference %s.%s: %w", meta.Name, ref.Property, err)
		}

		typ := ref.Join
		if typ == "" {
			typ = ir.JoinLeft
		}
		cond := ir.CondEq
		if local.Collection {
			cond = ir.CondSet
		}
		joins = append(joins, ir.JoinSpec{
			Property:        ref.Property,
			TargetNamespace: target.Namespace,
			LocalField:      ref.LocalField,
			RemoteField:     remote,
			Type:            typ,
			Condition:       cond,
			Sort:            sort,
			Skip:            skip(ref, typ, subject),
		})
	}
	return joins, nil
}

func skip(ref ir.Reference, typ ir.JoinType, subject ir.Subject) bool {
	if ref.Lazy || ref.Lookup != "" {
		return true
	}
	if typ != ir.JoinLeft {
		return false
	}
	switch subject {
	case ir.SubjectCount, ir.SubjectExists, ir.SubjectDelete:
		return true
	}
	return false
}

// ParseSort parses a reference sort text: comma-separated "field [ASC|DESC]".
func ParseSort(text string) ([]ir.SortSpec, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out []ir.SortSpec
	for _, item := range strings.Split(text, ",") {
		words := strings.Fields(item)
		switch {
		case len(words) == 1:
			out = append(out, ir.SortSpec{Field: words[0]})
		case len(words) == 2 && strings.EqualFold(words[1], "asc"):
			out = append(out, ir.SortSpec{Field: words[0]})
		case len(words) == 2 && strings.EqualFold(words[1], "desc"):
			out = append(out, ir.SortSpec{Field: words[0], Desc: true})
		default:
			return nil, fmt.Errorf("invalid sort %q", strings.TrimSpace(item))
		}
	}
	return out, nil
}
