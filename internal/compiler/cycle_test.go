package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/docrepo/internal/ir"
)

func entities(edges map[string][]ir.Reference) map[string]*ir.EntityMeta {
	out := make(map[string]*ir.EntityMeta, len(edges))
	for name, refs := range edges {
		out[name] = &ir.EntityMeta{Name: name, References: refs}
	}
	return out
}

func ref(entity string) ir.Reference {
	return ir.Reference{Property: entity, Entity: entity}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	warnings := AnalyzeCycles(entities(map[string][]ir.Reference{
		"Order":    {ref("Customer"), ref("Product")},
		"Customer": {ref("Address")},
		"Product":  {ref("Address")},
		"Address":  nil,
	}))
	assert.Empty(t, warnings)
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	warnings := AnalyzeCycles(entities(map[string][]ir.Reference{
		"Category": {ref("Category")},
	}))
	assert.Equal(t, []CycleWarning{{
		Path:    []string{"Category", "Category"},
		Message: "eager reference cycle: Category -> Category",
	}}, warnings)
}

func TestAnalyzeCycles_ThreeNodes(t *testing.T) {
	warnings := AnalyzeCycles(entities(map[string][]ir.Reference{
		"A": {ref("B")},
		"B": {ref("C")},
		"C": {ref("A")},
		"D": {ref("A")},
	}))
	if assert.Len(t, warnings, 1) {
		assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
	}
}

func TestAnalyzeCycles_LazyAndLookupBreakCycles(t *testing.T) {
	lazy := ref("A")
	lazy.Lazy = true
	lookup := ref("C")
	lookup.Lookup = "findC"

	warnings := AnalyzeCycles(entities(map[string][]ir.Reference{
		"A": {ref("B")},
		"B": {lazy},
		"C": {lookup, ref("D")},
		"D": {},
	}))
	assert.Empty(t, warnings)
}

func TestAnalyzeCycles_UnknownTargetsIgnored(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(entities(map[string][]ir.Reference{
		"A": {ref("Missing")},
	})))
}
