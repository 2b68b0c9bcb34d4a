package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/testutil"
)

func sampleCatalog(methods ...ir.MethodSpec) *Catalog {
	return &Catalog{Entities: testutil.Catalog(), Methods: methods}
}

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestCheck_SampleCatalogIsValid(t *testing.T) {
	cat, errs := Load(testutil.WriteSpecs(t), LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Empty(t, Check(cat))
}

func TestCheck_Methods(t *testing.T) {
	unknown := testutil.Find("ghost")
	unknown.Entity = "Ghost"

	arity := testutil.Find("arity", ir.OrGroup{testutil.P("price", ir.OpBetween)})
	arity.Params = []string{"lo"}

	dup := testutil.Find("dup", ir.OrGroup{testutil.P("name", ir.OpEqual), testutil.P("size", ir.OpEqual)})
	dup.Params = []string{"v", "v"}

	sortValue := testutil.Find("sortValue")
	sortValue.Tree.Sort = []ir.SortSpec{{Field: "color", Values: []string{"GREEN"}}}

	rejected := testutil.Find("rejected", ir.OrGroup{testutil.P("price", ir.OpStartsWith)})

	tests := []struct {
		method ir.MethodSpec
		want   []string
	}{
		{unknown, []string{ErrUnknownEntity}},
		{arity, []string{ErrParamArity}},
		{dup, []string{ErrDuplicateParam}},
		{sortValue, []string{ErrSortValue}},
		{rejected, []string{ErrRejectedPlan}},
	}
	for _, tt := range tests {
		t.Run(tt.method.Name, func(t *testing.T) {
			errs := Check(sampleCatalog(tt.method))
			assert.Equal(t, tt.want, codes(errs))
			for _, e := range errs {
				assert.Contains(t, e.Error(), "method."+tt.method.Name)
			}
		})
	}
}

func TestCheck_DuplicateMethod(t *testing.T) {
	errs := Check(sampleCatalog(testutil.Find("a"), testutil.Find("a")))
	assert.Equal(t, []string{ErrDuplicateMethod}, codes(errs))
}

func TestCheck_Entities(t *testing.T) {
	cat := sampleCatalog()
	twin := testutil.OwnerEntity()
	twin.Name = "Twin"
	cat.Entities["Twin"] = twin

	broken := testutil.ItemEntity()
	broken.Name = "Broken"
	broken.Namespace = "broken"
	broken.References[0].Entity = "Nobody"
	cat.Entities["Broken"] = broken

	errs := Check(cat)
	assert.ElementsMatch(t, []string{ErrBadReference, ErrDuplicateName}, codes(errs))
}

func TestCatalog_PlanSynthesizesJoins(t *testing.T) {
	cat := sampleCatalog()

	plan, err := cat.Plan(testutil.Find("all"), &ir.PageRequest{Size: 2})
	require.NoError(t, err)
	require.Len(t, plan.Joins, 1)
	assert.Equal(t, "owners", plan.Joins[0].TargetNamespace)
	assert.False(t, plan.Joins[0].Skip)
	assert.Equal(t, 2, plan.Page.Size)

	count := testutil.Find("count")
	count.Tree.Subject = ir.SubjectCount
	plan, err = cat.Plan(count, nil)
	require.NoError(t, err)
	assert.True(t, plan.Joins[0].Skip)

	ghost := testutil.Find("ghost")
	ghost.Entity = "Ghost"
	_, err = cat.Plan(ghost, nil)
	assert.Error(t, err)
}

func TestWarnings(t *testing.T) {
	cat := sampleCatalog(testutil.Find("byName", ir.OrGroup{testutil.P("name", ir.OpContains)}))
	owner := cat.Entities["Owner"]
	owner.Fields = append(owner.Fields, ir.FieldMeta{Name: "favorite", Type: ir.FieldString})
	owner.References = []ir.Reference{{Property: "favorite", Entity: "Item", LocalField: "favorite"}}

	assert.Equal(t, []string{
		"method.byName: CONTAINS on name uses a leading wildcard and scans every document",
		"eager reference cycle: Item -> Owner -> Item",
	}, Warnings(cat))
}
