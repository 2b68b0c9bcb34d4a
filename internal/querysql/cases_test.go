package querysql_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/join"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/testutil"
)

// corpusCase is one plan shared by the golden and cross-backend tests.
type corpusCase struct {
	name string
	plan func(t *testing.T) *queryir.Plan
	args []any
}

func itemPlan(t *testing.T, entity *ir.EntityMeta, m ir.MethodSpec, page *ir.PageRequest) *queryir.Plan {
	t.Helper()
	joins, err := join.Synthesize(entity, testutil.Catalog(), m.Tree.Subject)
	require.NoError(t, err)
	return queryir.NewPlan(entity, m, page, joins)
}

func corpus() []corpusCase {
	return []corpusCase{
		{
			name: "find_or_groups",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("findOrGroups",
					ir.OrGroup{testutil.Not(testutil.P("name", ir.OpEqual)), testutil.P("price", ir.OpGreaterThan)},
					ir.OrGroup{testutil.P("color", ir.OpEqual)},
					ir.OrGroup{testutil.P("size", ir.OpEqual), testutil.P("active", ir.OpTrue)},
				)
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
			args: []any{"Lamp", 10, "BLUE", "M"},
		},
		{
			name: "count_by_color",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("countByColor", ir.OrGroup{testutil.P("color", ir.OpEqual)})
				m.Tree.Subject = ir.SubjectCount
				m.Params = []string{"color"}
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
			args: []any{"RED"},
		},
		{
			name: "exists_by_name",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("existsByName", ir.OrGroup{testutil.P("name", ir.OpEqual)})
				m.Tree.Subject = ir.SubjectExists
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
			args: []any{"Chair"},
		},
		{
			name: "delete_by_tags",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("deleteByTags", ir.OrGroup{testutil.P("tags", ir.OpContains)})
				m.Tree.Subject = ir.SubjectDelete
				m.Tree.Sort = []ir.SortSpec{{Field: "price"}}
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
			args: []any{[]string{"outdoor"}},
		},
		{
			name: "find_like_family",
			plan: func(t *testing.T) *queryir.Plan {
				starts := testutil.P("name", ir.OpStartsWith)
				starts.IgnoreCase = ir.IgnoreCaseAlways
				m := testutil.Find("findLike", ir.OrGroup{starts, testutil.P("size", ir.OpNotLike)})
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
			args: []any{"LA", "S"},
		},
		{
			name: "page_sorted_capped",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("findPage", ir.OrGroup{testutil.P("price", ir.OpBetween), testutil.P("owner_id", ir.OpIsNotNull)})
				m.Tree.MaxResults = 5
				m.Tree.Sort = []ir.SortSpec{{Field: "price", Desc: true}, {Field: "color", Values: []string{"RED", "BLUE"}}}
				m.Returns.Wrapper = ir.WrapPage
				m.Params = []string{"lo", "hi"}
				return itemPlan(t, testutil.ItemEntity(), m, &ir.PageRequest{Index: 0, Size: 10})
			},
			args: []any{10, 100},
		},
		{
			name: "sort_forced_rank",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("findRanked")
				m.Tree.Sort = []ir.SortSpec{{Field: "rank", Values: []string{"LOW", "HIGH"}}, {Field: "name"}}
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
		},
		{
			name: "distinct_projection",
			plan: func(t *testing.T) *queryir.Plan {
				m := testutil.Find("findDistinct")
				m.Tree.Distinct = true
				m.Returns = ir.ReturnShape{Wrapper: ir.WrapList, Projection: ir.ProjectConstructor, Fields: []string{"color", "size"}}
				return itemPlan(t, testutil.ItemEntity(), m, nil)
			},
		},
		{
			name: "inner_join_sorted",
			plan: func(t *testing.T) *queryir.Plan {
				entity := testutil.ItemEntity()
				entity.References[0].Join = ir.JoinInner
				entity.References[0].Sort = "name DESC"
				m := testutil.Find("findWithOwner",
					ir.OrGroup{testutil.P("color", ir.OpEqual)},
					ir.OrGroup{testutil.P("size", ir.OpIn)},
				)
				return itemPlan(t, entity, m, nil)
			},
			args: []any{"BLUE", []string{"M"}},
		},
	}
}
