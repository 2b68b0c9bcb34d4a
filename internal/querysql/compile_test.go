package querysql_test

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/mapper"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/querysql"
	"github.com/roach88/docrepo/internal/testutil"
)

func TestCompile_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".sql"),
	)
	for _, tc := range corpus() {
		t.Run(tc.name, func(t *testing.T) {
			st, err := querysql.Compile(tc.plan(t))
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(st.Text+"\n"))
		})
	}
}

func TestCompile_StatementMetadata(t *testing.T) {
	var page, del *queryir.Plan
	for _, tc := range corpus() {
		switch tc.name {
		case "page_sorted_capped":
			page = tc.plan(t)
		case "delete_by_tags":
			del = tc.plan(t)
		}
	}

	st, err := querysql.Compile(page)
	require.NoError(t, err)
	assert.Equal(t, querysql.TypeSelect, st.Kind)
	assert.Equal(t, "items", st.Namespace)
	assert.Equal(t, []string{"lo", "hi"}, st.Params)
	assert.Equal(t, 5, st.Cap)
	assert.True(t, st.Pageable)
	assert.Equal(t, st.Base+" LIMIT 5", st.Text)
	assert.Equal(t, st.Base+" LIMIT 5 OFFSET 5", st.Paginate(&ir.PageRequest{Index: 1, Size: 10}))
	assert.Equal(t, st.Base+" LIMIT 5 OFFSET 6", st.Paginate(&ir.PageRequest{Index: 2, Size: 3}), "cap wins even over a smaller page")

	st, err = querysql.Compile(del)
	require.NoError(t, err)
	assert.Equal(t, querysql.TypeDelete, st.Kind)
	assert.Equal(t, st.Text, st.Paginate(&ir.PageRequest{Index: 1, Size: 2}))
}

func TestStatement_Bind(t *testing.T) {
	m := testutil.Find("m",
		ir.OrGroup{testutil.P("name", ir.OpContains), testutil.P("tags", ir.OpIn), testutil.P("active", ir.OpFalse)},
		ir.OrGroup{testutil.P("price", ir.OpBetween)},
	)
	m.Params = []string{"name", "tags", "lo", "hi"}
	st, err := querysql.Compile(queryir.NewPlan(testutil.ItemEntity(), m, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM items WHERE name LIKE :name AND tags IN :tags AND active = false OR (price RANGE(:lo, :hi))", st.Text)

	vm, err := mapper.NewRegistry(nil, nil).For(testutil.ItemEntity())
	require.NoError(t, err)
	named, err := st.Bind(vm, []any{"50%", []string{"a", "b"}, 1, 9})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": `%50\%%`,
		"tags": []any{"a", "b"},
		"lo":   1,
		"hi":   9,
	}, named)

	_, err = st.Bind(vm, []any{"x"})
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := mapper.New(nil, map[string]mapper.ValueConverter{
		"price": mapper.ConverterFunc(func(any) (any, error) { return nil, boom }),
	}, nil)
	_, err = st.Bind(failing, []any{"x", nil, 1, 2})
	assert.Same(t, boom, err)
}

func TestStatement_BindForcedSort(t *testing.T) {
	m := testutil.Find("m", ir.OrGroup{testutil.P("color", ir.OpEqual)})
	m.Tree.Sort = []ir.SortSpec{{Field: "rank", Values: []string{"HIGH", "LOW"}}, {Field: "color", Values: []string{"BLUE"}}}
	st, err := querysql.Compile(queryir.NewPlan(testutil.ItemEntity(), m, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM items WHERE color = :p1 ORDER BY FIELD(rank, :_sort1, :_sort2) ASC, FIELD(color, :_sort3) ASC", st.Text)
	assert.Equal(t, []string{"p1"}, st.Params)

	vm, err := mapper.NewRegistry(nil, nil).For(testutil.ItemEntity())
	require.NoError(t, err)
	named, err := st.Bind(vm, []any{"RED"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"p1": "RED", "_sort1": 1, "_sort2": 0, "_sort3": "BLUE"}, named)
}

func TestCompile_Errors(t *testing.T) {
	_, err := querysql.Compile(nil)
	assert.Error(t, err)

	m := testutil.Find("m", ir.OrGroup{testutil.P("active", ir.OpStartsWith)})
	_, err = querysql.Compile(queryir.NewPlan(testutil.ItemEntity(), m, nil, nil))
	assert.True(t, queryir.IsTypeMismatch(err))

	m = testutil.Find("m", ir.OrGroup{testutil.P("tags", ir.OpGreaterThan)})
	_, err = querysql.Compile(queryir.NewPlan(testutil.ItemEntity(), m, nil, nil))
	assert.True(t, queryir.IsUnsupportedPredicate(err))

	m = testutil.Find("m", ir.OrGroup{testutil.P("weight", ir.OpEqual)})
	_, err = querysql.Compile(queryir.NewPlan(testutil.ItemEntity(), m, nil, nil))
	assert.True(t, queryir.IsMissingMetadata(err))
}
