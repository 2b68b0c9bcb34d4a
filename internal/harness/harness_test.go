package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/repository"
	"github.com/roach88/docrepo/internal/testutil"
)

func int64p(n int64) *int64 { return &n }
func boolp(b bool) *bool    { return &b }

func sampleScenario(t *testing.T, calls ...Call) *Scenario {
	return &Scenario{
		Name:  "sample",
		Specs: testutil.WriteSpecs(t),
		Seed: []SeedSet{
			{Namespace: "owners", Documents: testutil.SampleOwners()},
			{Namespace: "items", Documents: testutil.SampleItems()},
		},
		Calls: calls,
	}
}

func TestRun_TourScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "catalog_tour.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, len(s.Calls))
	assert.Equal(t, result.Backends[repository.BackendObject], result.Trace)
	assert.Equal(t, result.Backends[repository.BackendObject], result.Backends[repository.BackendText])
	assert.Equal(t, map[string]int64{"owners": 2, "items": 3}, result.State)
}

func TestRun_SeedIsNotMutated(t *testing.T) {
	s := sampleScenario(t, Call{Method: "countByColor", Args: []any{"RED"}})
	s.Seed[1].Documents = append(s.Seed[1].Documents, map[string]any{"name": "Stool"})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotContains(t, s.Seed[1].Documents[3], "id")
}

func TestRun_ExpectationFailures(t *testing.T) {
	s := sampleScenario(t,
		Call{Method: "countByColor", Args: []any{"RED"}, Expect: &Expect{Count: int64p(5)}},
		Call{Method: "existsByName", Args: []any{"Lamp"}, Expect: &Expect{Exists: boolp(false)}},
		Call{Method: "findByTag", Args: []any{"light"}, Expect: &Expect{IDs: []string{"i1", "i3"}}},
		Call{Method: "findByNameLike", Args: []any{"zzz"}},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "calls[0] countByColor: count: expected 5, got 2")
	assert.Contains(t, result.Errors[1], "calls[1] existsByName: exists")
	assert.Contains(t, result.Errors[2], "calls[2] findByTag: ids: expected [i1 i3], got [i3 i1]")
	assert.Contains(t, result.Errors[3], "calls[3] findByNameLike: unexpected error")
}

func TestRun_ExpectedError(t *testing.T) {
	s := sampleScenario(t,
		Call{Method: "findByNameLike", Args: []any{"L"}, Expect: &Expect{Error: "at most one result"}},
		Call{Method: "missing", Expect: &Expect{Error: `unknown method "missing"`}},
		Call{Method: "countByColor", Args: []any{"RED"}, Expect: &Expect{Error: "boom"}},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `calls[2] countByColor: error: expected "boom"`)
}

func TestRun_PageAndRows(t *testing.T) {
	s := sampleScenario(t,
		Call{
			Method: "pageByPrice",
			Args:   []any{0, 100},
			Page:   &ir.PageRequest{Index: 0, Size: 2},
			Expect: &Expect{
				IDs:   []string{"i1", "i3"},
				Count: int64p(3),
				Rows: []map[string]any{
					{"name": "Lamp", "price": 30, "owner": map[string]any{"id": "o1", "name": "Ada", "city": "Paris"}},
					{"name": "lantern", "tags": []any{"outdoor", "light"}},
				},
			},
		},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.EqualValues(t, 3, result.Trace[0].Count)
}

func TestRun_Assertions(t *testing.T) {
	s := sampleScenario(t, Call{Method: "deleteInactive", Expect: &Expect{Count: int64p(1)}})
	s.Assertions = []Assertion{
		{Type: AssertNamespaceCount, Namespace: "items", Count: 2},
		{Type: AssertDocument, Namespace: "items", ID: "i2", Absent: true},
		{Type: AssertDocument, Namespace: "items", ID: "i1", Expect: map[string]any{"name": "Lamp", "active": true}},
		{Type: AssertStatement, Method: "deleteInactive", Text: "DELETE FROM items WHERE active = false"},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(2), result.State["items"])
}

func TestRun_AssertionFailuresPerBackend(t *testing.T) {
	s := sampleScenario(t, Call{Method: "countByColor", Args: []any{"RED"}})
	s.Assertions = []Assertion{
		{Type: AssertNamespaceCount, Namespace: "items", Count: 9},
		{Type: AssertStatement, Method: "countByColor", Text: "SELECT 1"},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "object backend: assertion[0]")
	assert.Contains(t, result.Errors[1], "text backend: assertion[0]")
	assert.Contains(t, result.Errors[2], "statement: expected countByColor to compile to")
}

func TestRun_BadSpecs(t *testing.T) {
	s := &Scenario{Name: "x", Specs: t.TempDir(), Calls: []Call{{Method: "m"}}}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load specs")
}

func TestAgree(t *testing.T) {
	a := CallResult{Method: "m", Subject: ir.SubjectFind, IDs: []string{"1"}}
	assert.True(t, agree(a, a))
	assert.False(t, agree(a, CallResult{Method: "m", Subject: ir.SubjectFind, IDs: []string{"2"}}))
	assert.True(t, agree(CallResult{Error: "parse: x"}, CallResult{Error: "bind: y"}))
	assert.False(t, agree(CallResult{Error: "x"}, CallResult{}))
}

func TestCompareBackends_RecordsDisagreement(t *testing.T) {
	result := NewResult()
	result.Backends[repository.BackendObject] = []CallResult{{Method: "countByColor", Count: 2}}
	result.Backends[repository.BackendText] = []CallResult{{Method: "countByColor", Count: 3}}

	(&Harness{}).compareBackends(result)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "calls[0] countByColor: backends disagree")
}

func TestFlatten(t *testing.T) {
	type row = map[string]any
	rows := []row{{"id": "a"}, {"id": "b"}}

	tests := []struct {
		name  string
		in    any
		want  []row
		total int64
	}{
		{"list", rows, rows, 0},
		{"one", rows[0], rows[:1], 0},
		{"optional", &rows[1], rows[1:], 0},
		{"optional empty", (*row)(nil), nil, 0},
		{"page", materialize.Page[row]{Items: rows, Total: 7}, rows, 7},
		{"slice", materialize.Slice[row]{Items: rows}, rows, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := flatten(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, total)
		})
	}

	_, _, err := flatten(42)
	assert.ErrorContains(t, err, "unexpected result type int")
}

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"n":    float64(3),
		"f":    1.5,
		"nil":  nil,
		"list": []any{float64(1), nil, "x"},
		"obj":  map[string]any{"i": 2},
	}
	want := map[string]any{
		"n":    int64(3),
		"f":    "1.5",
		"list": []any{int64(1), "null", "x"},
		"obj":  map[string]any{"i": int64(2)},
	}
	assert.Equal(t, want, normalize(in))
}
