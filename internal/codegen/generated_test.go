package codegen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/mapper"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/queryobj"
	"github.com/roach88/docrepo/internal/querysql"
	"github.com/roach88/docrepo/internal/store"
	"github.com/roach88/docrepo/internal/testutil"
)

// Generated statements, read back from the source, must bind and select
// the same rows as the object backend.
func TestGenerate_StatementsBindLikeCompiled(t *testing.T) {
	cat := sampleCatalog(t)

	startsOrIn := testutil.Find("findByNamePrefixOrColorIn",
		ir.OrGroup{{Path: "name", Operator: ir.OpStartsWith, IgnoreCase: ir.IgnoreCaseAlways}},
		ir.OrGroup{testutil.P("color", ir.OpIn)},
	)
	startsOrIn.Tree.Sort = []ir.SortSpec{{Field: "rank", Values: []string{"LOW", "HIGH"}}, {Field: "name"}}

	notContaining := testutil.Find("findByNameNotContaining", ir.OrGroup{testutil.P("name", ir.OpNotContains)})
	notContaining.Tree.Sort = []ir.SortSpec{{Field: "name"}}

	cat.Methods = append(cat.Methods, startsOrIn, notContaining)

	calls := []struct {
		method string
		args   []any
		want   []string
	}{
		{"findByNamePrefixOrColorIn", []any{"LA", []string{"BLUE"}}, []string{"i2", "i1", "i3"}},
		{"findByNameNotContaining", []any{"am"}, []string{"i2", "i3"}},
		{"findByTag", []any{"light"}, []string{"i3", "i1"}},
		{"pageByPrice", []any{40, 100}, []string{"i3", "i2"}},
	}

	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.method
	}
	src, err := Generate(context.Background(), only(cat, names...), Options{})
	require.NoError(t, err)
	generated := decodeStatements(t, src)

	vm, err := mapper.NewRegistry(nil, nil).For(cat.Entities["Item"])
	require.NoError(t, err)
	s := seededStore(t)
	ctx := context.Background()

	for _, c := range calls {
		t.Run(c.method, func(t *testing.T) {
			m, ok := cat.Method(c.method)
			require.True(t, ok)
			plan, err := cat.Plan(m, nil)
			require.NoError(t, err)

			compiled, err := querysql.Compile(plan)
			require.NoError(t, err)
			st := generated[c.method]
			require.NotNil(t, st)
			assert.Equal(t, compiled, st)

			obj, err := queryobj.Compile(s, plan, vm, c.args)
			require.NoError(t, err)
			objIt, err := obj.Query.Exec(ctx)
			require.NoError(t, err)
			assert.Equal(t, c.want, ids(t, objIt))

			named, err := st.Bind(vm, c.args)
			require.NoError(t, err)
			txtIt, err := s.ExecSQL(ctx, st.Text, named)
			require.NoError(t, err)
			assert.Equal(t, c.want, ids(t, txtIt))
		})
	}
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "generated.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for _, doc := range testutil.SampleOwners() {
		_, err := s.Upsert(ctx, "owners", doc)
		require.NoError(t, err)
	}
	for _, doc := range testutil.SampleItems() {
		_, err := s.Upsert(ctx, "items", doc)
		require.NoError(t, err)
	}
	return s
}

func ids(t *testing.T, it *store.Iterator) []string {
	t.Helper()
	defer it.Close()
	out := []string{}
	for it.Next() {
		out = append(out, it.Document().ID)
	}
	require.NoError(t, it.Err())
	return out
}

// decodeStatements reads the statement literal of every generated method,
// keyed by method name.
func decodeStatements(t *testing.T, src []byte) map[string]*querysql.Statement {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "statements.go", src, 0)
	require.NoError(t, err)

	out := make(map[string]*querysql.Statement)
	ast.Inspect(f, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || len(spec.Values) != 1 {
			return true
		}
		lit, ok := spec.Values[0].(*ast.CompositeLit)
		if !ok {
			return true
		}
		var method string
		var st *querysql.Statement
		for _, kv := range keyValues(lit) {
			switch keyName(kv) {
			case "Method":
				method = str(t, kv.Value)
			case "Statement":
				st = decodeStatement(t, kv.Value.(*ast.UnaryExpr).X.(*ast.CompositeLit))
			}
		}
		if method != "" {
			out[method] = st
		}
		return false
	})
	return out
}

func decodeStatement(t *testing.T, lit *ast.CompositeLit) *querysql.Statement {
	st := &querysql.Statement{}
	for _, kv := range keyValues(lit) {
		switch keyName(kv) {
		case "Kind":
			st.Kind = querysql.TypeSelect
			if selector(kv.Value) == kindIdent(querysql.TypeDelete) {
				st.Kind = querysql.TypeDelete
			}
		case "Namespace":
			st.Namespace = str(t, kv.Value)
		case "Text":
			st.Text = str(t, kv.Value)
		case "Base":
			st.Base = str(t, kv.Value)
		case "Params":
			st.Params = strs(t, kv.Value)
		case "Clauses":
			for _, e := range kv.Value.(*ast.CompositeLit).Elts {
				st.Clauses = append(st.Clauses, decodeClause(t, e.(*ast.CompositeLit)))
			}
		case "Forced":
			for _, e := range kv.Value.(*ast.CompositeLit).Elts {
				var fv querysql.ForcedValue
				for _, f := range keyValues(e.(*ast.CompositeLit)) {
					switch keyName(f) {
					case "Name":
						fv.Name = str(t, f.Value)
					case "Field":
						fv.Field = str(t, f.Value)
					case "Value":
						fv.Value = str(t, f.Value)
					}
				}
				st.Forced = append(st.Forced, fv)
			}
		case "Cap":
			n, err := strconv.Atoi(kv.Value.(*ast.BasicLit).Value)
			require.NoError(t, err)
			st.Cap = n
		case "Pageable":
			st.Pageable = kv.Value.(*ast.Ident).Name == "true"
		case "Slice":
			st.Slice = kv.Value.(*ast.Ident).Name == "true"
		default:
			t.Fatalf("unexpected statement field %s", keyName(kv))
		}
	}
	return st
}

func decodeClause(t *testing.T, lit *ast.CompositeLit) queryir.Clause {
	var c queryir.Clause
	for _, kv := range keyValues(lit) {
		switch keyName(kv) {
		case "Field":
			c.Field = str(t, kv.Value)
		case "Cond":
			c.Cond = lookup(t, condIdents, selector(kv.Value))
		case "Negated":
			c.Negated = true
		case "Fold":
			c.Fold = true
		case "Expand":
			c.Expand = true
		case "Wildcard":
			c.Wildcard = lookup(t, wildcardIdents, selector(kv.Value))
		case "Args":
			for _, e := range kv.Value.(*ast.CompositeLit).Elts {
				var a queryir.Arg
				for _, f := range keyValues(e.(*ast.CompositeLit)) {
					switch keyName(f) {
					case "Index":
						n, err := strconv.Atoi(f.Value.(*ast.BasicLit).Value)
						require.NoError(t, err)
						a.Index = n
					case "Name":
						a.Name = str(t, f.Value)
					}
				}
				c.Args = append(c.Args, a)
			}
		case "Literals":
			for _, e := range kv.Value.(*ast.CompositeLit).Elts {
				switch v := e.(type) {
				case *ast.Ident:
					c.Literals = append(c.Literals, v.Name == "true")
				case *ast.BasicLit:
					c.Literals = append(c.Literals, str(t, v))
				default:
					t.Fatalf("unexpected literal %T", e)
				}
			}
		default:
			t.Fatalf("unexpected clause field %s", keyName(kv))
		}
	}
	return c
}

func keyValues(lit *ast.CompositeLit) []*ast.KeyValueExpr {
	out := make([]*ast.KeyValueExpr, 0, len(lit.Elts))
	for _, e := range lit.Elts {
		if kv, ok := e.(*ast.KeyValueExpr); ok {
			out = append(out, kv)
		}
	}
	return out
}

func keyName(kv *ast.KeyValueExpr) string {
	if id, ok := kv.Key.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func selector(e ast.Expr) string {
	sel := e.(*ast.SelectorExpr)
	return sel.X.(*ast.Ident).Name + "." + sel.Sel.Name
}

func lookup[K comparable](t *testing.T, idents map[K]string, name string) K {
	t.Helper()
	for k, v := range idents {
		if v == name {
			return k
		}
	}
	t.Fatalf("unknown identifier %s", name)
	var zero K
	return zero
}

func str(t *testing.T, e ast.Expr) string {
	t.Helper()
	s, err := strconv.Unquote(e.(*ast.BasicLit).Value)
	require.NoError(t, err)
	return s
}

func strs(t *testing.T, e ast.Expr) []string {
	if id, ok := e.(*ast.Ident); ok && id.Name == "nil" {
		return nil
	}
	var out []string
	for _, el := range e.(*ast.CompositeLit).Elts {
		out = append(out, str(t, el))
	}
	return out
}
