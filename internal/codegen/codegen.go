// Package codegen compiles every declared method with the text backend
// ahead of time and renders the statements as a Go source file.
package codegen

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/querysql"
)

//go:embed statements.go.tmpl
var statementsTemplate string

var tmpl = template.Must(template.New("statements").Funcs(template.FuncMap{
	"quote":   strconv.Quote,
	"params":  goStrings,
	"kind":    kindIdent,
	"clauses": goClauses,
	"forced":  goForced,
}).Parse(statementsTemplate))

// Options configures Generate.
type Options struct {
	// Package is the package clause of the generated file. Default "statements".
	Package string

	// Source is recorded in the file header when set.
	Source string

	// Workers bounds concurrent compilation. Default GOMAXPROCS.
	Workers int
}

// Entry is one compiled method. The generated file carries the whole
// statement, so binding a generated statement resolves values exactly as
// the compiled one does.
type Entry struct {
	Ident  string
	Method string
	ID     string
	*querysql.Statement
}

// Compile compiles every method of cat, sorted by method name. The first
// failing method cancels the rest.
func Compile(ctx context.Context, cat *compiler.Catalog, opts Options) ([]Entry, error) {
	methods := append([]ir.MethodSpec(nil), cat.Methods...)
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	entries := make([]Entry, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := compileMethod(cat, m)
			if err != nil {
				return fmt.Errorf("method %s: %w", m.Name, err)
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if other, dup := seen[e.Ident]; dup {
			return nil, fmt.Errorf("methods %s and %s both generate %s", other, e.Method, e.Ident)
		}
		seen[e.Ident] = e.Method
	}
	return entries, nil
}

func compileMethod(cat *compiler.Catalog, m ir.MethodSpec) (Entry, error) {
	plan, err := cat.Plan(m, nil)
	if err != nil {
		return Entry{}, err
	}
	st, err := querysql.Compile(plan)
	if err != nil {
		return Entry{}, err
	}
	id, err := ir.StatementID(st.Namespace, m.Name, st.Text, st.Params)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Ident: ident(m.Name), Method: m.Name, ID: id, Statement: st}, nil
}

// Generate renders the statements of every method of cat as Go source.
// The output is deterministic for a given catalog.
func Generate(ctx context.Context, cat *compiler.Catalog, opts Options) ([]byte, error) {
	entries, err := Compile(ctx, cat, opts)
	if err != nil {
		return nil, err
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = "statements"
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Package":   pkg,
		"Source":    opts.Source,
		"Generator": ir.GeneratorVersion,
		"Schema":    ir.SchemaVersion,
		"Entries":   entries,
	})
	if err != nil {
		return nil, fmt.Errorf("render statements: %w", err)
	}
	out, err := imports.Process(pkg+".go", buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("format statements: %w", err)
	}
	return out, nil
}

// ident turns a method name into an exported Go identifier.
func ident(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	s := sb.String()
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "M" + s
	}
	return s
}

func goStrings(ss []string) string {
	if len(ss) == 0 {
		return "nil"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

func kindIdent(k querysql.StatementType) string {
	if k == querysql.TypeDelete {
		return "querysql.TypeDelete"
	}
	return "querysql.TypeSelect"
}

var condIdents = map[ir.Condition]string{
	ir.CondEq:    "ir.CondEq",
	ir.CondGt:    "ir.CondGt",
	ir.CondGe:    "ir.CondGe",
	ir.CondLt:    "ir.CondLt",
	ir.CondLe:    "ir.CondLe",
	ir.CondRange: "ir.CondRange",
	ir.CondSet:   "ir.CondSet",
	ir.CondLike:  "ir.CondLike",
	ir.CondEmpty: "ir.CondEmpty",
	ir.CondAny:   "ir.CondAny",
}

var wildcardIdents = map[queryir.Wildcard]string{
	queryir.WildcardPrefix: "queryir.WildcardPrefix",
	queryir.WildcardSuffix: "queryir.WildcardSuffix",
	queryir.WildcardBoth:   "queryir.WildcardBoth",
}

// goClauses renders clauses as a []queryir.Clause literal, one clause per
// line. Zero fields are left out.
func goClauses(clauses []queryir.Clause) (string, error) {
	var sb strings.Builder
	sb.WriteString("[]queryir.Clause{\n")
	for _, c := range clauses {
		cond, ok := condIdents[c.Cond]
		if !ok {
			return "", fmt.Errorf("clause on %s: unknown condition %q", c.Field, c.Cond)
		}
		fields := []string{"Field: " + strconv.Quote(c.Field), "Cond: " + cond}
		if c.Negated {
			fields = append(fields, "Negated: true")
		}
		if len(c.Args) > 0 {
			args := make([]string, len(c.Args))
			for i, a := range c.Args {
				args[i] = fmt.Sprintf("{Index: %d, Name: %s}", a.Index, strconv.Quote(a.Name))
			}
			fields = append(fields, "Args: []queryir.Arg{"+strings.Join(args, ", ")+"}")
		}
		if len(c.Literals) > 0 {
			lits := make([]string, len(c.Literals))
			for i, v := range c.Literals {
				lit, err := goValue(v)
				if err != nil {
					return "", fmt.Errorf("clause on %s: %w", c.Field, err)
				}
				lits[i] = lit
			}
			fields = append(fields, "Literals: []any{"+strings.Join(lits, ", ")+"}")
		}
		if c.Wildcard != queryir.WildcardNone {
			w, ok := wildcardIdents[c.Wildcard]
			if !ok {
				return "", fmt.Errorf("clause on %s: unknown wildcard %q", c.Field, c.Wildcard)
			}
			fields = append(fields, "Wildcard: "+w)
		}
		if c.Fold {
			fields = append(fields, "Fold: true")
		}
		if c.Expand {
			fields = append(fields, "Expand: true")
		}
		sb.WriteString("{" + strings.Join(fields, ", ") + "},\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}

func goForced(forced []querysql.ForcedValue) string {
	values := make([]string, len(forced))
	for i, f := range forced {
		values[i] = fmt.Sprintf("{Name: %s, Field: %s, Value: %s}",
			strconv.Quote(f.Name), strconv.Quote(f.Field), strconv.Quote(f.Value))
	}
	return "[]querysql.ForcedValue{" + strings.Join(values, ", ") + "}"
}

// goValue renders a clause literal. Only the scalar kinds lowering
// produces are supported.
func goValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "nil", nil
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return strconv.Quote(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return "int64(" + strconv.FormatInt(x, 10) + ")", nil
	case float64:
		return "float64(" + strconv.FormatFloat(x, 'g', -1, 64) + ")", nil
	default:
		return "", fmt.Errorf("cannot render literal of type %T", v)
	}
}
