package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"reflect"
	"strconv"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/repository"
	"github.com/roach88/docrepo/internal/store"
	"github.com/roach88/docrepo/internal/testutil"
)

// Backends are run in this order; the first one's results are the trace.
var Backends = []repository.Backend{repository.BackendObject, repository.BackendText}

// Harness executes one scenario.
type Harness struct {
	catalog *compiler.Catalog
	logger  *slog.Logger
}

// Run loads the scenario's descriptors and executes it.
//
// Execution flow:
//  1. Load and compile the descriptors in scenario.Specs
//  2. For each backend: seed a fresh in-memory store, run every call,
//     evaluate the final-state assertions
//  3. Compare the backends call by call
//  4. Check expect clauses and statement assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, errs := compiler.Load(scenario.Specs, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs: %w", errs[0])
	}
	return RunCatalog(ctx, scenario, cat)
}

// RunCatalog executes scenario against an already loaded catalog.
func RunCatalog(ctx context.Context, scenario *Scenario, cat *compiler.Catalog) (*Result, error) {
	h := &Harness{
		catalog: cat,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	result := NewResult()

	var state, statements []Assertion
	for _, a := range scenario.Assertions {
		if a.Type == AssertStatement {
			statements = append(statements, a)
		} else {
			state = append(state, a)
		}
	}

	for _, b := range Backends {
		calls, st, err := h.runBackend(ctx, b, scenario)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", b, err)
		}
		result.Backends[b] = calls
		for _, msg := range EvaluateAssertions(&AssertionContext{Ctx: ctx, Store: st}, state) {
			result.AddError(fmt.Sprintf("%s backend: %s", b, msg))
		}
		if b == Backends[0] {
			for _, set := range scenario.Seed {
				n, err := st.Count(ctx, set.Namespace)
				if err != nil {
					st.Close()
					return nil, err
				}
				result.State[set.Namespace] = n
			}
		}
		st.Close()
	}
	result.Trace = result.Backends[Backends[0]]

	h.compareBackends(result)
	for i, c := range scenario.Calls {
		for _, msg := range checkExpect(c, result.Trace[i]) {
			result.AddError(fmt.Sprintf("calls[%d] %s: %s", i, c.Method, msg))
		}
	}
	for _, msg := range EvaluateAssertions(&AssertionContext{Ctx: ctx, Catalog: cat}, statements) {
		result.AddError(msg)
	}
	return result, nil
}

// runBackend seeds a fresh store and runs every call on it. The caller
// closes the returned store.
func (h *Harness) runBackend(ctx context.Context, b repository.Backend, scenario *Scenario) ([]CallResult, *store.Store, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("doc")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	for _, set := range scenario.Seed {
		for i, doc := range set.Documents {
			if _, err := st.Upsert(ctx, set.Namespace, maps.Clone(doc)); err != nil {
				st.Close()
				return nil, nil, fmt.Errorf("seed %s[%d]: %w", set.Namespace, i, err)
			}
		}
	}

	repo := repository.New(st, h.catalog, repository.WithBackend(b))
	calls := make([]CallResult, 0, len(scenario.Calls))
	for i, c := range scenario.Calls {
		r := h.call(ctx, repo, c)
		h.logger.Debug("call finished",
			"backend", b,
			"index", i,
			"method", c.Method,
			"rows", len(r.IDs),
			"error", r.Error,
		)
		calls = append(calls, r)
	}
	return calls, st, nil
}

func (h *Harness) call(ctx context.Context, repo *repository.Repository, c Call) CallResult {
	res := CallResult{Method: c.Method}
	m, ok := h.catalog.Method(c.Method)
	if !ok {
		res.Error = fmt.Sprintf("unknown method %q", c.Method)
		return res
	}
	res.Subject = m.Tree.Subject

	v, err := repo.Execute(ctx, c.Method, c.Page, c.Args...)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	switch val := v.(type) {
	case int64:
		res.Count = val
	case bool:
		res.Exists = val
	default:
		rows, total, err := flatten(v)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Count = total
		idField := h.catalog.Entities[m.Entity].IDField
		for _, row := range rows {
			if id, ok := row[idField]; ok {
				res.IDs = append(res.IDs, fmt.Sprint(id))
			}
			res.Rows = append(res.Rows, normalize(row).(map[string]any))
		}
	}
	return res
}

// flatten reads every row out of a materialized find result. total is the
// page total for pages and 0 otherwise.
func flatten(v any) (rows []map[string]any, total int64, err error) {
	type row = map[string]any
	switch val := v.(type) {
	case []row:
		return val, 0, nil
	case row:
		return []row{val}, 0, nil
	case *row:
		if val == nil {
			return nil, 0, nil
		}
		return []row{*val}, 0, nil
	case materialize.Page[row]:
		return val.Items, val.Total, nil
	case materialize.Slice[row]:
		return val.Items, 0, nil
	case *materialize.Stream[row]:
		defer val.Close()
		for r, err := range val.All() {
			if err != nil {
				return nil, 0, err
			}
			rows = append(rows, r)
		}
		return rows, 0, nil
	case *materialize.Iterator[row]:
		defer val.Close()
		for val.Next() {
			rows = append(rows, val.Value())
		}
		return rows, 0, val.Err()
	default:
		return nil, 0, fmt.Errorf("unexpected result type %T", v)
	}
}

// normalize makes decoded JSON comparable with YAML values and hashable
// as canonical JSON: integral numbers become int64, other floats their
// shortest text, null map entries are dropped and nulls in lists become
// the string "null".
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			if e != nil {
				out[k] = normalize(e)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			if e == nil {
				out[i] = "null"
				continue
			}
			out[i] = normalize(e)
		}
		return out
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return int64(val)
	default:
		return v
	}
}

// compareBackends records a failure for every call whose results differ
// between backends. Error texts may differ; only failing versus
// succeeding is compared.
func (h *Harness) compareBackends(result *Result) {
	base := result.Backends[Backends[0]]
	for _, b := range Backends[1:] {
		other := result.Backends[b]
		for i := range base {
			if agree(base[i], other[i]) {
				continue
			}
			result.AddError(fmt.Sprintf("calls[%d] %s: backends disagree: %s=%s %s=%s",
				i, base[i].Method, Backends[0], describe(base[i]), b, describe(other[i])))
		}
	}
}

func agree(a, b CallResult) bool {
	if (a.Error == "") != (b.Error == "") {
		return false
	}
	if a.Error != "" {
		return true
	}
	a.Error, b.Error = "", ""
	return reflect.DeepEqual(a, b)
}

func describe(r CallResult) string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", r)
	}
	return string(data)
}
