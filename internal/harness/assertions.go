package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/querysql"
	"github.com/roach88/docrepo/internal/store"
)

// AssertionError is returned when an assertion or expectation fails.
type AssertionError struct {
	Type     string // assertion type or expectation field
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides what assertions are evaluated against.
// namespace_count and document need Store; statement needs Catalog.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Catalog *compiler.Catalog
}

// EvaluateAssertions evaluates all assertions and returns one message per
// failure.
func EvaluateAssertions(actx *AssertionContext, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertNamespaceCount, AssertDocument:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("%s requires a store", a.Type)
			} else if a.Type == AssertNamespaceCount {
				err = assertNamespaceCount(actx.Ctx, actx.Store, a)
			} else {
				err = assertDocument(actx.Ctx, actx.Store, a)
			}
		case AssertStatement:
			if actx == nil || actx.Catalog == nil {
				err = fmt.Errorf("statement requires a catalog")
			} else {
				err = assertStatement(actx.Catalog, a)
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errors
}

func assertNamespaceCount(ctx context.Context, st *store.Store, a Assertion) error {
	n, err := st.Count(ctx, a.Namespace)
	if err != nil {
		return fmt.Errorf("count %s: %w", a.Namespace, err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertNamespaceCount,
			Expected: fmt.Sprintf("%d documents in %s", a.Count, a.Namespace),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertDocument(ctx context.Context, st *store.Store, a Assertion) error {
	doc, ok, err := st.Get(ctx, a.Namespace, a.ID)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", a.Namespace, a.ID, err)
	}
	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertDocument,
				Expected: fmt.Sprintf("%s/%s to be absent", a.Namespace, a.ID),
				Actual:   "document exists",
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertDocument,
			Expected: fmt.Sprintf("%s/%s with %v", a.Namespace, a.ID, a.Expect),
			Actual:   "no such document",
		}
	}
	m, err := doc.Map()
	if err != nil {
		return err
	}
	actual := normalize(m).(map[string]any)
	if !matchRow(actual, a.Expect) {
		return &AssertionError{
			Type:     AssertDocument,
			Expected: fmt.Sprintf("%s/%s with %v", a.Namespace, a.ID, a.Expect),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

func assertStatement(cat *compiler.Catalog, a Assertion) error {
	m, ok := cat.Method(a.Method)
	if !ok {
		return fmt.Errorf("unknown method %q", a.Method)
	}
	plan, err := cat.Plan(m, nil)
	if err != nil {
		return err
	}
	st, err := querysql.Compile(plan)
	if err != nil {
		return err
	}
	if st.Text != a.Text {
		return &AssertionError{
			Type:     AssertStatement,
			Expected: fmt.Sprintf("%s to compile to %q", a.Method, a.Text),
			Actual:   fmt.Sprintf("%q", st.Text),
		}
	}
	return nil
}

// checkExpect compares one call's result with its expect clause.
func checkExpect(c Call, r CallResult) []string {
	e := c.Expect
	if e == nil {
		if r.Error != "" {
			return []string{fmt.Sprintf("unexpected error: %s", r.Error)}
		}
		return nil
	}
	if e.Error != "" {
		if !strings.Contains(r.Error, e.Error) {
			return []string{(&AssertionError{Type: "error", Expected: fmt.Sprintf("%q", e.Error), Actual: fmt.Sprintf("%q", r.Error)}).Error()}
		}
		return nil
	}
	if r.Error != "" {
		return []string{fmt.Sprintf("unexpected error: %s", r.Error)}
	}

	var failures []string
	fail := func(kind string, expected, actual any) {
		failures = append(failures, (&AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
		}).Error())
	}
	if e.IDs != nil && !reflect.DeepEqual(e.IDs, orEmpty(r.IDs)) {
		fail("ids", e.IDs, r.IDs)
	}
	if e.Rows != nil {
		if len(e.Rows) != len(r.Rows) {
			fail("rows", fmt.Sprintf("%d rows", len(e.Rows)), len(r.Rows))
		} else {
			for i := range e.Rows {
				if !matchRow(r.Rows[i], e.Rows[i]) {
					fail(fmt.Sprintf("rows[%d]", i), e.Rows[i], r.Rows[i])
				}
			}
		}
	}
	if e.Count != nil {
		n := r.Count
		if r.Subject == ir.SubjectFind && r.Count == 0 {
			n = int64(len(r.Rows))
		}
		if n != *e.Count {
			fail("count", *e.Count, n)
		}
	}
	if e.Exists != nil && *e.Exists != r.Exists {
		fail("exists", *e.Exists, r.Exists)
	}
	return failures
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// matchRow reports whether actual contains every expected key with an
// equal value. Extra keys in actual are ignored.
func matchRow(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a normalized actual value with a YAML value.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return reflect.DeepEqual(actual, normalize(expected))
}
