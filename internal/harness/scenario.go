package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docrepo/internal/ir"
)

// Scenario is a seeded dataset plus the calls to run against it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Specs is the descriptor directory. LoadScenario resolves it relative
	// to the scenario file.
	Specs string `yaml:"specs"`

	// Seed is inserted in order before the first call.
	Seed []SeedSet `yaml:"seed,omitempty"`

	Calls []Call `yaml:"calls"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedSet is a list of documents for one namespace.
type SeedSet struct {
	Namespace string           `yaml:"namespace"`
	Documents []map[string]any `yaml:"documents"`
}

// Call invokes one declared method.
type Call struct {
	Method string          `yaml:"method"`
	Args   []any           `yaml:"args,omitempty"`
	Page   *ir.PageRequest `yaml:"page,omitempty"`

	// Expect is checked against the object backend's result. If nil, only
	// backend agreement is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the result of a call. Unset fields are not checked.
type Expect struct {
	// IDs are the ids of the returned rows, in order.
	IDs []string `yaml:"ids,omitempty"`

	// Rows are matched in order; each is a subset of the returned row.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the number of rows of a find, the page total of a page find
	// or the numeric result of a count or delete.
	Count *int64 `yaml:"count,omitempty"`

	Exists *bool `yaml:"exists,omitempty"`

	// Error is a substring of the expected error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state or compiled statements.
type Assertion struct {
	// Type is one of namespace_count, document or statement.
	Type string `yaml:"type"`

	// Namespace and Count are used by namespace_count; Namespace and ID by
	// document.
	Namespace string `yaml:"namespace,omitempty"`
	Count     int64  `yaml:"count,omitempty"`
	ID        string `yaml:"id,omitempty"`

	// Expect is a subset of the document's fields (document).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that the document does not exist (document).
	Absent bool `yaml:"absent,omitempty"`

	// Method and Text are used by statement.
	Method string `yaml:"method,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertNamespaceCount = "namespace_count"
	AssertDocument       = "document"
	AssertStatement      = "statement"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly. A relative specs path is resolved against
// the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs is required")
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("at least one call is required")
	}
	for i, set := range s.Seed {
		if set.Namespace == "" {
			return fmt.Errorf("seed[%d]: namespace is required", i)
		}
	}
	for i, c := range s.Calls {
		if c.Method == "" {
			return fmt.Errorf("calls[%d]: method is required", i)
		}
		if c.Page != nil && (c.Page.Size <= 0 || c.Page.Index < 0) {
			return fmt.Errorf("calls[%d]: page needs a positive size and a non-negative index", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Type {
	case AssertNamespaceCount:
		if a.Namespace == "" {
			return fmt.Errorf("assertions[%d]: namespace is required for namespace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for namespace_count", index)
		}
	case AssertDocument:
		if a.Namespace == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: namespace and id are required for document", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for document", index)
		}
	case AssertStatement:
		if a.Method == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: method and text are required for statement", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
