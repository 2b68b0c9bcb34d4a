package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docrepo/internal/ir"
)

// Snapshot captures the object backend's results of a scenario.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Calls        []CallResult `json:"calls"`
}

// toCanonicalMap converts s to the types ir.MarshalCanonical accepts.
func (s *Snapshot) toCanonicalMap() map[string]any {
	calls := make([]any, len(s.Calls))
	for i, c := range s.Calls {
		m := map[string]any{
			"method":  c.Method,
			"subject": string(c.Subject),
		}
		if len(c.IDs) > 0 {
			m["ids"] = c.IDs
		}
		if len(c.Rows) > 0 {
			rows := make([]any, len(c.Rows))
			for j, r := range c.Rows {
				rows[j] = r
			}
			m["rows"] = rows
		}
		if c.Count != 0 {
			m["count"] = c.Count
		}
		if c.Subject == ir.SubjectExists {
			m["exists"] = c.Exists
		}
		if c.Error != "" {
			m["error"] = c.Error
		}
		calls[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"calls":         calls,
	}
}

// MarshalSnapshot renders the canonical JSON snapshot of result.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: name, Calls: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its results against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
