package harness

import (
	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/repository"
)

// CallResult is the observable outcome of one call on one backend.
type CallResult struct {
	Method  string     `json:"method"`
	Subject ir.Subject `json:"subject"`

	// IDs and Rows are the materialized rows of a find call, in order.
	IDs  []string         `json:"ids,omitempty"`
	Rows []map[string]any `json:"rows,omitempty"`

	// Count is the page total of a page find, the result of a count and
	// the number of removed documents of a delete.
	Count int64 `json:"count,omitempty"`

	Exists bool   `json:"exists,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the backends agree and every expectation and
	// assertion holds.
	Pass bool `json:"pass"`

	// Trace holds the object backend's call results in call order.
	Trace []CallResult `json:"trace"`

	// Backends holds the call results of every backend.
	Backends map[repository.Backend][]CallResult `json:"backends"`

	// Errors describes every failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final document count of every seeded namespace on
	// the object backend.
	State map[string]int64 `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []CallResult{},
		Backends: make(map[repository.Backend][]CallResult),
		Errors:   []string{},
		State:    make(map[string]int64),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
