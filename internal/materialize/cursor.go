// Package materialize turns a store cursor into the result shape a method
// declares: one value, optional, list, stream, page, slice or iterator.
//
// Every function that returns a finished value closes the cursor. StreamOf
// and Iter hand the cursor to the returned value, which closes it when
// iteration ends or when it is closed.
package materialize

import (
	"errors"
	"fmt"

	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/store"
)

// Cursor is a raw result stream. *store.Iterator implements it.
type Cursor interface {
	Next() bool
	Document() store.Document
	Err() error
	Close() error
	TotalCount() int64
	Aggregations() []ir.AggregationResult
}

var _ Cursor = (*store.Iterator)(nil)

var (
	// ErrCardinality matches every CardinalityError.
	ErrCardinality = errors.New("more than one result")

	// ErrNotFound is returned by One when the cursor is empty.
	ErrNotFound = errors.New("no result")
)

// CardinalityError reports a single-result query that produced more rows.
type CardinalityError struct {
	// Count is the number of rows read before giving up (at least 2).
	Count int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("expected at most one result, got %d or more", e.Count)
}

// Is makes errors.Is(err, ErrCardinality) hold.
func (e *CardinalityError) Is(target error) bool { return target == ErrCardinality }

// closeWith closes c and keeps the first error.
func closeWith(c Cursor, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close cursor: %w", cerr)
	}
}
