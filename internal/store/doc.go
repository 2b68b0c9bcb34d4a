// Package store is a document-namespace data store on SQLite.
//
// Each namespace is a table of JSON documents keyed by id:
//
//	<namespace>(id TEXT PRIMARY KEY, doc TEXT NOT NULL)
//
// Documents are queried through a fluent Query builder whose conditions are
// the store-level primitives of ir.Condition, evaluated against
// json_extract paths. The same Query can be built from statement text with
// ParseSQL, so text compiled ahead of time and queries built at run time
// execute identically.
//
// # Condition semantics
//
//   - EQ GT GE LT LE compare the property value
//   - RANGE is inclusive on both ends
//   - SET matches when the value, or any element of an array value, is in the list
//   - LIKE matches % and _ wildcards case-sensitively; \ escapes
//   - EMPTY matches null, missing and empty arrays; ANY is its complement
//
// Not negates the next condition or bracket. Precedence is NOT, then AND,
// then OR. Fold makes the next condition compare case-folded values.
//
// # Joins
//
// Inner joins filter: a document matches only if the joined namespace has
// a matching document. Left joins attach the matching documents of the
// joined namespace to each row under the declaring property.
//
// # Deterministic results
//
// Every query ends its ORDER BY with the insertion order of the documents,
// and aggregations are ordered by the first document of each group, so the
// same data always yields the same sequence.
//
// # Database configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
