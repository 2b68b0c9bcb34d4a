// Package queryir is the single query-compilation protocol shared by
// docrepo's two backends.
//
// ARCHITECTURE:
//
// A method's predicate tree is lowered once into typed clauses and walked
// once. The walk drives an Emitter; each backend implements Emitter:
//
//	[ir.MethodSpec + ir.EntityMeta] → [Plan] → Compile → [queryobj Emitter] → store.Query
//	                                                    → [querysql Emitter] → statement text
//
// Because both backends receive the identical event sequence, they cannot
// diverge on condition choice, bracket placement, sort order or
// limit/offset arithmetic. Tests record the sequence with a recording
// emitter and compare backends against it.
//
// BRACKETS:
//
// The first OR-group is emitted inline. Every later group is emitted as
//
//	Or() OpenBracket() <and-chain> CloseBracket()
//
// so a negated clause inside a chain never binds across an OR. The walk runs
// over an arena of nodes linked by index (parent, first child, next sibling)
// with an explicit frame stack instead of recursion.
//
// LOWERING:
//
// Each ir.Part becomes one Clause carrying a store condition primitive:
//
//	EQ/NEQ         → EQ (NEQ negated)
//	GT GE LT LE    → GT GE LT LE
//	BETWEEN        → RANGE (two arguments)
//	IN/NOT_IN      → SET (argument expanded to a list)
//	IS_NULL        → EMPTY
//	IS_NOT_NULL    → ANY
//	LIKE family    → LIKE with a wildcard-decorated argument,
//	                 or SET when the property is a collection
//	TRUE/FALSE     → EQ against a literal boolean
//
// Lowering errors are CompileErrors and are raised before any event is
// emitted, so a failed compile never leaves a half-built query behind.
package queryir
