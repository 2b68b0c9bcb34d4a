// Package ir provides the shared data model for docrepo's query compilers.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// The model has three groups of types:
//   - Predicate trees: Part, OrGroup, PartTree and the OperatorKind enum.
//     A tree is an ordered list of OR-groups, each an AND-chain of parts.
//   - Directives: SortSpec, PageRequest, SelectSpec, JoinSpec and the store
//     level Condition primitives the operators compile to.
//   - Metadata: EntityMeta, Reference and IndexDescriptor describing the
//     namespaces a tree is compiled against.
//
// Key design constraints:
//   - Trees are immutable once built; compilers never mutate their input.
//   - All JSON tags use snake_case.
//   - Statement identity uses canonical JSON (see MarshalCanonical).
package ir
