package ir

// OperatorKind is the comparison a predicate part applies to its property.
type OperatorKind string

const (
	OpGreaterThan    OperatorKind = "GT"
	OpGreaterOrEqual OperatorKind = "GE"
	OpLessThan       OperatorKind = "LT"
	OpLessOrEqual    OperatorKind = "LE"
	OpEqual          OperatorKind = "EQ"
	OpNotEqual       OperatorKind = "NEQ"
	OpIn             OperatorKind = "IN"
	OpNotIn          OperatorKind = "NOT_IN"
	OpBetween        OperatorKind = "BETWEEN"
	OpIsNull         OperatorKind = "IS_NULL"
	OpIsNotNull      OperatorKind = "IS_NOT_NULL"
	OpStartsWith     OperatorKind = "STARTS_WITH"
	OpEndsWith       OperatorKind = "ENDS_WITH"
	OpContains       OperatorKind = "CONTAINS"
	OpNotContains    OperatorKind = "NOT_CONTAINS"
	OpLike           OperatorKind = "LIKE"
	OpNotLike        OperatorKind = "NOT_LIKE"
	OpTrue           OperatorKind = "TRUE"
	OpFalse          OperatorKind = "FALSE"
)

var operatorArity = map[OperatorKind]int{
	OpGreaterThan:    1,
	OpGreaterOrEqual: 1,
	OpLessThan:       1,
	OpLessOrEqual:    1,
	OpEqual:          1,
	OpNotEqual:       1,
	OpIn:             1,
	OpNotIn:          1,
	OpBetween:        2,
	OpIsNull:         0,
	OpIsNotNull:      0,
	OpStartsWith:     1,
	OpEndsWith:       1,
	OpContains:       1,
	OpNotContains:    1,
	OpLike:           1,
	OpNotLike:        1,
	OpTrue:           0,
	OpFalse:          0,
}

// Valid reports whether k is a known operator.
func (k OperatorKind) Valid() bool {
	_, ok := operatorArity[k]
	return ok
}

// Arity returns how many bound parameters a part with this operator consumes.
func (k OperatorKind) Arity() int {
	return operatorArity[k]
}

// IsLikeFamily reports whether k is one of the string pattern operators.
func (k OperatorKind) IsLikeFamily() bool {
	switch k {
	case OpStartsWith, OpEndsWith, OpContains, OpNotContains, OpLike, OpNotLike:
		return true
	}
	return false
}

// IsOrdering reports whether k compares magnitudes.
func (k OperatorKind) IsOrdering() bool {
	switch k {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpBetween:
		return true
	}
	return false
}

// IgnoreCase controls case folding for a predicate part.
type IgnoreCase string

const (
	IgnoreCaseNever        IgnoreCase = "NEVER"
	IgnoreCaseWhenPossible IgnoreCase = "WHEN_POSSIBLE"
	IgnoreCaseAlways       IgnoreCase = "ALWAYS"
)

// Part is a single typed predicate on a property path.
type Part struct {
	Path       string       `json:"path"`
	Operator   OperatorKind `json:"operator"`
	Negated    bool         `json:"negated,omitempty"`
	IgnoreCase IgnoreCase   `json:"ignore_case,omitempty"`
}

// OrGroup is an AND-chain of parts. Groups are joined with OR.
type OrGroup []Part

// Subject is what a query method does with the rows it selects.
type Subject string

const (
	SubjectFind   Subject = "find"
	SubjectCount  Subject = "count"
	SubjectExists Subject = "exists"
	SubjectDelete Subject = "delete"
)

// PartTree is the parsed form of a query method.
type PartTree struct {
	Subject  Subject    `json:"subject"`
	Distinct bool       `json:"distinct,omitempty"`
	Groups   []OrGroup  `json:"groups"`
	Sort     []SortSpec `json:"sort,omitempty"`

	// MaxResults is the fixed result cap of a "first N" method (0 = none).
	MaxResults int `json:"max_results,omitempty"`
}

// ParamCount returns the number of bound values the tree consumes.
func (t PartTree) ParamCount() int {
	n := 0
	for _, g := range t.Groups {
		for _, p := range g {
			n += p.Operator.Arity()
		}
	}
	return n
}

// Condition is a store-level condition primitive.
type Condition string

const (
	CondEq    Condition = "EQ"
	CondGt    Condition = "GT"
	CondGe    Condition = "GE"
	CondLt    Condition = "LT"
	CondLe    Condition = "LE"
	CondRange Condition = "RANGE"
	CondSet   Condition = "SET"
	CondLike  Condition = "LIKE"
	CondEmpty Condition = "EMPTY" // is null
	CondAny   Condition = "ANY"   // is not null
)

// SortSpec orders results by one field.
// Values, when set, force the listed values first in the given order.
type SortSpec struct {
	Field  string   `json:"field"`
	Desc   bool     `json:"desc,omitempty"`
	Values []string `json:"values,omitempty"`
}

// PageRequest selects one page of results. Index is zero based.
type PageRequest struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// Offset returns the position of the first row of the page.
func (p PageRequest) Offset() int {
	return p.Index * p.Size
}

// JoinType is the kind of join synthesized for a reference.
type JoinType string

const (
	JoinLeft  JoinType = "LEFT"
	JoinInner JoinType = "INNER"
)

// JoinSpec is one join against another namespace.
type JoinSpec struct {
	Property        string     `json:"property"`
	TargetNamespace string     `json:"target_namespace"`
	LocalField      string     `json:"local_field"`
	RemoteField     string     `json:"remote_field"`
	Type            JoinType   `json:"type"`
	Condition       Condition  `json:"condition"`
	Sort            []SortSpec `json:"sort,omitempty"`
	Skip            bool       `json:"skip,omitempty"`
}

// SelectKind says which fields a query returns.
type SelectKind string

const (
	SelectAll      SelectKind = "all"
	SelectFields   SelectKind = "fields"
	SelectDistinct SelectKind = "distinct"
)

// SelectSpec is the field selection of a query.
type SelectSpec struct {
	Kind   SelectKind `json:"kind"`
	Fields []string   `json:"fields,omitempty"`
}

// AggregationType identifies an aggregation result.
type AggregationType string

const (
	AggregationFacet    AggregationType = "facet"
	AggregationDistinct AggregationType = "distinct"
)

// FacetGroup is one value combination of a facet with its row count.
type FacetGroup struct {
	Values []string `json:"values"`
	Count  int      `json:"count"`
}

// AggregationResult is an aggregation returned by the store with a result set.
type AggregationResult struct {
	Type      AggregationType `json:"type"`
	Fields    []string        `json:"fields"`
	Facets    []FacetGroup    `json:"facets,omitempty"`
	Distincts []string        `json:"distincts,omitempty"`
}

// Wrapper is the outer shape a caller wants results in.
type Wrapper string

const (
	WrapOne      Wrapper = "one"
	WrapOptional Wrapper = "optional"
	WrapList     Wrapper = "list"
	WrapStream   Wrapper = "stream"
	WrapPage     Wrapper = "page"
	WrapSlice    Wrapper = "slice"
	WrapIterator Wrapper = "iterator"
)

// Pageable reports whether the wrapper consumes a page request.
func (w Wrapper) Pageable() bool {
	return w == WrapPage || w == WrapSlice
}

// ProjectionKind is how each row is projected into the returned type.
type ProjectionKind string

const (
	ProjectEntity      ProjectionKind = "entity"
	ProjectInterface   ProjectionKind = "interface"
	ProjectConstructor ProjectionKind = "constructor"
)

// ReturnShape describes the caller-facing result of a method.
type ReturnShape struct {
	Wrapper    Wrapper        `json:"wrapper"`
	Projection ProjectionKind `json:"projection"`
	Fields     []string       `json:"fields,omitempty"`
}

// MethodSpec is a declared query method: a tree plus its result shape.
type MethodSpec struct {
	Name    string      `json:"name"`
	Entity  string      `json:"entity"`
	Tree    PartTree    `json:"tree"`
	Returns ReturnShape `json:"returns"`

	// Params names the bound values in consumption order.
	Params []string `json:"params,omitempty"`
}
