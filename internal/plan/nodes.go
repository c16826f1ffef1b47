package plan

// Variable identifies one logical output column of a plan node.
// Identity is by name; the host engine guarantees uniqueness within a
// fragment.
type Variable string

// Node represents one operator in a pushdown plan fragment.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the translator.
type Node interface {
	planNode()
}

// TableScanNode is the leaf of every fragment: a scan over one physical
// table. Assignments maps each output variable to the physical column
// backing it.
type TableScanNode struct {
	Table       TableHandle
	Outputs     []Variable
	Assignments map[Variable]ColumnHandle
}

func (*TableScanNode) planNode() {}

// FilterNode applies a predicate to its source. Outputs may be a subset
// of the source outputs; columns outside it drop out of visibility.
type FilterNode struct {
	Source    Node
	Predicate Expression
	Outputs   []Variable
}

func (*FilterNode) planNode() {}

// Assignment binds one projected output variable to its defining
// expression.
type Assignment struct {
	Output Variable
	Expr   Expression
}

// ProjectNode computes a new output column set from its source. The
// assignment order defines the projected column order. Project is the
// only node that can rename or recombine column identities.
type ProjectNode struct {
	Source      Node
	Assignments []Assignment
}

func (*ProjectNode) planNode() {}

// Outputs returns the projected variables in assignment order.
func (n *ProjectNode) Outputs() []Variable {
	out := make([]Variable, len(n.Assignments))
	for i, a := range n.Assignments {
		out[i] = a.Output
	}
	return out
}

// AggregationColumn describes one output column of an aggregation: either
// a group-by key or an aggregate function call.
//
// Sealed interface - only GroupByColumn and AggregateColumn implement it.
type AggregationColumn interface {
	aggregationColumn()
}

// GroupByColumn carries a source column forward as a grouping key.
// Input must be a variable reference into the source's outputs.
type GroupByColumn struct {
	Input  Expression
	Output Variable
}

func (*GroupByColumn) aggregationColumn() {}

// AggregateColumn computes an aggregate function over the source.
type AggregateColumn struct {
	Call   *CallExpr
	Output Variable
}

func (*AggregateColumn) aggregationColumn() {}

// AggregationNode groups and aggregates its source. Partial marks a
// pre-merge (segment-local) aggregation step; those are never pushed
// down.
type AggregationNode struct {
	Source  Node
	Columns []AggregationColumn
	Partial bool
}

func (*AggregationNode) planNode() {}

// Outputs returns the aggregation output variables in column order.
func (n *AggregationNode) Outputs() []Variable {
	out := make([]Variable, 0, len(n.Columns))
	for _, c := range n.Columns {
		switch col := c.(type) {
		case *GroupByColumn:
			out = append(out, col.Output)
		case *AggregateColumn:
			out = append(out, col.Output)
		}
	}
	return out
}

// LimitNode caps the row count. Partial marks a pre-merge limit.
type LimitNode struct {
	Source  Node
	Count   int64
	Partial bool
	Outputs []Variable
}

func (*LimitNode) planNode() {}

// TopNStep distinguishes the single global ranking step from the
// partial/final halves of a distributed top-N.
type TopNStep int

const (
	// TopNSingle is the one-shot global ranking step.
	TopNSingle TopNStep = iota
	// TopNPartial is the per-partition pre-merge step.
	TopNPartial
	// TopNFinal merges partial results.
	TopNFinal
)

func (s TopNStep) String() string {
	switch s {
	case TopNSingle:
		return "SINGLE"
	case TopNPartial:
		return "PARTIAL"
	case TopNFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

// OrderingTerm is one key of a top-N ordering.
type OrderingTerm struct {
	Variable   Variable
	Descending bool
	NullsFirst bool
}

// TopNNode returns the first Count rows under OrderBy. Only the SINGLE
// step is eligible for pushdown.
type TopNNode struct {
	Source  Node
	Count   int64
	OrderBy []OrderingTerm
	Step    TopNStep
	Outputs []Variable
}

func (*TopNNode) planNode() {}
