package plan

// Expression represents a relational scalar expression: a predicate, a
// projection definition, or an aggregate call argument.
//
// Sealed interface - only VariableExpr, ConstantExpr and CallExpr
// implement it. Translators type-switch exhaustively and reject anything
// they do not recognize.
type Expression interface {
	exprNode()
}

// VariableExpr references an input column by its variable identity.
type VariableExpr struct {
	Name Variable
}

func (*VariableExpr) exprNode() {}

// ConstantKind tags how a constant's textual value should be rendered.
type ConstantKind int

const (
	// ConstantNumber renders bare: 5, 0.5.
	ConstantNumber ConstantKind = iota
	// ConstantString renders single-quoted with '' escaping.
	ConstantString
	// ConstantBool renders as true/false.
	ConstantBool
	// ConstantNull renders as null.
	ConstantNull
)

// ConstantExpr is a compile-time literal. Value holds the literal's
// canonical textual form as produced by the host engine; for strings it
// is the raw (unquoted) text.
type ConstantExpr struct {
	Value string
	Kind  ConstantKind
}

func (*ConstantExpr) exprNode() {}

// CallExpr is a function call: comparison and logical operators in
// filters, arithmetic in projections, aggregate functions in
// aggregations. Name is the function's display name, matched
// case-insensitively.
type CallExpr struct {
	Name string
	Args []Expression
}

func (*CallExpr) exprNode() {}
