package pql

import (
	"strings"

	"github.com/pinotql/pinotql/internal/plan"
)

// arithmeticOps maps host-engine arithmetic names to PQL operators.
// Only the aggregation-aware converter accepts these; the store cannot
// evaluate arithmetic in plain selection projections.
var arithmeticOps = map[string]string{
	"+":        "+",
	"add":      "+",
	"-":        "-",
	"subtract": "-",
	"*":        "*",
	"multiply": "*",
	"/":        "/",
	"divide":   "/",
}

// convertProject translates a plain projection expression. Only identity
// projections (variable references) and literal columns are expressible;
// computed projections abort the pushdown.
func convertProject(e plan.Expression, lookup selectionLookup) (Selection, error) {
	switch expr := e.(type) {
	case *plan.VariableExpr:
		sel, ok := lookup(expr.Name)
		if !ok {
			return Selection{}, unsupportedf(expr, "variable %s not found in input selections", expr.Name)
		}
		return sel, nil
	case *plan.ConstantExpr:
		text, err := renderConstant(expr)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Definition: text, Origin: OriginLiteral}, nil
	default:
		return Selection{}, unsupportedf(e, "unsupported projection expression %T", e)
	}
}

// convertAggregationProject translates a projection feeding an enclosing
// aggregation. On top of the plain subset it accepts binary arithmetic
// and cast passthrough, because the store evaluates those inside
// aggregate call arguments.
func convertAggregationProject(e plan.Expression, lookup selectionLookup) (Selection, error) {
	switch expr := e.(type) {
	case *plan.VariableExpr, *plan.ConstantExpr:
		return convertProject(e, lookup)
	case *plan.CallExpr:
		name := strings.ToLower(expr.Name)
		if op, ok := arithmeticOps[name]; ok {
			if len(expr.Args) != 2 {
				return Selection{}, unsupportedf(expr, "arithmetic %s expects 2 arguments, got %d", expr.Name, len(expr.Args))
			}
			left, err := convertAggregationProject(expr.Args[0], lookup)
			if err != nil {
				return Selection{}, err
			}
			right, err := convertAggregationProject(expr.Args[1], lookup)
			if err != nil {
				return Selection{}, err
			}
			return Selection{
				Definition: "(" + left.Definition + " " + op + " " + right.Definition + ")",
				Origin:     OriginDerived,
			}, nil
		}
		if name == "cast" && len(expr.Args) == 1 {
			// The store coerces types itself; a bare cast passes its
			// operand through with its origin intact.
			return convertAggregationProject(expr.Args[0], lookup)
		}
		return Selection{}, unsupportedf(expr, "projection function '%s' not supported inside aggregation", expr.Name)
	default:
		return Selection{}, unsupportedf(e, "unsupported projection expression %T", e)
	}
}
