package pql

import (
	"strings"

	"github.com/pinotql/pinotql/internal/plan"
)

// selectionLookup resolves an input variable to its current selection.
type selectionLookup func(plan.Variable) (Selection, bool)

// binaryComparisons maps host-engine comparison names to PQL operators.
var binaryComparisons = map[string]string{
	"=":  "=",
	"eq": "=",
	"<>": "<>",
	"!=": "<>",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// convertFilter translates a predicate expression into PQL filter text.
// The supported subset is comparisons, AND/OR/NOT, IN and BETWEEN over
// variable references and literals; anything else aborts the pushdown.
func convertFilter(e plan.Expression, lookup selectionLookup) (string, error) {
	switch expr := e.(type) {
	case *plan.VariableExpr:
		sel, ok := lookup(expr.Name)
		if !ok {
			return "", unsupportedf(expr, "variable %s not found in input selections", expr.Name)
		}
		return sel.Definition, nil
	case *plan.ConstantExpr:
		return renderConstant(expr)
	case *plan.CallExpr:
		return convertFilterCall(expr, lookup)
	default:
		return "", unsupportedf(e, "unsupported filter expression %T", e)
	}
}

func convertFilterCall(call *plan.CallExpr, lookup selectionLookup) (string, error) {
	name := strings.ToLower(call.Name)

	if op, ok := binaryComparisons[name]; ok {
		if len(call.Args) != 2 {
			return "", unsupportedf(call, "comparison %s expects 2 arguments, got %d", call.Name, len(call.Args))
		}
		left, err := convertFilter(call.Args[0], lookup)
		if err != nil {
			return "", err
		}
		right, err := convertFilter(call.Args[1], lookup)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + op + " " + right + ")", nil
	}

	switch name {
	case "and", "or":
		if len(call.Args) < 2 {
			return "", unsupportedf(call, "%s expects at least 2 arguments", call.Name)
		}
		parts := make([]string, len(call.Args))
		for i, arg := range call.Args {
			part, err := convertFilter(arg, lookup)
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(name)+" ") + ")", nil
	case "not":
		if len(call.Args) != 1 {
			return "", unsupportedf(call, "NOT expects 1 argument, got %d", len(call.Args))
		}
		inner, err := convertFilter(call.Args[0], lookup)
		if err != nil {
			return "", err
		}
		return "(NOT " + inner + ")", nil
	case "in":
		if len(call.Args) < 2 {
			return "", unsupportedf(call, "IN expects a needle and at least one candidate")
		}
		needle, err := convertFilter(call.Args[0], lookup)
		if err != nil {
			return "", err
		}
		candidates := make([]string, len(call.Args)-1)
		for i, arg := range call.Args[1:] {
			candidate, err := convertFilter(arg, lookup)
			if err != nil {
				return "", err
			}
			candidates[i] = candidate
		}
		return "(" + needle + " IN (" + strings.Join(candidates, ", ") + "))", nil
	case "between":
		if len(call.Args) != 3 {
			return "", unsupportedf(call, "BETWEEN expects 3 arguments, got %d", len(call.Args))
		}
		value, err := convertFilter(call.Args[0], lookup)
		if err != nil {
			return "", err
		}
		low, err := convertFilter(call.Args[1], lookup)
		if err != nil {
			return "", err
		}
		high, err := convertFilter(call.Args[2], lookup)
		if err != nil {
			return "", err
		}
		return "(" + value + " BETWEEN " + low + " AND " + high + ")", nil
	default:
		return "", unsupportedf(call, "filter function '%s' not supported", call.Name)
	}
}

// renderConstant renders a literal in PQL syntax. The store has no null
// literal, so null constants abort the pushdown.
func renderConstant(c *plan.ConstantExpr) (string, error) {
	switch c.Kind {
	case plan.ConstantNumber:
		return c.Value, nil
	case plan.ConstantString:
		return "'" + strings.ReplaceAll(c.Value, "'", "''") + "'", nil
	case plan.ConstantBool:
		return c.Value, nil
	case plan.ConstantNull:
		return "", unsupportedf(c, "null literals cannot be pushed down")
	default:
		return "", unsupportedf(c, "unknown constant kind %d", c.Kind)
	}
}
