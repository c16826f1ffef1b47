package pql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pinotql/pinotql/internal/plan"
)

// unaryAggregationMap maps host-engine unary aggregate names to their
// PQL counterparts. Initialized once; read-only thereafter, so it is
// shared across concurrent translations without synchronization.
var unaryAggregationMap = map[string]string{
	"min":             "min",
	"max":             "max",
	"avg":             "avg",
	"sum":             "sum",
	"approx_distinct": "DISTINCTCOUNTHLL",
}

// convertAggregationCall turns an aggregate function call into PQL
// aggregate syntax, resolving argument variables through the input
// selections. Pure; no side effects.
func convertAggregationCall(call *plan.CallExpr, lookup selectionLookup) (string, error) {
	name := strings.ToLower(call.Name)
	switch name {
	case "count":
		switch len(call.Args) {
		case 0:
			return "count(*)", nil
		case 1:
			arg, err := argumentSelection(call, call.Args[0], lookup)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("count(%s)", arg.Definition), nil
		default:
			return "", unsupportedf(call, "count with %d arguments not supported", len(call.Args))
		}
	case "approx_percentile":
		return convertApproxPercentile(call, lookup)
	default:
		if pqlName, ok := unaryAggregationMap[name]; ok && len(call.Args) == 1 {
			arg, err := argumentSelection(call, call.Args[0], lookup)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s(%s)", pqlName, arg.Definition), nil
		}
		return "", unsupportedf(call, "aggregation function '%s' not supported yet", call.Name)
	}
}

// convertApproxPercentile maps approx_percentile(x, fraction) onto the
// store's PERCENTILEEST<percent> estimator. The fraction must be a
// compile-time constant in [0, 1] whose percentage form is an exact
// integer; it may arrive either as a literal or as a variable whose
// selection origin is LITERAL (a literal renamed by an earlier stage).
func convertApproxPercentile(call *plan.CallExpr, lookup selectionLookup) (string, error) {
	if len(call.Args) != 2 {
		return "", unsupportedf(call, "approx_percentile expects 2 arguments, got %d", len(call.Args))
	}

	var fraction string
	switch arg := call.Args[1].(type) {
	case *plan.ConstantExpr:
		fraction = arg.Value
	case *plan.VariableExpr:
		sel, ok := lookup(arg.Name)
		if !ok {
			return "", unsupportedf(call, "variable %s not found in input selections", arg.Name)
		}
		if sel.Origin != OriginLiteral {
			return "", unsupportedf(call, "approx_percentile fraction must be a literal, got origin %s", sel.Origin)
		}
		fraction = sel.Definition
	default:
		return "", unsupportedf(call, "approx_percentile fraction must be a constant or a variable, got %T", call.Args[1])
	}

	percentile, err := validPercentile(fraction)
	if err != nil {
		return "", err
	}

	arg, err := argumentSelection(call, call.Args[0], lookup)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PERCENTILEEST%d(%s)", percentile, arg.Definition), nil
}

// validPercentile parses a fraction in [0, 1] and converts it to an
// integer percentage. Fractions whose percentage form is not an exact
// integer are rejected; the store's estimator only exists at whole
// percentiles.
func validPercentile(fraction string) (int, error) {
	f, err := strconv.ParseFloat(fraction, 64)
	if err != nil {
		return 0, unsupportedf(nil, "cannot parse approx_percentile fraction from input %q", fraction)
	}
	if f < 0 || f > 1 {
		return 0, invalidArgumentf("percentile must be between 0 and 1, got %s", fraction)
	}
	percent := f * 100.0
	if percent != math.Floor(percent) {
		return 0, unsupportedf(nil, "approx_percentile fraction %s is not an exact percent", fraction)
	}
	return int(percent), nil
}

// argumentSelection resolves an aggregate call argument, which must be a
// plain variable reference into the input selections.
func argumentSelection(call *plan.CallExpr, arg plan.Expression, lookup selectionLookup) (Selection, error) {
	v, ok := arg.(*plan.VariableExpr)
	if !ok {
		return Selection{}, unsupportedf(call, "expected a variable reference but got %T", arg)
	}
	sel, ok := lookup(v.Name)
	if !ok {
		return Selection{}, unsupportedf(call, "variable %s not found in input selections", v.Name)
	}
	return sel, nil
}
