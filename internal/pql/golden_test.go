package pql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/pinotql/pinotql/internal/plan"
)

// Golden files pin the exact generated text: translation must stay
// byte-identical across refactors, because cached queries are compared
// and reused by fingerprint.
//
// To regenerate golden files, run:
//
//	go test ./internal/pql -update
func TestGenerate_Golden(t *testing.T) {
	tests := []struct {
		name string
		node plan.Node
	}{
		{
			name: "filter_project_aggregate",
			node: &plan.AggregationNode{
				Source: identityProject(&plan.FilterNode{
					Source:    scanNode("T", "a", "b"),
					Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("5")}},
					Outputs:   []plan.Variable{"a", "b"},
				}, "a", "b"),
				Columns: []plan.AggregationColumn{
					&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
					&plan.AggregateColumn{
						Call:   &plan.CallExpr{Name: "sum", Args: []plan.Expression{varExpr("b")}},
						Output: "s",
					},
				},
			},
		},
		{
			name: "distinct_values_padding",
			node: &plan.AggregationNode{
				Source: scanNode("T", "a"),
				Columns: []plan.AggregationColumn{
					&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
				},
			},
		},
		{
			name: "topn_selection",
			node: &plan.TopNNode{
				Source:  scanNode("T", "a", "b"),
				Count:   5,
				OrderBy: []plan.OrderingTerm{{Variable: "a", Descending: true}},
				Step:    plan.TopNSingle,
				Outputs: []plan.Variable{"a", "b"},
			},
		},
		{
			name: "broker_scan_implicit_limit",
			node: scanNode("T", "a", "b"),
		},
		{
			name: "approx_distinct_by_city",
			node: &plan.AggregationNode{
				Source: scanNode("rides", "city", "driver"),
				Columns: []plan.AggregationColumn{
					&plan.GroupByColumn{Input: varExpr("city"), Output: "city"},
					&plan.AggregateColumn{
						Call:   &plan.CallExpr{Name: "approx_distinct", Args: []plan.Expression{varExpr("driver")}},
						Output: "drivers",
					},
				},
			},
		},
	}

	g := goldie.New(t)
	generator := NewGenerator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, ok := generator.Generate(tc.node, brokerSession())
			require.True(t, ok)
			g.Assert(t, tc.name, []byte(result.PQL.Query+"\n"))
		})
	}
}
