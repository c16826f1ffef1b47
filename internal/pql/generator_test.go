package pql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinotql/pinotql/internal/plan"
	"github.com/pinotql/pinotql/internal/session"
)

// scanNode builds a table scan whose variables map 1:1 onto physical
// columns of the same name.
func scanNode(table string, columns ...string) *plan.TableScanNode {
	outputs := make([]plan.Variable, len(columns))
	assignments := make(map[plan.Variable]plan.ColumnHandle, len(columns))
	for i, c := range columns {
		v := plan.Variable(c)
		outputs[i] = v
		assignments[v] = plan.ColumnHandle{ColumnName: c, Kind: plan.ColumnRegular}
	}
	return &plan.TableScanNode{
		Table:       plan.TableHandle{TableName: table},
		Outputs:     outputs,
		Assignments: assignments,
	}
}

func varExpr(name string) *plan.VariableExpr {
	return &plan.VariableExpr{Name: plan.Variable(name)}
}

func numExpr(value string) *plan.ConstantExpr {
	return &plan.ConstantExpr{Value: value, Kind: plan.ConstantNumber}
}

func identityProject(source plan.Node, names ...string) *plan.ProjectNode {
	assignments := make([]plan.Assignment, len(names))
	for i, n := range names {
		assignments[i] = plan.Assignment{Output: plan.Variable(n), Expr: varExpr(n)}
	}
	return &plan.ProjectNode{Source: source, Assignments: assignments}
}

func brokerSession() *session.Session {
	return session.Default()
}

func segmentSession() *session.Session {
	s := session.Default()
	s.PreferBrokerQueries = false
	return s
}

func TestGenerate_FilterProjectAggregate(t *testing.T) {
	// scan(T: a, b) -> filter(a > 5) -> project(a, b) -> sum(b) group by a
	filter := &plan.FilterNode{
		Source:    scanNode("T", "a", "b"),
		Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("5")}},
		Outputs:   []plan.Variable{"a", "b"},
	}
	agg := &plan.AggregationNode{
		Source: identityProject(filter, "a", "b"),
		Columns: []plan.AggregationColumn{
			&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
			&plan.AggregateColumn{
				Call:   &plan.CallExpr{Name: "sum", Args: []plan.Expression{varExpr("b")}},
				Output: "s",
			},
		},
	}

	result, ok := NewGenerator(nil).Generate(agg, brokerSession())
	require.True(t, ok)

	assert.Equal(t, "T", result.PQL.Table)
	assert.Equal(t, "SELECT a, sum(b) FROM T WHERE (a > 5) GROUP BY a TOP 10000", result.PQL.Query)
	assert.Equal(t, []int{0, 1}, result.PQL.ExpectedColumnIndices)
	assert.Equal(t, 1, result.PQL.GroupByClauseCount)
	assert.True(t, result.PQL.HasFilter)
	assert.False(t, result.PQL.IsShortQuery)
	assert.Equal(t, 1, result.Context.AggregationCount())
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() plan.Node {
		return &plan.AggregationNode{
			Source: scanNode("events", "city", "fare"),
			Columns: []plan.AggregationColumn{
				&plan.GroupByColumn{Input: varExpr("city"), Output: "city"},
				&plan.AggregateColumn{
					Call:   &plan.CallExpr{Name: "avg", Args: []plan.Expression{varExpr("fare")}},
					Output: "avg_fare",
				},
			},
		}
	}
	g := NewGenerator(nil)

	first, ok := g.Generate(build(), brokerSession())
	require.True(t, ok)
	second, ok := g.Generate(build(), brokerSession())
	require.True(t, ok)

	assert.Equal(t, first.PQL.Query, second.PQL.Query)
	assert.Equal(t, first.PQL.ExpectedColumnIndices, second.PQL.ExpectedColumnIndices)
}

func TestGenerate_GroupByWithoutAggregate(t *testing.T) {
	// A bare distinct-values query gets an invisible count(*) so the
	// grouped query form stays legal, and the index mapping hides it.
	agg := &plan.AggregationNode{
		Source: scanNode("T", "a"),
		Columns: []plan.AggregationColumn{
			&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
		},
	}

	result, ok := NewGenerator(nil).Generate(agg, brokerSession())
	require.True(t, ok)

	assert.Equal(t, "SELECT a, count(*) FROM T GROUP BY a TOP 10000", result.PQL.Query)
	assert.Equal(t, []int{0}, result.PQL.ExpectedColumnIndices)
	assert.Equal(t, 1, result.Context.AggregationCount())

	order := result.Context.SelectionOrder()
	require.Len(t, order, 2)
	assert.False(t, result.Context.IsHidden(order[0]))
	assert.True(t, result.Context.IsHidden(order[1]))
}

func TestGenerate_ApproxPercentileThroughRenamedLiteral(t *testing.T) {
	// The fraction arrives as a projected literal; its LITERAL origin
	// must survive the rename for the percentile to be accepted.
	project := &plan.ProjectNode{
		Source: scanNode("T", "b"),
		Assignments: []plan.Assignment{
			{Output: "b", Expr: varExpr("b")},
			{Output: "frac", Expr: numExpr("0.5")},
		},
	}
	agg := &plan.AggregationNode{
		Source: project,
		Columns: []plan.AggregationColumn{
			&plan.AggregateColumn{
				Call:   &plan.CallExpr{Name: "approx_percentile", Args: []plan.Expression{varExpr("b"), varExpr("frac")}},
				Output: "p",
			},
		},
	}

	result, ok := NewGenerator(nil).Generate(agg, brokerSession())
	require.True(t, ok)
	assert.Equal(t, "SELECT PERCENTILEEST50(b) FROM T TOP 10000", result.PQL.Query)
}

func TestGenerate_SelectionQueries(t *testing.T) {
	t.Run("plain scan gets implicit broker limit", func(t *testing.T) {
		result, ok := NewGenerator(nil).Generate(scanNode("T", "a", "b"), brokerSession())
		require.True(t, ok)
		assert.Equal(t, "SELECT a, b FROM T LIMIT 25000", result.PQL.Query)
		assert.False(t, result.PQL.IsShortQuery)
	})

	t.Run("explicit limit", func(t *testing.T) {
		limit := &plan.LimitNode{
			Source:  scanNode("T", "a", "b"),
			Count:   10,
			Outputs: []plan.Variable{"a", "b"},
		}
		result, ok := NewGenerator(nil).Generate(limit, brokerSession())
		require.True(t, ok)
		assert.Equal(t, "SELECT a, b FROM T LIMIT 10", result.PQL.Query)
		assert.True(t, result.PQL.IsShortQuery)
	})

	t.Run("top-n", func(t *testing.T) {
		topN := &plan.TopNNode{
			Source:  scanNode("T", "a", "b"),
			Count:   5,
			OrderBy: []plan.OrderingTerm{{Variable: "a", Descending: true}},
			Step:    plan.TopNSingle,
			Outputs: []plan.Variable{"a", "b"},
		}
		result, ok := NewGenerator(nil).Generate(topN, brokerSession())
		require.True(t, ok)
		assert.Equal(t, "SELECT a, b FROM T ORDER BY a DESC LIMIT 5", result.PQL.Query)
		assert.True(t, result.PQL.IsShortQuery)
	})

	t.Run("filter narrows visible outputs", func(t *testing.T) {
		filter := &plan.FilterNode{
			Source:    scanNode("T", "a", "b"),
			Predicate: &plan.CallExpr{Name: "=", Args: []plan.Expression{varExpr("b"), numExpr("1")}},
			Outputs:   []plan.Variable{"a"},
		}
		result, ok := NewGenerator(nil).Generate(filter, brokerSession())
		require.True(t, ok)
		assert.Equal(t, "SELECT a FROM T WHERE (b = 1) LIMIT 25000", result.PQL.Query)
		assert.Equal(t, []int{0}, result.PQL.ExpectedColumnIndices)
	})
}

func TestGenerate_Rejections(t *testing.T) {
	groupBySum := func(source plan.Node) *plan.AggregationNode {
		return &plan.AggregationNode{
			Source: source,
			Columns: []plan.AggregationColumn{
				&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
				&plan.AggregateColumn{
					Call:   &plan.CallExpr{Name: "sum", Args: []plan.Expression{varExpr("b")}},
					Output: "s",
				},
			},
		}
	}

	tests := []struct {
		name string
		node plan.Node
		sess *session.Session
	}{
		{
			name: "partial aggregation",
			node: func() plan.Node {
				n := groupBySum(scanNode("T", "a", "b"))
				n.Partial = true
				return n
			}(),
			sess: brokerSession(),
		},
		{
			name: "aggregation in segment mode",
			node: groupBySum(scanNode("T", "a", "b")),
			sess: segmentSession(),
		},
		{
			name: "partial limit",
			node: &plan.LimitNode{Source: scanNode("T", "a"), Count: 10, Partial: true, Outputs: []plan.Variable{"a"}},
			sess: brokerSession(),
		},
		{
			name: "limit in segment mode",
			node: &plan.LimitNode{Source: scanNode("T", "a"), Count: 10, Outputs: []plan.Variable{"a"}},
			sess: segmentSession(),
		},
		{
			name: "partial top-n step",
			node: &plan.TopNNode{
				Source:  scanNode("T", "a"),
				Count:   5,
				OrderBy: []plan.OrderingTerm{{Variable: "a"}},
				Step:    plan.TopNPartial,
				Outputs: []plan.Variable{"a"},
			},
			sess: brokerSession(),
		},
		{
			name: "top-n in segment mode",
			node: &plan.TopNNode{
				Source:  scanNode("T", "a"),
				Count:   5,
				OrderBy: []plan.OrderingTerm{{Variable: "a"}},
				Step:    plan.TopNSingle,
				Outputs: []plan.Variable{"a"},
			},
			sess: segmentSession(),
		},
		{
			name: "table handle with existing query text",
			node: &plan.TableScanNode{
				Table:       plan.TableHandle{TableName: "T", Query: "SELECT x FROM T"},
				Outputs:     []plan.Variable{"a"},
				Assignments: map[plan.Variable]plan.ColumnHandle{"a": {ColumnName: "a", Kind: plan.ColumnRegular}},
			},
			sess: brokerSession(),
		},
		{
			name: "non-regular column",
			node: &plan.TableScanNode{
				Table:       plan.TableHandle{TableName: "T"},
				Outputs:     []plan.Variable{"a"},
				Assignments: map[plan.Variable]plan.ColumnHandle{"a": {ColumnName: "a", Kind: plan.ColumnPartitionOnly}},
			},
			sess: brokerSession(),
		},
		{
			name: "filter above a limit",
			node: &plan.FilterNode{
				Source: &plan.LimitNode{
					Source:  scanNode("T", "a"),
					Count:   10,
					Outputs: []plan.Variable{"a"},
				},
				Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("5")}},
				Outputs:   []plan.Variable{"a"},
			},
			sess: brokerSession(),
		},
		{
			name: "filter above a top-n",
			node: &plan.FilterNode{
				Source: &plan.TopNNode{
					Source:  scanNode("T", "a"),
					Count:   5,
					OrderBy: []plan.OrderingTerm{{Variable: "a", Descending: true}},
					Step:    plan.TopNSingle,
					Outputs: []plan.Variable{"a"},
				},
				Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("5")}},
				Outputs:   []plan.Variable{"a"},
			},
			sess: brokerSession(),
		},
		{
			name: "aggregation above a limit",
			node: groupBySum(&plan.LimitNode{
				Source:  scanNode("T", "a", "b"),
				Count:   10,
				Outputs: []plan.Variable{"a", "b"},
			}),
			sess: brokerSession(),
		},
		{
			name: "two limits on one chain",
			node: &plan.LimitNode{
				Source: &plan.LimitNode{
					Source:  scanNode("T", "a"),
					Count:   20,
					Outputs: []plan.Variable{"a"},
				},
				Count:   10,
				Outputs: []plan.Variable{"a"},
			},
			sess: brokerSession(),
		},
		{
			name: "two filters on one chain",
			node: &plan.FilterNode{
				Source: &plan.FilterNode{
					Source:    scanNode("T", "a"),
					Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("1")}},
					Outputs:   []plan.Variable{"a"},
				},
				Predicate: &plan.CallExpr{Name: "<", Args: []plan.Expression{varExpr("a"), numExpr("9")}},
				Outputs:   []plan.Variable{"a"},
			},
			sess: brokerSession(),
		},
		{
			name: "stacked aggregations",
			node: groupBySum(&plan.AggregationNode{
				Source: scanNode("T", "a", "b"),
				Columns: []plan.AggregationColumn{
					&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
					&plan.AggregateColumn{
						Call:   &plan.CallExpr{Name: "sum", Args: []plan.Expression{varExpr("b")}},
						Output: "b",
					},
				},
			}),
			sess: brokerSession(),
		},
		{
			name: "unknown aggregate function",
			node: &plan.AggregationNode{
				Source: scanNode("T", "a", "b"),
				Columns: []plan.AggregationColumn{
					&plan.AggregateColumn{
						Call:   &plan.CallExpr{Name: "stddev", Args: []plan.Expression{varExpr("b")}},
						Output: "s",
					},
				},
			},
			sess: brokerSession(),
		},
	}

	g := NewGenerator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, ok := g.Generate(tc.node, tc.sess)
			assert.False(t, ok)
			assert.Nil(t, result)
		})
	}
}

func TestGenerate_SegmentModeScanStaysPushable(t *testing.T) {
	// Segment mode only gates aggregation/limit/top-n; a plain
	// filtered scan still pushes, without the implicit broker limit.
	filter := &plan.FilterNode{
		Source:    scanNode("T", "a"),
		Predicate: &plan.CallExpr{Name: ">", Args: []plan.Expression{varExpr("a"), numExpr("5")}},
		Outputs:   []plan.Variable{"a"},
	}
	result, ok := NewGenerator(nil).Generate(filter, segmentSession())
	require.True(t, ok)
	assert.Equal(t, "SELECT a FROM T WHERE (a > 5)", result.PQL.Query)
}

func TestGenerate_ExpectedIndicesReproduceOutputOrder(t *testing.T) {
	// Mapping the indices back through the full selection list must
	// reproduce the top node's output order exactly.
	agg := &plan.AggregationNode{
		Source: scanNode("T", "a", "b"),
		Columns: []plan.AggregationColumn{
			&plan.GroupByColumn{Input: varExpr("b"), Output: "b"},
			&plan.GroupByColumn{Input: varExpr("a"), Output: "a"},
		},
	}
	result, ok := NewGenerator(nil).Generate(agg, brokerSession())
	require.True(t, ok)

	order := result.Context.SelectionOrder()
	visible := make([]plan.Variable, 0, len(result.PQL.ExpectedColumnIndices))
	for _, idx := range result.PQL.ExpectedColumnIndices {
		visible = append(visible, order[idx])
	}
	assert.Equal(t, []plan.Variable{"b", "a"}, visible)
	assert.Equal(t, 2, result.PQL.GroupByClauseCount)
}
