package pql

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/pinotql/pinotql/internal/plan"
	"github.com/pinotql/pinotql/internal/session"
)

// Generator translates pushdown plan fragments into PQL. One Generator
// is safe for concurrent use; each Generate call is independent.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil logger falls back to the
// default slog logger.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger}
}

// Generate attempts to translate the plan fragment rooted at root. The
// second return value reports whether a pushdown query could be built;
// false means the caller must fall back to non-pushed-down execution.
// Pushdown is always an optimization attempt, never a correctness
// requirement, so no rejection escapes as an error.
func (g *Generator) Generate(root plan.Node, sess *session.Session) (*Result, bool) {
	v := &planVisitor{sess: sess}
	ctx, err := v.visit(root, Context{})
	if err != nil {
		g.logger.Debug("plan fragment not pushable",
			"reason", err.Error(),
			"invalidArgument", IsInvalidArgument(err))
		return nil, false
	}

	isQueryShort := ctx.IsQueryShort(sess.NonAggregateLimitForBrokerQueries)
	generated, err := ctx.ToQuery(sess, isQueryShort)
	if err != nil {
		g.logger.Debug("plan fragment not pushable", "reason", err.Error())
		return nil, false
	}
	return &Result{PQL: *generated, Context: ctx}, true
}

// planVisitor walks the fragment bottom-up. visit receives the context
// flowing DOWN the tree (carrying hints such as the aggregation's
// variable set) and returns the context built UP from the scan.
type planVisitor struct {
	sess *session.Session
}

func (v *planVisitor) visit(node plan.Node, down Context) (Context, error) {
	switch n := node.(type) {
	case *plan.TableScanNode:
		return v.visitTableScan(n)
	case *plan.FilterNode:
		return v.visitFilter(n, down)
	case *plan.ProjectNode:
		return v.visitProject(n, down)
	case *plan.AggregationNode:
		return v.visitAggregation(n, down)
	case *plan.LimitNode:
		return v.visitLimit(n, down)
	case *plan.TopNNode:
		return v.visitTopN(n, down)
	default:
		return Context{}, unsupportedf(node, "don't know how to handle plan node of type %T", node)
	}
}

func (v *planVisitor) visitTableScan(node *plan.TableScanNode) (Context, error) {
	if node.Table.Query != "" {
		return Context{}, unsupportedf(node, "table handle already carries generated query text")
	}
	order := make([]plan.Variable, 0, len(node.Outputs))
	selections := make(map[plan.Variable]Selection, len(node.Outputs))
	for _, output := range node.Outputs {
		column, ok := node.Assignments[output]
		if !ok {
			return Context{}, unsupportedf(node, "output column %s has no column handle", output)
		}
		if column.Kind != plan.ColumnRegular {
			return Context{}, unsupportedf(node, "column %s is %s, only regular columns are pushable", column.ColumnName, column.Kind)
		}
		order = append(order, output)
		selections[output] = Selection{Definition: column.ColumnName, Origin: OriginTableColumn}
	}
	return newContext(node.Table.TableName, order, selections), nil
}

func (v *planVisitor) visitFilter(node *plan.FilterNode, down Context) (Context, error) {
	up, err := v.visit(node.Source, down)
	if err != nil {
		return Context{}, err
	}
	filter, err := convertFilter(node.Predicate, up.Selection)
	if err != nil {
		return Context{}, err
	}
	up, err = up.WithFilter(filter)
	if err != nil {
		return Context{}, err
	}
	return up.WithOutputColumns(node.Outputs)
}

func (v *planVisitor) visitProject(node *plan.ProjectNode, down Context) (Context, error) {
	up, err := v.visit(node.Source, down)
	if err != nil {
		return Context{}, err
	}
	order := make([]plan.Variable, 0, len(node.Assignments))
	selections := make(map[plan.Variable]Selection, len(node.Assignments))
	for _, a := range node.Assignments {
		// Columns feeding the enclosing aggregation may reference
		// aggregate results, so they get the aggregation-aware
		// converter.
		var sel Selection
		if down.InAggregation(a.Output) {
			sel, err = convertAggregationProject(a.Expr, up.Selection)
		} else {
			sel, err = convertProject(a.Expr, up.Selection)
		}
		if err != nil {
			return Context{}, err
		}
		order = append(order, a.Output)
		selections[a.Output] = sel
	}
	return up.WithProject(order, selections), nil
}

func (v *planVisitor) visitAggregation(node *plan.AggregationNode, down Context) (Context, error) {
	// First pass: collect every input column used as a group-by key or
	// an aggregate argument, and hand the set down so the child project
	// stage knows which columns need aggregation-aware conversion.
	variablesInAggregation := make(map[plan.Variable]struct{})
	for _, column := range node.Columns {
		switch col := column.(type) {
		case *plan.GroupByColumn:
			input, ok := col.Input.(*plan.VariableExpr)
			if !ok {
				return Context{}, unsupportedf(node, "expected a variable reference as group by key but got %T", col.Input)
			}
			variablesInAggregation[input.Name] = struct{}{}
		case *plan.AggregateColumn:
			for _, arg := range col.Call.Args {
				if ref, ok := arg.(*plan.VariableExpr); ok {
					variablesInAggregation[ref.Name] = struct{}{}
				}
			}
		default:
			return Context{}, unsupportedf(node, "unknown aggregation column descriptor %T", column)
		}
	}

	up, err := v.visit(node.Source, down.WithVariablesInAggregation(variablesInAggregation))
	if err != nil {
		return Context{}, err
	}
	if node.Partial {
		return Context{}, unsupportedf(node, "partial aggregations are not supported in the pushdown framework")
	}
	if !v.sess.PreferBrokerQueries {
		return Context{}, unsupportedf(node, "cannot push aggregation in segment mode")
	}

	// Second pass: generate the aggregation's output selections.
	order := make([]plan.Variable, 0, len(node.Columns))
	selections := make(map[plan.Variable]Selection, len(node.Columns))
	groupBy := make([]plan.Variable, 0, len(node.Columns))
	hidden := copyVariableSet(up.hiddenColumns)
	aggregations := 0

	for _, column := range node.Columns {
		switch col := column.(type) {
		case *plan.GroupByColumn:
			input := col.Input.(*plan.VariableExpr)
			sel, ok := up.Selection(input.Name)
			if !ok {
				return Context{}, unsupportedf(node, "group by column %s doesn't exist in input selections", input.Name)
			}
			order = append(order, col.Output)
			selections[col.Output] = sel
			groupBy = append(groupBy, col.Output)
		case *plan.AggregateColumn:
			definition, err := convertAggregationCall(col.Call, up.Selection)
			if err != nil {
				return Context{}, err
			}
			order = append(order, col.Output)
			selections[col.Output] = Selection{Definition: definition, Origin: OriginDerived}
			aggregations++
		}
	}

	// A bare distinct-values query: the grouped query form requires at
	// least one aggregate expression, so pad with an invisible count(*)
	// the consumer never sees.
	if len(groupBy) > 0 && aggregations == 0 {
		padding := plan.Variable(uuid.NewString())
		order = append(order, padding)
		selections[padding] = Selection{Definition: "count(*)", Origin: OriginDerived}
		hidden[padding] = struct{}{}
		aggregations++
	}

	return up.WithAggregation(order, selections, groupBy, aggregations, hidden)
}

func (v *planVisitor) visitLimit(node *plan.LimitNode, down Context) (Context, error) {
	if node.Partial {
		return Context{}, unsupportedf(node, "cannot push partial limit")
	}
	if !v.sess.PreferBrokerQueries {
		return Context{}, unsupportedf(node, "cannot push limit in segment mode")
	}
	up, err := v.visit(node.Source, down)
	if err != nil {
		return Context{}, err
	}
	up, err = up.WithLimit(node.Count)
	if err != nil {
		return Context{}, err
	}
	return up.WithOutputColumns(node.Outputs)
}

func (v *planVisitor) visitTopN(node *plan.TopNNode, down Context) (Context, error) {
	up, err := v.visit(node.Source, down)
	if err != nil {
		return Context{}, err
	}
	if !v.sess.PreferBrokerQueries {
		return Context{}, unsupportedf(node, "cannot push topn in segment mode")
	}
	if node.Step != plan.TopNSingle {
		return Context{}, unsupportedf(node, "can only push the single global topn step, got %s", node.Step)
	}
	up, err = up.WithTopN(node.Count, node.OrderBy)
	if err != nil {
		return Context{}, err
	}
	return up.WithOutputColumns(node.Outputs)
}
