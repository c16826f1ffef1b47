package pql

import (
	"fmt"
	"strings"

	"github.com/pinotql/pinotql/internal/plan"
	"github.com/pinotql/pinotql/internal/session"
)

// Context is the incrementally built state of one translation: table
// name, ordered output selections, filter, grouping, limit/ordering and
// the bookkeeping sets the translator needs for correctness decisions.
//
// A Context is an immutable value. It is created once, at the table
// scan, and every transition returns a fresh copy; the translator
// discards the old value after use. Nothing here is shared, so contexts
// are safe to carry across goroutines.
type Context struct {
	table string

	// selections in insertion order; order defines the projected column
	// order in the generated query.
	order      []plan.Variable
	selections map[plan.Variable]Selection

	filter    string
	hasFilter bool

	groupByOrder []plan.Variable
	groupBySet   map[plan.Variable]struct{}
	aggregations int

	// hiddenColumns are selected and computed by the store but stripped
	// from the visible output (synthetic count(*) padding).
	hiddenColumns map[plan.Variable]struct{}

	limit    int64
	hasLimit bool
	orderBy  []plan.OrderingTerm

	// variablesInAggregation is a transient hint set during the
	// aggregation node's first pass so the child project stage knows
	// which columns need aggregation-aware conversion. It is not part
	// of the persisted context after that transition completes.
	variablesInAggregation map[plan.Variable]struct{}
}

// newContext starts a fresh context at a table scan.
func newContext(table string, order []plan.Variable, selections map[plan.Variable]Selection) Context {
	return Context{
		table:      table,
		order:      append([]plan.Variable(nil), order...),
		selections: copySelections(selections),
	}
}

func copySelections(in map[plan.Variable]Selection) map[plan.Variable]Selection {
	out := make(map[plan.Variable]Selection, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyVariableSet(in map[plan.Variable]struct{}) map[plan.Variable]struct{} {
	out := make(map[plan.Variable]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// Table returns the physical table name.
func (c Context) Table() string { return c.table }

// HasFilter reports whether a filter has been applied.
func (c Context) HasFilter() bool { return c.hasFilter }

// AggregationCount returns the number of aggregate expressions selected
// so far (including any synthetic hidden aggregate).
func (c Context) AggregationCount() int { return c.aggregations }

// SelectionOrder returns the output variables in projected order,
// including hidden ones.
func (c Context) SelectionOrder() []plan.Variable {
	return append([]plan.Variable(nil), c.order...)
}

// Selection resolves one output variable to its PQL expression.
func (c Context) Selection(v plan.Variable) (Selection, bool) {
	s, ok := c.selections[v]
	return s, ok
}

// IsHidden reports whether v is selected but stripped from the visible
// output.
func (c Context) IsHidden(v plan.Variable) bool {
	_, ok := c.hiddenColumns[v]
	return ok
}

// GroupByCount returns the number of group-by keys.
func (c Context) GroupByCount() int { return len(c.groupByOrder) }

// InAggregation reports whether v was referenced by the enclosing
// aggregation's keys or call arguments. Only meaningful on the context
// passed down during the aggregation transition.
func (c Context) InAggregation(v plan.Variable) bool {
	_, ok := c.variablesInAggregation[v]
	return ok
}

// WithFilter records the filter text. A context holds at most one
// filter, and the store has no post-grouping or post-limit filter form,
// so composing filters or filtering above an aggregation or a limit is
// rejected.
func (c Context) WithFilter(filter string) (Context, error) {
	if c.hasFilter {
		return Context{}, unsupportedf(nil, "there already exists a filter, cannot add another")
	}
	if c.aggregations > 0 {
		return Context{}, unsupportedf(nil, "cannot apply filter on top of aggregated data")
	}
	// The generated text always filters before limiting, so a filter
	// above a limit would reorder the plan's semantics.
	if c.hasLimit {
		return Context{}, unsupportedf(nil, "cannot apply filter on top of a limit")
	}
	next := c
	next.filter = filter
	next.hasFilter = true
	return next, nil
}

// WithProject replaces the selection set with newly computed output
// columns. order defines the new projected column order.
func (c Context) WithProject(order []plan.Variable, selections map[plan.Variable]Selection) Context {
	next := c
	next.order = append([]plan.Variable(nil), order...)
	next.selections = copySelections(selections)
	return next
}

// WithVariablesInAggregation attaches the first-pass hint set consumed
// by the child project stage.
func (c Context) WithVariablesInAggregation(vars map[plan.Variable]struct{}) Context {
	next := c
	next.variablesInAggregation = copyVariableSet(vars)
	return next
}

// WithAggregation replaces the selections with the aggregation's output
// columns and records grouping state. Stacked aggregations are rejected;
// the store cannot aggregate already-aggregated data.
func (c Context) WithAggregation(
	order []plan.Variable,
	selections map[plan.Variable]Selection,
	groupBy []plan.Variable,
	aggregations int,
	hidden map[plan.Variable]struct{},
) (Context, error) {
	if c.aggregations > 0 {
		return Context{}, unsupportedf(nil, "cannot apply aggregation on top of aggregated data")
	}
	// A limit below the aggregation would have to cap the input rows,
	// but the generated text can only cap the grouped output.
	if c.hasLimit {
		return Context{}, unsupportedf(nil, "cannot apply aggregation on top of a limit")
	}
	groupBySet := make(map[plan.Variable]struct{}, len(groupBy))
	for _, v := range groupBy {
		if _, ok := selections[v]; !ok {
			return Context{}, unsupportedf(nil, "group by column %s is not selected", v)
		}
		groupBySet[v] = struct{}{}
	}
	next := c
	next.order = append([]plan.Variable(nil), order...)
	next.selections = copySelections(selections)
	next.groupByOrder = append([]plan.Variable(nil), groupBy...)
	next.groupBySet = groupBySet
	next.aggregations = aggregations
	next.hiddenColumns = copyVariableSet(hidden)
	next.variablesInAggregation = nil
	return next, nil
}

// WithLimit records a plain row-count limit.
func (c Context) WithLimit(count int64) (Context, error) {
	if c.hasLimit {
		return Context{}, unsupportedf(nil, "there already exists a limit, cannot add another")
	}
	next := c
	next.limit = count
	next.hasLimit = true
	return next, nil
}

// WithTopN records a row-count limit together with its ordering. Every
// ordering key must already be selected.
func (c Context) WithTopN(count int64, orderBy []plan.OrderingTerm) (Context, error) {
	if c.hasLimit {
		return Context{}, unsupportedf(nil, "there already exists a limit, cannot add a top-n")
	}
	for _, term := range orderBy {
		if _, ok := c.selections[term.Variable]; !ok {
			return Context{}, unsupportedf(nil, "order by column %s is not selected", term.Variable)
		}
	}
	next := c
	next.limit = count
	next.hasLimit = true
	next.orderBy = append([]plan.OrderingTerm(nil), orderBy...)
	return next, nil
}

// WithOutputColumns narrows the visible selections to exactly outputs,
// without changing their definitions. Hidden columns stay selected: the
// store must still compute them, and the index mapping (not the
// projection) is what strips them from results.
func (c Context) WithOutputColumns(outputs []plan.Variable) (Context, error) {
	order := make([]plan.Variable, 0, len(outputs)+len(c.hiddenColumns))
	seen := make(map[plan.Variable]struct{}, len(outputs))
	for _, v := range outputs {
		if _, ok := c.selections[v]; !ok {
			return Context{}, unsupportedf(nil, "output column %s is not selected", v)
		}
		order = append(order, v)
		seen[v] = struct{}{}
	}
	for _, v := range c.order {
		if _, hidden := c.hiddenColumns[v]; hidden {
			if _, ok := seen[v]; !ok {
				order = append(order, v)
			}
		}
	}
	selections := make(map[plan.Variable]Selection, len(order))
	for _, v := range order {
		selections[v] = c.selections[v]
	}
	next := c
	next.order = order
	next.selections = selections
	return next, nil
}

// IsQueryShort classifies the fragment against the configured row
// threshold: no aggregation and an explicit limit strictly under the
// threshold. The flag only drives a cheaper execution strategy
// downstream; it never changes the query text.
func (c Context) IsQueryShort(nonAggregateRowLimit int) bool {
	return c.aggregations == 0 && c.hasLimit && c.limit < int64(nonAggregateRowLimit)
}

// ToQuery assembles the final PQL text and index mapping. The full
// selection list renders, hidden columns included, because the store's
// grouped query form requires at least one aggregate expression in the
// text; ExpectedColumnIndices covers only the visible columns.
func (c Context) ToQuery(sess *session.Session, isQueryShort bool) (*GeneratedPQL, error) {
	if c.table == "" {
		return nil, unsupportedf(nil, "table name not encountered yet")
	}
	if len(c.order) == 0 {
		return nil, unsupportedf(nil, "empty PQL expressions")
	}

	exprs := make([]string, len(c.order))
	for i, v := range c.order {
		exprs[i] = c.selections[v].Definition
	}

	var q strings.Builder
	q.WriteString("SELECT ")
	q.WriteString(strings.Join(exprs, ", "))
	q.WriteString(" FROM ")
	q.WriteString(c.table)
	if c.hasFilter {
		q.WriteString(" WHERE ")
		q.WriteString(c.filter)
	}

	if len(c.groupByOrder) > 0 {
		groupBy := make([]string, len(c.groupByOrder))
		for i, v := range c.groupByOrder {
			sel, ok := c.selections[v]
			if !ok {
				return nil, unsupportedf(nil, "group by column %s lost its selection", v)
			}
			groupBy[i] = sel.Definition
		}
		q.WriteString(" GROUP BY ")
		q.WriteString(strings.Join(groupBy, ", "))
	}

	if len(c.orderBy) > 0 {
		terms := make([]string, len(c.orderBy))
		for i, term := range c.orderBy {
			sel, ok := c.selections[term.Variable]
			if !ok {
				return nil, unsupportedf(nil, "order by column %s lost its selection", term.Variable)
			}
			terms[i] = sel.Definition
			if term.Descending {
				terms[i] += " DESC"
			}
		}
		q.WriteString(" ORDER BY ")
		q.WriteString(strings.Join(terms, ", "))
	}

	// The grouped query form always needs a TOP; broker selection
	// queries get an implicit LIMIT so an unbounded scan cannot flood
	// the broker.
	switch {
	case c.hasLimit && c.aggregations > 0:
		fmt.Fprintf(&q, " TOP %d", c.limit)
	case c.hasLimit:
		fmt.Fprintf(&q, " LIMIT %d", c.limit)
	case c.aggregations > 0:
		fmt.Fprintf(&q, " TOP %d", sess.TopNLarge)
	case sess.PreferBrokerQueries:
		fmt.Fprintf(&q, " LIMIT %d", sess.NonAggregateLimitForBrokerQueries)
	}

	indices := make([]int, 0, len(c.order))
	for i, v := range c.order {
		if _, hidden := c.hiddenColumns[v]; !hidden {
			indices = append(indices, i)
		}
	}

	return &GeneratedPQL{
		Table:                 c.table,
		Query:                 q.String(),
		ExpectedColumnIndices: indices,
		GroupByClauseCount:    len(c.groupByOrder),
		HasFilter:             c.hasFilter,
		IsShortQuery:          isQueryShort,
	}, nil
}
