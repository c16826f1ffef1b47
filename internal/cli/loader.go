package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/pinotql/pinotql/internal/plan"
)

//go:embed schema.cue
var planSchemaSource string

// Load error codes.
const (
	ErrCodeNotFound = "PLAN_NOT_FOUND"
	ErrCodeParse    = "PLAN_PARSE"
	ErrCodeSchema   = "PLAN_SCHEMA"
	ErrCodeBuild    = "PLAN_BUILD"
)

// LoadError represents an error that occurred while loading a plan file.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// planDoc mirrors the YAML plan document; schema.cue is its source of
// truth.
type planDoc struct {
	Table   string      `yaml:"table"`
	Query   string      `yaml:"query"`
	Columns []columnDoc `yaml:"columns"`
	Nodes   []nodeDoc   `yaml:"nodes"`
}

type columnDoc struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
	Kind   string `yaml:"kind"`
}

type nodeDoc struct {
	Filter    *filterDoc    `yaml:"filter"`
	Project   *projectDoc   `yaml:"project"`
	Aggregate *aggregateDoc `yaml:"aggregate"`
	Limit     *limitDoc     `yaml:"limit"`
	TopN      *topNDoc      `yaml:"topn"`
}

type filterDoc struct {
	Predicate exprDoc  `yaml:"predicate"`
	Outputs   []string `yaml:"outputs"`
}

type projectDoc struct {
	Assignments []assignmentDoc `yaml:"assignments"`
}

type assignmentDoc struct {
	Output string  `yaml:"output"`
	Expr   exprDoc `yaml:"expr"`
}

type aggregateDoc struct {
	Partial bool              `yaml:"partial"`
	Columns []aggregateColDoc `yaml:"columns"`
}

type aggregateColDoc struct {
	Group *groupDoc   `yaml:"group"`
	Agg   *aggCallDoc `yaml:"agg"`
}

type groupDoc struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

type aggCallDoc struct {
	Output string  `yaml:"output"`
	Call   callDoc `yaml:"call"`
}

type limitDoc struct {
	Count   int64    `yaml:"count"`
	Partial bool     `yaml:"partial"`
	Outputs []string `yaml:"outputs"`
}

type topNDoc struct {
	Count   int64      `yaml:"count"`
	Step    string     `yaml:"step"`
	Order   []orderDoc `yaml:"order"`
	Outputs []string   `yaml:"outputs"`
}

type orderDoc struct {
	Column     string `yaml:"column"`
	Desc       bool   `yaml:"desc"`
	NullsFirst bool   `yaml:"nullsFirst"`
}

type exprDoc struct {
	Var   string    `yaml:"var"`
	Const *constDoc `yaml:"const"`
	Call  *callDoc  `yaml:"call"`
}

type constDoc struct {
	Value string `yaml:"value"`
	Kind  string `yaml:"kind"`
}

type callDoc struct {
	Name string    `yaml:"name"`
	Args []exprDoc `yaml:"args"`
}

// LoadPlan reads a YAML plan document, validates it against the CUE
// schema and builds the plan fragment.
func LoadPlan(path string) (plan.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read plan file: %v", err)}
	}
	if err := validatePlanBytes(path, data); err != nil {
		return nil, err
	}
	var doc planDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("parse plan file %s: %v", path, err)}
	}
	return buildPlan(&doc)
}

// ValidatePlanFile checks a plan document against the CUE schema without
// building it.
func ValidatePlanFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read plan file: %v", err)}
	}
	return validatePlanBytes(path, data)
}

func validatePlanBytes(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(planSchemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Plan"))
	if err := schema.Err(); err != nil {
		return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("compile plan schema: %v", err)}
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("parse plan file: %v", err)}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("build plan document: %v", err)}
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return &LoadError{Code: ErrCodeSchema, Message: cueerrors.Details(err, nil)}
	}
	return nil
}

func buildPlan(doc *planDoc) (plan.Node, error) {
	if len(doc.Columns) == 0 {
		return nil, &LoadError{Code: ErrCodeBuild, Message: "plan has no scan columns"}
	}

	outputs := make([]plan.Variable, 0, len(doc.Columns))
	assignments := make(map[plan.Variable]plan.ColumnHandle, len(doc.Columns))
	for _, col := range doc.Columns {
		kind, err := columnKind(col.Kind)
		if err != nil {
			return nil, err
		}
		v := plan.Variable(col.Name)
		outputs = append(outputs, v)
		assignments[v] = plan.ColumnHandle{ColumnName: col.Column, Kind: kind}
	}

	var node plan.Node = &plan.TableScanNode{
		Table:       plan.TableHandle{TableName: doc.Table, Query: doc.Query},
		Outputs:     outputs,
		Assignments: assignments,
	}

	for i, nd := range doc.Nodes {
		next, err := buildNode(node, &nd)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("plan node %d specifies no operator", i)}
		}
		node = next
	}
	return node, nil
}

func buildNode(source plan.Node, nd *nodeDoc) (plan.Node, error) {
	switch {
	case nd.Filter != nil:
		predicate, err := buildExpr(&nd.Filter.Predicate)
		if err != nil {
			return nil, err
		}
		return &plan.FilterNode{
			Source:    source,
			Predicate: predicate,
			Outputs:   variables(nd.Filter.Outputs),
		}, nil
	case nd.Project != nil:
		assignments := make([]plan.Assignment, 0, len(nd.Project.Assignments))
		for _, a := range nd.Project.Assignments {
			expr, err := buildExpr(&a.Expr)
			if err != nil {
				return nil, err
			}
			assignments = append(assignments, plan.Assignment{Output: plan.Variable(a.Output), Expr: expr})
		}
		return &plan.ProjectNode{Source: source, Assignments: assignments}, nil
	case nd.Aggregate != nil:
		columns := make([]plan.AggregationColumn, 0, len(nd.Aggregate.Columns))
		for i, c := range nd.Aggregate.Columns {
			switch {
			case c.Group != nil:
				columns = append(columns, &plan.GroupByColumn{
					Input:  &plan.VariableExpr{Name: plan.Variable(c.Group.Input)},
					Output: plan.Variable(c.Group.Output),
				})
			case c.Agg != nil:
				call, err := buildCall(&c.Agg.Call)
				if err != nil {
					return nil, err
				}
				columns = append(columns, &plan.AggregateColumn{
					Call:   call,
					Output: plan.Variable(c.Agg.Output),
				})
			default:
				return nil, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("aggregate column %d is neither group nor agg", i)}
			}
		}
		return &plan.AggregationNode{Source: source, Columns: columns, Partial: nd.Aggregate.Partial}, nil
	case nd.Limit != nil:
		return &plan.LimitNode{
			Source:  source,
			Count:   nd.Limit.Count,
			Partial: nd.Limit.Partial,
			Outputs: variables(nd.Limit.Outputs),
		}, nil
	case nd.TopN != nil:
		step, err := topNStep(nd.TopN.Step)
		if err != nil {
			return nil, err
		}
		order := make([]plan.OrderingTerm, 0, len(nd.TopN.Order))
		for _, t := range nd.TopN.Order {
			order = append(order, plan.OrderingTerm{
				Variable:   plan.Variable(t.Column),
				Descending: t.Desc,
				NullsFirst: t.NullsFirst,
			})
		}
		return &plan.TopNNode{
			Source:  source,
			Count:   nd.TopN.Count,
			OrderBy: order,
			Step:    step,
			Outputs: variables(nd.TopN.Outputs),
		}, nil
	default:
		return nil, nil
	}
}

func buildExpr(e *exprDoc) (plan.Expression, error) {
	set := 0
	if e.Var != "" {
		set++
	}
	if e.Const != nil {
		set++
	}
	if e.Call != nil {
		set++
	}
	if set != 1 {
		return nil, &LoadError{Code: ErrCodeBuild, Message: "expression must set exactly one of var, const, call"}
	}
	switch {
	case e.Var != "":
		return &plan.VariableExpr{Name: plan.Variable(e.Var)}, nil
	case e.Const != nil:
		kind, err := constantKind(e.Const.Kind)
		if err != nil {
			return nil, err
		}
		return &plan.ConstantExpr{Value: e.Const.Value, Kind: kind}, nil
	default:
		return buildCall(e.Call)
	}
}

func buildCall(c *callDoc) (*plan.CallExpr, error) {
	args := make([]plan.Expression, 0, len(c.Args))
	for i := range c.Args {
		arg, err := buildExpr(&c.Args[i])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &plan.CallExpr{Name: c.Name, Args: args}, nil
}

func variables(names []string) []plan.Variable {
	out := make([]plan.Variable, len(names))
	for i, n := range names {
		out[i] = plan.Variable(n)
	}
	return out
}

func columnKind(kind string) (plan.ColumnKind, error) {
	switch kind {
	case "", "regular":
		return plan.ColumnRegular, nil
	case "derived":
		return plan.ColumnDerived, nil
	case "partition":
		return plan.ColumnPartitionOnly, nil
	default:
		return 0, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("unknown column kind %q", kind)}
	}
}

func constantKind(kind string) (plan.ConstantKind, error) {
	switch kind {
	case "", "number":
		return plan.ConstantNumber, nil
	case "string":
		return plan.ConstantString, nil
	case "bool":
		return plan.ConstantBool, nil
	case "null":
		return plan.ConstantNull, nil
	default:
		return 0, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("unknown constant kind %q", kind)}
	}
}

func topNStep(step string) (plan.TopNStep, error) {
	switch step {
	case "", "single":
		return plan.TopNSingle, nil
	case "partial":
		return plan.TopNPartial, nil
	case "final":
		return plan.TopNFinal, nil
	default:
		return 0, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("unknown topn step %q", step)}
	}
}
