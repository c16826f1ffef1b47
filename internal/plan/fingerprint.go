package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for content-addressed plan identity. Version suffix
// enables future encoding migration without colliding with old keys.
const fingerprintDomain = "pinotql/plan/v1"

// Fingerprint computes a content-addressed identity for a plan fragment.
// Identical fragments (and identical extra labels, e.g. session settings
// that affect the generated text) always produce the same fingerprint, so
// it is safe to use as a cache key for generated queries.
//
// Identifiers are NFC-normalized before hashing so that visually
// identical column names hash identically regardless of their Unicode
// composition.
func Fingerprint(n Node, labels ...string) string {
	var b strings.Builder
	encodeNode(&b, n)
	for _, l := range labels {
		b.WriteString("|label=")
		b.WriteString(canon(l))
	}

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00}) // null separator between domain and payload
	h.Write([]byte(b.String()))
	return hex.EncodeToString(h.Sum(nil))
}

func canon(s string) string {
	return norm.NFC.String(s)
}

func encodeNode(b *strings.Builder, n Node) {
	switch node := n.(type) {
	case *TableScanNode:
		fmt.Fprintf(b, "scan(%s)[", canon(node.Table.TableName))
		for i, v := range node.Outputs {
			if i > 0 {
				b.WriteByte(',')
			}
			col := node.Assignments[v]
			fmt.Fprintf(b, "%s=%s:%s", canon(string(v)), canon(col.ColumnName), col.Kind)
		}
		b.WriteByte(']')
	case *FilterNode:
		encodeNode(b, node.Source)
		b.WriteString("|filter(")
		encodeExpr(b, node.Predicate)
		b.WriteString(")[")
		encodeVars(b, node.Outputs)
		b.WriteByte(']')
	case *ProjectNode:
		encodeNode(b, node.Source)
		b.WriteString("|project[")
		for i, a := range node.Assignments {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%s=", canon(string(a.Output)))
			encodeExpr(b, a.Expr)
		}
		b.WriteByte(']')
	case *AggregationNode:
		encodeNode(b, node.Source)
		fmt.Fprintf(b, "|aggregate(partial=%t)[", node.Partial)
		for i, c := range node.Columns {
			if i > 0 {
				b.WriteByte(',')
			}
			switch col := c.(type) {
			case *GroupByColumn:
				fmt.Fprintf(b, "group:%s=", canon(string(col.Output)))
				encodeExpr(b, col.Input)
			case *AggregateColumn:
				fmt.Fprintf(b, "agg:%s=", canon(string(col.Output)))
				encodeExpr(b, col.Call)
			}
		}
		b.WriteByte(']')
	case *LimitNode:
		encodeNode(b, node.Source)
		fmt.Fprintf(b, "|limit(%d,partial=%t)[", node.Count, node.Partial)
		encodeVars(b, node.Outputs)
		b.WriteByte(']')
	case *TopNNode:
		encodeNode(b, node.Source)
		fmt.Fprintf(b, "|topn(%d,step=%s,", node.Count, node.Step)
		for i, t := range node.OrderBy {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%s:desc=%t:nullsfirst=%t", canon(string(t.Variable)), t.Descending, t.NullsFirst)
		}
		b.WriteString(")[")
		encodeVars(b, node.Outputs)
		b.WriteByte(']')
	default:
		// Unknown nodes still need a stable encoding; the translator
		// rejects them independently.
		fmt.Fprintf(b, "|unknown(%T)", n)
	}
}

func encodeVars(b *strings.Builder, vars []Variable) {
	for i, v := range vars {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(canon(string(v)))
	}
}

func encodeExpr(b *strings.Builder, e Expression) {
	switch expr := e.(type) {
	case *VariableExpr:
		fmt.Fprintf(b, "var(%s)", canon(string(expr.Name)))
	case *ConstantExpr:
		fmt.Fprintf(b, "const(%d:%s)", expr.Kind, canon(expr.Value))
	case *CallExpr:
		fmt.Fprintf(b, "call(%s", canon(strings.ToLower(expr.Name)))
		for _, a := range expr.Args {
			b.WriteByte(',')
			encodeExpr(b, a)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "unknown(%T)", e)
	}
}
