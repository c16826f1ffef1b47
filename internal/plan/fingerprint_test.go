package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScan(table string, cols ...string) *TableScanNode {
	assignments := make(map[Variable]ColumnHandle, len(cols))
	outputs := make([]Variable, 0, len(cols))
	for _, c := range cols {
		v := Variable(c)
		outputs = append(outputs, v)
		assignments[v] = ColumnHandle{ColumnName: c, Kind: ColumnRegular}
	}
	return &TableScanNode{
		Table:       TableHandle{TableName: table},
		Outputs:     outputs,
		Assignments: assignments,
	}
}

func testFilter(source Node, predicate Expression) *FilterNode {
	return &FilterNode{Source: source, Predicate: predicate, Outputs: source.(*TableScanNode).Outputs}
}

func gt(v Variable, n string) Expression {
	return &CallExpr{Name: ">", Args: []Expression{
		&VariableExpr{Name: v},
		&ConstantExpr{Value: n, Kind: ConstantNumber},
	}}
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint(testFilter(testScan("T", "a", "b"), gt("a", "5")))
	b := Fingerprint(testFilter(testScan("T", "a", "b"), gt("a", "5")))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha256
}

func TestFingerprint_SensitiveToPlanShape(t *testing.T) {
	base := Fingerprint(testFilter(testScan("T", "a", "b"), gt("a", "5")))

	differentConstant := Fingerprint(testFilter(testScan("T", "a", "b"), gt("a", "6")))
	assert.NotEqual(t, base, differentConstant)

	differentTable := Fingerprint(testFilter(testScan("U", "a", "b"), gt("a", "5")))
	assert.NotEqual(t, base, differentTable)

	noFilter := Fingerprint(testScan("T", "a", "b"))
	assert.NotEqual(t, base, noFilter)
}

func TestFingerprint_SensitiveToLabels(t *testing.T) {
	n := testScan("T", "a")
	plain := Fingerprint(n)
	labeled := Fingerprint(n, "broker=true")
	relabeled := Fingerprint(n, "broker=false")

	assert.NotEqual(t, plain, labeled)
	assert.NotEqual(t, labeled, relabeled)
	assert.Equal(t, labeled, Fingerprint(n, "broker=true"))
}

func TestFingerprint_NormalizesIdentifiers(t *testing.T) {
	// U+00E9 (precomposed) vs U+0065 U+0301 (combining accent): both
	// render as "é" and must address the same cache entry.
	composed := Fingerprint(testScan("caf\u00e9", "a"))
	decomposed := Fingerprint(testScan("cafe\u0301", "a"))
	require.Equal(t, composed, decomposed)
}

func TestFingerprint_CaseInsensitiveCallNames(t *testing.T) {
	agg := func(name string) Node {
		return &AggregationNode{
			Source: testScan("T", "a"),
			Columns: []AggregationColumn{
				&AggregateColumn{
					Call:   &CallExpr{Name: name, Args: []Expression{&VariableExpr{Name: "a"}}},
					Output: "s",
				},
			},
		}
	}
	assert.Equal(t, Fingerprint(agg("sum")), Fingerprint(agg("SUM")))
}
