package plan

// TableHandle is the connector's reference to a physical table. A
// nonempty Query means an earlier pushdown already attached generated
// query text to this handle; the translator only ever originates one
// query per fragment, so such handles are rejected.
type TableHandle struct {
	TableName string
	Query     string
}

// ColumnKind classifies a physical column handle.
type ColumnKind int

const (
	// ColumnRegular is a plain physical column, the only kind the
	// translator accepts.
	ColumnRegular ColumnKind = iota
	// ColumnDerived is computed by the connector outside the store.
	ColumnDerived
	// ColumnPartitionOnly exists for partition routing and carries no
	// row data.
	ColumnPartitionOnly
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnRegular:
		return "REGULAR"
	case ColumnDerived:
		return "DERIVED"
	case ColumnPartitionOnly:
		return "PARTITION_ONLY"
	default:
		return "UNKNOWN"
	}
}

// ColumnHandle is the connector's reference to a physical column.
type ColumnHandle struct {
	ColumnName string
	Kind       ColumnKind
}
