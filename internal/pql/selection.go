package pql

// Origin records where a selection's expression came from. Later
// translation stages use it for correctness decisions, e.g. a renamed
// literal is still usable as a percentile fraction.
type Origin int

const (
	// OriginTableColumn is a direct physical column reference.
	OriginTableColumn Origin = iota
	// OriginDerived is a computed expression (aggregate, rewritten
	// predicate, arithmetic).
	OriginDerived
	// OriginLiteral is a compile-time constant.
	OriginLiteral
)

func (o Origin) String() string {
	switch o {
	case OriginTableColumn:
		return "TABLE_COLUMN"
	case OriginDerived:
		return "DERIVED"
	case OriginLiteral:
		return "LITERAL"
	default:
		return "UNKNOWN"
	}
}

// Selection is the PQL expression backing one logical output column at a
// point in the translation. Definition is always self-contained target
// syntax, never a bare reference needing further substitution.
type Selection struct {
	Definition string
	Origin     Origin
}

func (s Selection) String() string {
	return s.Definition
}
