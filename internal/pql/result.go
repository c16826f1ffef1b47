package pql

// GeneratedPQL is the externally visible artifact of a successful
// translation. The execution layer may persist it (the query cache in
// internal/store does), so the JSON field names are a compatibility
// surface and must not change.
type GeneratedPQL struct {
	// Table is the physical table the query runs against.
	Table string `json:"table"`

	// Query is the PQL text.
	Query string `json:"queryText"`

	// ExpectedColumnIndices are the zero-based positions, within the
	// full (including hidden) selection list, of the externally visible
	// output columns. The consumer uses it to strip synthetic columns
	// from result rows without knowing they exist.
	ExpectedColumnIndices []int `json:"expectedColumnIndices"`

	// GroupByClauseCount is the number of group-by keys.
	GroupByClauseCount int `json:"groupByClauseCount"`

	// HasFilter reports whether the query carries a WHERE clause.
	HasFilter bool `json:"hasFilter"`

	// IsShortQuery flags fragments cheap enough for the short-circuit
	// execution strategy downstream.
	IsShortQuery bool `json:"isShortQuery"`
}

// Result pairs the generated query with the final context it was
// assembled from. The context carries provenance the execution layer
// needs when stitching rows back into the host engine's schema.
type Result struct {
	PQL     GeneratedPQL
	Context Context
}
