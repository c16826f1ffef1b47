// Package plan models the fragment of a relational query plan that the
// pushdown translator understands.
//
// The plan is a closed variant set: table scan, filter, project,
// aggregation, limit and top-N. Node and Expression are sealed interfaces
// using the marker method pattern, so backend translators can rely on
// exhaustive type switches: every node kind is either handled or
// explicitly rejected, never silently skipped.
//
// A plan fragment is a linear chain (each node has exactly one source,
// scans have none). Plans are built by the host engine or, for tooling,
// by the YAML loader in internal/cli. The package also provides a
// canonical fingerprint used as the cache key for generated queries.
package plan
