// Package pql translates pushdown plan fragments into PQL, the target
// store's native query language.
//
// The translator is a bottom-up walk over the sealed plan.Node variant
// set. Each node consumes its child's generation context and produces a
// new one; contexts are immutable values and every transition copies.
// The root context is finally assembled into a GeneratedPQL.
//
// Translation is best-effort and fails closed: any construct outside the
// supported subset aborts the whole attempt, and Generator.Generate
// reports absence rather than an error. Callers fall back to pulling
// rows out of the store and evaluating locally.
//
// The translator holds no mutable shared state and performs no I/O; one
// Generator may serve concurrent translations.
package pql
