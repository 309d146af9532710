// Package engine executes translated queries and materializes their rows.
//
// ARCHITECTURE:
//
//	Session.Query("Contact")        fluent chain, one expr.Call per step
//	    .Where(...).OrderBy(...)    ─► translate.Chain (immutable)
//	    .ToList(ctx)                ─► translate.Plan
//	                                ─► querysql.Convert (dialect of the store)
//	                                ─► Statement.Bind ─► store.Query
//	                                ─► rows shaped by Plan.Shape
//
// Query Executor:
// Each builder call classifies its method, applies it to the accumulated
// chain and returns a new Query. The first error sticks: later calls are
// no-ops and the terminal returns it without touching the database. A
// terminal call plans the chain, converts it for the store's dialect,
// executes it once and shapes the rows: a list, one element, a count, a
// boolean or an aggregate.
//
// Materialization:
// Mapped rows become *Object values whose class is chosen by the
// discriminator. Projections receive their fetched select items and run
// their client-side remainder. WithMaterializer replaces *Object.
//
// Statement cache:
// Load(ctx, class, pk) converts a load-by-key query once per (class,
// dialect) and rebinds the key on every call. Concurrent first loads
// convert once (singleflight).
//
// CRITICAL PATTERNS:
//
// Deterministic ordering:
// Unordered enumeration follows the database's order, except that Last,
// Reverse and grouped queries order by primary key or group key so the
// result is stable.
//
// Empty aggregates:
// Min, Max and Average over no rows fail with EMPTY_AGGREGATE unless the
// selector is nullable (the result is then nil); Sum yields zero. COUNT(*)
// is fetched with the aggregate to tell an empty source from all NULLs.
package engine
