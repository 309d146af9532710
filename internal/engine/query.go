package engine

import (
	"context"
	"fmt"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/translate"
)

// Query is an immutable query-builder chain. Builder methods return a new
// Query; terminal methods run it.
//
//	n, err := s.Query("Contact").
//		Where(expr.Fn("c", func(c expr.Node) expr.Node {
//			return expr.Eq(expr.M(c, "Type", "Code"), expr.C("Customer"))
//		})).
//		Count(ctx)
type Query struct {
	s     *Session
	node  expr.Node
	chain *translate.Chain
	err   error
}

// Err returns the first error of the chain, if any.
func (q *Query) Err() error { return q.err }

// Expr returns the expression tree built so far.
func (q *Query) Expr() expr.Node { return q.node }

// String renders the chain in lambda syntax.
func (q *Query) String() string { return q.node.String() }

func (q *Query) apply(name string, typeArgs []string, args ...expr.Node) *Query {
	if q.err != nil {
		return q
	}
	x := expr.Generic(q.node, name, typeArgs, args...)
	chain, err := q.chain.Apply(x)
	if err != nil {
		return &Query{s: q.s, node: x, err: err}
	}
	return &Query{s: q.s, node: x, chain: chain}
}

// Where keeps the elements satisfying pred.
func (q *Query) Where(pred *expr.Lambda) *Query { return q.apply("Where", nil, pred) }

// Select projects each element.
func (q *Query) Select(sel *expr.Lambda) *Query { return q.apply("Select", nil, sel) }

// OrderBy sorts ascending by key, replacing any earlier ordering.
func (q *Query) OrderBy(key *expr.Lambda) *Query { return q.apply("OrderBy", nil, key) }

// OrderByDescending sorts descending by key.
func (q *Query) OrderByDescending(key *expr.Lambda) *Query {
	return q.apply("OrderByDescending", nil, key)
}

// ThenBy adds an ascending secondary key.
func (q *Query) ThenBy(key *expr.Lambda) *Query { return q.apply("ThenBy", nil, key) }

// ThenByDescending adds a descending secondary key.
func (q *Query) ThenByDescending(key *expr.Lambda) *Query {
	return q.apply("ThenByDescending", nil, key)
}

// Take keeps at most n elements.
func (q *Query) Take(n int) *Query { return q.apply("Take", nil, expr.C(int64(n))) }

// Skip drops the first n elements.
func (q *Query) Skip(n int) *Query { return q.apply("Skip", nil, expr.C(int64(n))) }

// GroupBy groups elements by key. The chain must be projected with Select
// before it is enumerated.
func (q *Query) GroupBy(key *expr.Lambda) *Query { return q.apply("GroupBy", nil, key) }

// Reverse reverses the order.
func (q *Query) Reverse() *Query { return q.apply("Reverse", nil) }

// Distinct removes duplicate elements.
func (q *Query) Distinct() *Query { return q.apply("Distinct", nil) }

// OfType keeps the elements of class or its subclasses.
func (q *Query) OfType(class string) *Query { return q.apply("OfType", []string{class}) }

// Union keeps the elements of q or other.
func (q *Query) Union(other *Query) *Query { return q.setOp("Union", other) }

// Intersect keeps the elements of both q and other.
func (q *Query) Intersect(other *Query) *Query { return q.setOp("Intersect", other) }

// Except keeps the elements of q that are not in other.
func (q *Query) Except(other *Query) *Query { return q.setOp("Except", other) }

func (q *Query) setOp(name string, other *Query) *Query {
	if q.err == nil && other.err != nil {
		return &Query{s: q.s, node: q.node, err: other.err}
	}
	return q.apply(name, nil, other.node)
}

// Plan translates the chain ended by terminal method name.
func (q *Query) Plan(name string, args ...expr.Node) (*translate.Plan, error) {
	if q.err != nil {
		return nil, q.err
	}
	if name == "ToList" && len(args) == 0 {
		return q.chain.List()
	}
	return q.chain.Terminal(expr.CallM(q.node, name, args...))
}

// SQL converts the chain ended by ToList for the session's dialect.
func (q *Query) SQL() (*querysql.Result, error) {
	plan, err := q.Plan("ToList")
	if err != nil {
		return nil, err
	}
	return querysql.Convert(plan.Query, q.s.schema, q.s.Dialect())
}

func (q *Query) run(ctx context.Context, name string, args ...expr.Node) (any, error) {
	plan, err := q.Plan(name, args...)
	if err != nil {
		return nil, err
	}
	return q.s.execute(ctx, plan)
}

func optional(l *expr.Lambda) []expr.Node {
	if l == nil {
		return nil
	}
	return []expr.Node{l}
}

// ToList returns every element.
func (q *Query) ToList(ctx context.Context) ([]any, error) {
	v, err := q.run(ctx, "ToList")
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

// Count returns the number of elements satisfying pred, or of all
// elements when pred is nil.
func (q *Query) Count(ctx context.Context, pred ...*expr.Lambda) (int64, error) {
	v, err := q.run(ctx, "Count", lambdas(pred)...)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Any reports whether any element satisfies pred, or whether there is
// any element when pred is omitted.
func (q *Query) Any(ctx context.Context, pred ...*expr.Lambda) (bool, error) {
	v, err := q.run(ctx, "Any", lambdas(pred)...)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// All reports whether every element satisfies pred.
func (q *Query) All(ctx context.Context, pred *expr.Lambda) (bool, error) {
	v, err := q.run(ctx, "All", pred)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Contains reports whether v is an element. Objects compare by key.
func (q *Query) Contains(ctx context.Context, v any) (bool, error) {
	r, err := q.run(ctx, "Contains", expr.C(v))
	if err != nil {
		return false, err
	}
	return r.(bool), nil
}

// First returns the first element satisfying pred.
func (q *Query) First(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "First", lambdas(pred)...)
}

// FirstOrDefault is First returning the default for an empty result.
func (q *Query) FirstOrDefault(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "FirstOrDefault", lambdas(pred)...)
}

// Last returns the last element satisfying pred.
func (q *Query) Last(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "Last", lambdas(pred)...)
}

// LastOrDefault is Last returning the default for an empty result.
func (q *Query) LastOrDefault(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "LastOrDefault", lambdas(pred)...)
}

// Single returns the only element satisfying pred and fails when there
// are none or several.
func (q *Query) Single(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "Single", lambdas(pred)...)
}

// SingleOrDefault is Single returning the default for an empty result.
func (q *Query) SingleOrDefault(ctx context.Context, pred ...*expr.Lambda) (any, error) {
	return q.run(ctx, "SingleOrDefault", lambdas(pred)...)
}

// ElementAt returns the element at index i.
func (q *Query) ElementAt(ctx context.Context, i int) (any, error) {
	return q.run(ctx, "ElementAt", expr.C(int64(i)))
}

// ElementAtOrDefault is ElementAt returning the default out of range.
func (q *Query) ElementAtOrDefault(ctx context.Context, i int) (any, error) {
	return q.run(ctx, "ElementAtOrDefault", expr.C(int64(i)))
}

// Sum adds sel over the elements (the elements themselves when sel is nil).
func (q *Query) Sum(ctx context.Context, sel *expr.Lambda) (any, error) {
	return q.run(ctx, "Sum", optional(sel)...)
}

// Average averages sel over the elements.
func (q *Query) Average(ctx context.Context, sel *expr.Lambda) (any, error) {
	return q.run(ctx, "Average", optional(sel)...)
}

// Min returns the smallest sel.
func (q *Query) Min(ctx context.Context, sel *expr.Lambda) (any, error) {
	return q.run(ctx, "Min", optional(sel)...)
}

// Max returns the largest sel.
func (q *Query) Max(ctx context.Context, sel *expr.Lambda) (any, error) {
	return q.run(ctx, "Max", optional(sel)...)
}

func lambdas(ls []*expr.Lambda) []expr.Node {
	if len(ls) > 1 {
		panic(fmt.Sprintf("at most one predicate, got %d", len(ls)))
	}
	var out []expr.Node
	for _, l := range ls {
		out = append(out, optional(l)...)
	}
	return out
}
