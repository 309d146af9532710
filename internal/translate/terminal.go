package translate

import (
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/methods"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// Shape says how the fetched rows of a plan become its result.
type Shape int

const (
	// Rows returns every row.
	Rows Shape = iota

	// FirstRow returns the first row; the query fetches at most one.
	FirstRow

	// LastRow returns the last fetched row.
	LastRow

	// SingleRow returns the only row; the query fetches at most two so a
	// second row can be reported.
	SingleRow

	// CountRows returns the number of fetched rows.
	CountRows

	// ScalarCount returns the single COUNT(*) value of the query.
	ScalarCount

	// Exists reports whether any row was fetched.
	Exists

	// AggregateValue returns an aggregate. The query selects the aggregate
	// and COUNT(*) so an empty source can be told apart from all NULLs.
	AggregateValue
)

var shapeNames = [...]string{"Rows", "FirstRow", "LastRow", "SingleRow", "CountRows", "ScalarCount", "Exists", "AggregateValue"}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "Unknown"
	}
	return shapeNames[s]
}

// Plan is a fully translated chain: the query to run and how to shape its
// rows into the result of the terminal operation.
type Plan struct {
	Op    methods.Op
	Shape Shape
	Query *queryir.Query

	// Class is the static class of the rows when they are mapped objects
	// (Projection is nil and the shape yields elements).
	Class *schema.Class

	// Projection builds each element from the fetched select items.
	Projection *Projection

	// Aggregate is SUM, AVG, MIN or MAX for AggregateValue plans; Kind is
	// the kind of its result and Nullable reports whether the selector can
	// be NULL, in which case an empty source yields nil instead of an error.
	Aggregate string
	Kind      ir.Kind
	Nullable  bool

	// Negate inverts an Exists result (All).
	Negate bool
}

// List plans enumerating the chain.
func (c *Chain) List() (*Plan, error) {
	return c.rows(methods.ToList, Rows)
}

// Terminal plans a terminal call such as Count or First on the chain.
func (c *Chain) Terminal(x *expr.Call) (*Plan, error) {
	op := methods.Classify(methods.Queryable, x.Method, len(x.Args))
	if !op.Terminal() {
		return nil, ir.Unsupported(x.String(), "%s does not end a query", x.Method.Name)
	}
	return c.terminal(op, x)
}

func (c *Chain) terminal(op methods.Op, x *expr.Call) (*Plan, error) {
	src := c
	switch op {
	case methods.CountFiltered, methods.LongCountFiltered, methods.AnyFiltered,
		methods.FirstFiltered, methods.FirstOrDefaultFiltered,
		methods.LastFiltered, methods.LastOrDefaultFiltered,
		methods.SingleFiltered, methods.SingleOrDefaultFiltered:
		n, err := c.filtered(x, false)
		if err != nil {
			return nil, err
		}
		src = n
	case methods.All:
		n, err := c.filtered(x, true)
		if err != nil {
			return nil, err
		}
		src = n
	case methods.Contains:
		n, err := c.containing(x.Args[0])
		if err != nil {
			return nil, err
		}
		src = n
	}

	switch op {
	case methods.ToList:
		return src.rows(op, Rows)
	case methods.Count, methods.CountFiltered, methods.LongCount, methods.LongCountFiltered:
		return src.count(op)
	case methods.Any, methods.AnyFiltered, methods.Contains:
		return src.exists(op, false)
	case methods.All:
		return src.exists(op, true)
	case methods.First, methods.FirstFiltered, methods.FirstOrDefault, methods.FirstOrDefaultFiltered:
		return src.take(1).rows(op, FirstRow)
	case methods.Last, methods.LastFiltered, methods.LastOrDefault, methods.LastOrDefaultFiltered:
		if src.limited() {
			return src.rows(op, LastRow)
		}
		return src.reverse().take(1).rows(op, FirstRow)
	case methods.Single, methods.SingleFiltered, methods.SingleOrDefault, methods.SingleOrDefaultFiltered:
		return src.take(2).rows(op, SingleRow)
	case methods.ElementAt, methods.ElementAtOrDefault:
		i, err := c.t.constInt(x.Args[0], c.outer, op)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return src.take(0).rows(op, FirstRow)
		}
		return src.skip(i).take(1).rows(op, FirstRow)
	case methods.Sum, methods.SumSelector, methods.Average, methods.AverageSelector,
		methods.Min, methods.MinSelector, methods.Max, methods.MaxSelector:
		return src.aggregate(op, x)
	}
	return nil, ir.Unsupported(x.String(), "%s has no translation", op)
}

// filtered applies a terminal's predicate. A windowed chain is wrapped
// first so the predicate sees only the window's rows.
func (c *Chain) filtered(x *expr.Call, negate bool) (*Chain, error) {
	base := c
	if c.limited() {
		if c.group != nil {
			return nil, ir.Unsupported(x.String(), "filtering a windowed grouping")
		}
		base = c.wrap()
	}
	return base.filter(x, negate)
}

// containing filters the chain to elements equal to needle.
func (c *Chain) containing(needle expr.Node) (*Chain, error) {
	p := expr.P("e")
	return c.filtered(expr.CallM(nil, "Where", expr.L(expr.Eq(p, needle), p)), false)
}

// rows plans fetching the chain's elements.
func (c *Chain) rows(op methods.Op, shape Shape) (*Plan, error) {
	q := c.query()
	plan := &Plan{Op: op, Shape: shape, Query: q}
	switch {
	case c.proj != nil:
		p, err := c.t.project(c.proj.Body, c.elemScope(c.proj.Params[0]))
		if err != nil {
			return nil, err
		}
		q.Select, q.SelectAliases = p.items, p.aliases
		plan.Projection = p
	case c.group != nil:
		return nil, ir.Unsupported(c.class.Name, "a grouped query must end in Select")
	default:
		plan.Class = c.class
	}
	if c.group != nil && len(q.OrderBy) == 0 {
		q.OrderBy = c.group.keys
		q.OrderDesc = make([]bool, len(q.OrderBy))
	}
	return plan, nil
}

// count plans Count. Grouped chains and distinct projections count the
// rows enumeration would return; a windowed chain is wrapped.
func (c *Chain) count(op methods.Op) (*Plan, error) {
	if c.group != nil || (c.distinct && c.proj != nil) {
		return c.rows(op, CountRows)
	}
	base := c
	if c.limited() {
		base = c.wrap()
	}
	q := base.query()
	q.OrderBy, q.OrderDesc, q.Distinct = nil, nil, false
	q.Select = []queryir.Expr{call("COUNT")}
	return &Plan{Op: op, Shape: ScalarCount, Query: q, Kind: ir.KindInt}, nil
}

// exists plans Any and All: fetch at most one key.
func (c *Chain) exists(op methods.Op, negate bool) (*Plan, error) {
	n := c.take(1)
	q := n.query()
	if !c.limited() {
		q.OrderBy, q.OrderDesc = nil, nil
	}
	switch {
	case c.group != nil:
		q.Select = c.group.keys
	case c.distinct && c.proj != nil:
		p, err := c.t.project(c.proj.Body, c.elemScope(c.proj.Params[0]))
		if err != nil {
			return nil, err
		}
		q.Select = p.items
	default:
		q.Distinct = false
		q.Select = []queryir.Expr{queryir.NewPath(c.alias)}
	}
	return &Plan{Op: op, Shape: Exists, Query: q, Negate: negate}, nil
}

// aggregate plans Sum, Average, Min and Max. The selector is the call's
// lambda or, without one, the chain's single-valued projection.
func (c *Chain) aggregate(op methods.Op, x *expr.Call) (*Plan, error) {
	if c.group != nil {
		return nil, ir.Unsupported(x.String(), "%s over groups", op)
	}
	if c.distinct && c.proj != nil {
		return nil, ir.Unsupported(x.String(), "%s over a distinct projection", op)
	}
	var body expr.Node
	var sc *scope
	base := c
	if len(x.Args) == 1 {
		l, err := lambdaArg(x, 0)
		if err != nil {
			return nil, err
		}
		if c.limited() {
			base = c.wrap()
		}
		body, sc = base.lambdaScope(l)
	} else {
		if c.proj == nil {
			return nil, ir.Unsupported(x.String(), "%s over mapped objects needs a selector", op)
		}
		if c.limited() {
			base = c.wrap()
		}
		body, sc = base.proj.Body, base.elemScope(base.proj.Params[0])
	}

	v, err := c.t.scalar(body, sc)
	if err != nil {
		return nil, err
	}
	name := aggregateNames[op]
	kind := v.kind
	if name == "AVG" {
		kind = ir.KindFloat
	}

	q := base.query()
	q.OrderBy, q.OrderDesc, q.Distinct = nil, nil, false
	q.Select = []queryir.Expr{call(name, v.x), call("COUNT")}
	return &Plan{
		Op:        op,
		Shape:     AggregateValue,
		Query:     q,
		Aggregate: name,
		Kind:      kind,
		Nullable:  v.nullable,
	}, nil
}

// chainTerminal translates a terminal applied to a nested chain into a SQL
// expression: a collection test, a scalar subquery or EXISTS.
func (t *translation) chainTerminal(c *Chain, op methods.Op, x *expr.Call) (*value, error) {
	src := c
	switch op {
	case methods.CountFiltered, methods.LongCountFiltered, methods.AnyFiltered,
		methods.FirstFiltered, methods.FirstOrDefaultFiltered:
		n, err := c.filtered(x, false)
		if err != nil {
			return nil, err
		}
		src = n
	case methods.All:
		n, err := c.filtered(x, true)
		if err != nil {
			return nil, err
		}
		src = n
	}
	simple := src.origin != nil && !src.limited() && src.group == nil && src.proj == nil && !src.distinct

	switch op {
	case methods.Count, methods.CountFiltered, methods.LongCount, methods.LongCountFiltered:
		if simple {
			return &value{x: &queryir.CountOf{
				Path:       src.origin.owner,
				Collection: src.origin.def.Name,
				Alias:      src.alias,
				Where:      src.where,
			}, kind: ir.KindInt}, nil
		}
		plan, err := src.count(op)
		if err != nil {
			return nil, err
		}
		if plan.Shape != ScalarCount {
			return nil, ir.Unsupported(c.class.Name, "%s of a grouped or distinct subquery", op)
		}
		return &value{x: &queryir.Subquery{Query: plan.Query}, kind: ir.KindInt}, nil

	case methods.Any, methods.AnyFiltered, methods.All:
		var b queryir.BoolExpr
		if simple {
			b = &queryir.Contains{
				Path:       src.origin.owner,
				Collection: src.origin.def.Name,
				Alias:      src.alias,
				Where:      src.where,
			}
		} else {
			plan, err := src.exists(op, false)
			if err != nil {
				return nil, err
			}
			b = &queryir.Exists{Query: plan.Query}
		}
		if op == methods.All {
			b = queryir.NewNot(b)
		}
		return boolValue(b), nil

	case methods.Contains:
		needle, err := t.scalar(x.Args[0], c.outer)
		if err != nil {
			return nil, err
		}
		if simple {
			return boolValue(&queryir.Contains{
				Path:       src.origin.owner,
				Collection: src.origin.def.Name,
				Needle:     needle.x,
				Alias:      src.alias,
				Where:      src.where,
			}), nil
		}
		q, _, err := src.column(x)
		if err != nil {
			return nil, err
		}
		return boolValue(&queryir.In{Needle: needle.x, Query: q}), nil

	case methods.First, methods.FirstFiltered, methods.FirstOrDefault, methods.FirstOrDefaultFiltered:
		q, v, err := src.take(1).column(x)
		if err != nil {
			return nil, err
		}
		return &value{x: &queryir.Subquery{Query: q}, kind: v.kind, nullable: true}, nil

	case methods.Sum, methods.SumSelector, methods.Average, methods.AverageSelector,
		methods.Min, methods.MinSelector, methods.Max, methods.MaxSelector:
		plan, err := src.aggregate(op, x)
		if err != nil {
			return nil, err
		}
		q := plan.Query
		q.Select = q.Select[:1]
		var out queryir.Expr = &queryir.Subquery{Query: q}
		if plan.Aggregate == "SUM" {
			out = call("COALESCE", out, queryir.Lit(zeroOf(plan.Kind)))
		}
		return &value{x: out, kind: plan.Kind, nullable: plan.Aggregate != "SUM"}, nil
	}
	return nil, ir.Unsupported(c.class.Name, "%s has no translation inside an expression", op)
}

// column builds a one-column query over the chain: the projection when it
// is a single scalar, otherwise the primary key.
func (c *Chain) column(x *expr.Call) (*queryir.Query, *value, error) {
	q := c.query()
	if c.proj == nil {
		if c.group != nil {
			return nil, nil, ir.Unsupported(x.String(), "a grouped subquery must be projected")
		}
		q.Select = []queryir.Expr{queryir.NewPath(c.alias)}
		return q, &value{kind: keyKind(c.class)}, nil
	}
	v, err := c.t.scalar(c.proj.Body, c.elemScope(c.proj.Params[0]))
	if err != nil {
		return nil, nil, err
	}
	q.Select = []queryir.Expr{v.x}
	return q, v, nil
}

func zeroOf(k ir.Kind) ir.Value {
	if k == ir.KindFloat {
		return ir.Float(0)
	}
	return ir.Int(0)
}
