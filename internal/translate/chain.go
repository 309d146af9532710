package translate

import (
	"math"
	"slices"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/methods"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// Chain is the accumulated state of a query-builder chain over one mapped
// class: filter, ordering, grouping, projection and row window.
//
// Chains are immutable. Every operation returns a new chain, so a chain
// can be extended in several directions.
//
// STATE MACHINE:
//
// A chain starts unfiltered and accepts any operation. Once a row window
// exists (Take or Skip) it only accepts further Take and Skip, Select and
// terminals; Where, ordering, grouping and Reverse fail with a chain state
// error at the call that caused it.
type Chain struct {
	t     *translation
	outer *scope // lambdas enclosing the chain, for correlated references

	class *schema.Class
	alias string

	where  queryir.BoolExpr
	member queryir.BoolExpr // membership in the owning collection
	origin *collection

	order   []queryir.Expr
	desc    []bool
	ordered bool

	group  *grouping
	having queryir.BoolExpr

	proj     *expr.Lambda
	distinct bool

	offset int64
	limit  int64
}

// grouping is the element of a grouped chain: a key and the rows sharing
// it. Filters and projections applied to the grouping itself (g.Where,
// g.Select) are folded into its aggregates.
type grouping struct {
	key   *value
	keys  []queryir.Expr
	alias string
	class *schema.Class

	filter queryir.BoolExpr
	sel    *expr.Lambda
}

// rows binds p to the grouped rows.
func (g *grouping) rows(sc *scope, p *expr.Param) *scope {
	return sc.row(p, g.alias, g.class)
}

// count counts the rows of the group that satisfy extra.
func (g *grouping) count(extra queryir.BoolExpr) *value {
	f := queryir.NewAnd(g.filter, extra)
	if f == nil {
		return &value{x: call("COUNT"), kind: ir.KindInt}
	}
	return &value{x: call("COUNT", &queryir.Conditional{Test: f, Then: queryir.Lit(ir.Int(1))}), kind: ir.KindInt}
}

func (t *translation) newChain(class *schema.Class, alias string, outer *scope) *Chain {
	return &Chain{t: t, outer: outer, class: class, alias: alias, limit: -1}
}

// collectionChain starts a chain over the elements of an association.
// One-to-many membership compares the back reference with the owner; many
// to many membership goes through the link table.
func (t *translation) collectionChain(coll *collection, sc *scope) *Chain {
	c := t.newChain(coll.def.Element(), t.aliases.fresh(), sc)
	c.origin = coll
	elem := queryir.NewPath(c.alias)
	if coll.def.Kind == schema.OneToMany {
		c.member = &queryir.Relational{Op: queryir.OpEq, Left: elem.Dot(coll.def.ForeignField), Right: coll.owner}
	} else {
		c.member = &queryir.Contains{Path: coll.owner, Collection: coll.def.Name, Needle: elem}
	}
	return c
}

// chainOf translates a query expression rooted at a Source. The root gets
// alias when it is not empty.
func (t *translation) chainOf(n expr.Node, sc *scope, alias string) (*Chain, error) {
	switch x := n.(type) {
	case *expr.Source:
		class, err := t.schema.Lookup(x.Class)
		if err != nil {
			return nil, err
		}
		if alias == "" {
			alias = t.aliases.fresh()
		}
		return t.newChain(class, alias, sc), nil
	case *expr.Call:
		if x.Recv == nil {
			break
		}
		recv, err := t.chainOf(x.Recv, sc, alias)
		if err != nil {
			return nil, err
		}
		op := methods.Classify(methods.Queryable, x.Method, len(x.Args))
		if op == methods.Unknown || op.Terminal() {
			return nil, ir.Unsupported(x.String(), "%s does not continue a query", x.Method.Name)
		}
		return recv.apply(op, x)
	}
	return nil, ir.Unsupported(n.String(), "%s is not a query", n)
}

// Class returns the class of the chain's rows.
func (c *Chain) Class() *schema.Class { return c.class }

// Alias returns the alias of the chain's root.
func (c *Chain) Alias() string { return c.alias }

// Apply extends the chain with a non-terminal call such as Where or Take.
func (c *Chain) Apply(x *expr.Call) (*Chain, error) {
	op := methods.Classify(methods.Queryable, x.Method, len(x.Args))
	if op == methods.Unknown {
		return nil, ir.Unsupported(x.String(), "method %s with %d arguments has no translation", x.Method.Name, len(x.Args))
	}
	if op.Terminal() {
		return nil, ir.Unsupported(x.String(), "%s ends a query", op)
	}
	return c.apply(op, x)
}

func (c *Chain) limited() bool { return c.limit >= 0 || c.offset > 0 }

func (c *Chain) clone() *Chain {
	n := *c
	n.order = slices.Clone(c.order)
	n.desc = slices.Clone(c.desc)
	return &n
}

func (c *Chain) apply(op methods.Op, x *expr.Call) (*Chain, error) {
	switch op {
	case methods.Where:
		return c.filter(x, false)
	case methods.OrderBy, methods.OrderByDescending, methods.ThenBy, methods.ThenByDescending:
		return c.orderBy(op, x)
	case methods.Take:
		n, err := c.t.constInt(x.Args[0], c.outer, op)
		if err != nil {
			return nil, err
		}
		return c.take(n), nil
	case methods.Skip:
		n, err := c.t.constInt(x.Args[0], c.outer, op)
		if err != nil {
			return nil, err
		}
		return c.skip(n), nil
	case methods.GroupBy:
		return c.groupBy(x)
	case methods.Select:
		return c.selectOp(x)
	case methods.Reverse:
		if c.limited() {
			return nil, ir.ChainState(op.String(), "cannot reverse after Take or Skip")
		}
		return c.reverse(), nil
	case methods.Distinct:
		if c.limited() {
			return nil, ir.ChainState(op.String(), "cannot apply Distinct after Take or Skip")
		}
		n := c.clone()
		n.distinct = true
		return n, nil
	case methods.OfType:
		return c.ofType(x)
	case methods.Except, methods.Intersect, methods.Union:
		return c.setOp(op, x)
	}
	return nil, ir.Unsupported(x.String(), "%s does not continue a query", op)
}

// lambdaScope prepares a lambda over the chain's elements. On a projected
// chain the parameter stands for the projection, so its uses are replaced
// by the projection body and the body is translated over the rows.
func (c *Chain) lambdaScope(l *expr.Lambda) (expr.Node, *scope) {
	p, body := l.Params[0], l.Body
	if c.proj != nil {
		body = substitute(body, p, c.proj)
		p = c.proj.Params[0]
	}
	return body, c.elemScope(p)
}

// elemScope binds p to one element of the chain before projection.
func (c *Chain) elemScope(p *expr.Param) *scope {
	if c.group != nil {
		return c.outer.push(binding{kind: bindGroup, param: p, group: c.group})
	}
	return c.outer.row(p, c.alias, c.class)
}

// substitute rewrites body so that p.Member reads the matching member of
// the projection and bare p is the projection itself.
func substitute(body expr.Node, p *expr.Param, proj *expr.Lambda) expr.Node {
	obj, _ := proj.Body.(*expr.New)
	return expr.Replace(body, func(n expr.Node) expr.Node {
		switch x := n.(type) {
		case *expr.Member:
			if obj != nil && x.X == expr.Node(p) {
				for i, name := range obj.Members {
					if name == x.Name {
						return obj.Args[i]
					}
				}
			}
		case *expr.Param:
			if x == p {
				return proj.Body
			}
		}
		return nil
	})
}

// filter adds a Where condition (negated for All). On a grouped chain the
// condition applies to groups and becomes HAVING.
func (c *Chain) filter(x *expr.Call, negate bool) (*Chain, error) {
	if c.limited() {
		return nil, ir.ChainState("Where", "cannot filter after Take or Skip")
	}
	l, err := lambdaArg(x, 0)
	if err != nil {
		return nil, err
	}
	body, sc := c.lambdaScope(l)
	cond, err := c.t.cond(body, sc)
	if err != nil {
		return nil, err
	}
	if negate {
		cond = queryir.NewNot(cond)
	}
	n := c.clone()
	if c.group != nil {
		n.having = queryir.NewAnd(c.having, cond)
	} else {
		n.where = queryir.NewAnd(c.where, cond)
	}
	return n, nil
}

func (c *Chain) orderBy(op methods.Op, x *expr.Call) (*Chain, error) {
	if c.limited() {
		return nil, ir.ChainState(op.String(), "cannot order after Take or Skip")
	}
	then := op == methods.ThenBy || op == methods.ThenByDescending
	if then && !c.ordered {
		return nil, ir.ChainState(op.String(), "requires a preceding OrderBy")
	}
	l, err := lambdaArg(x, 0)
	if err != nil {
		return nil, err
	}
	body, sc := c.lambdaScope(l)
	v, err := c.t.scalar(body, sc)
	if err != nil {
		return nil, err
	}
	n := c.clone()
	if !then {
		n.order, n.desc = nil, nil
	}
	n.order = append(n.order, v.x)
	n.desc = append(n.desc, op == methods.OrderByDescending || op == methods.ThenByDescending)
	n.ordered = true
	return n, nil
}

// take keeps at most k rows of the current window.
func (c *Chain) take(k int64) *Chain {
	n := c.clone()
	k = max(0, k)
	if n.limit < 0 || k < n.limit {
		n.limit = k
	}
	return n
}

// skip drops the first k rows of the current window. The offset
// saturates: one that would overflow leaves no rows.
func (c *Chain) skip(k int64) *Chain {
	n := c.clone()
	if k <= 0 {
		return n
	}
	if n.limit >= 0 {
		n.limit = max(0, n.limit-k)
	}
	if n.offset > math.MaxInt64-k {
		n.limit = 0
	} else {
		n.offset += k
	}
	return n
}

func (c *Chain) groupBy(x *expr.Call) (*Chain, error) {
	switch {
	case c.limited():
		return nil, ir.ChainState("GroupBy", "cannot group after Take or Skip")
	case c.group != nil:
		return nil, ir.ChainState("GroupBy", "the chain is already grouped")
	case c.proj != nil:
		return nil, ir.ChainState("GroupBy", "cannot group a projection")
	}
	l, err := lambdaArg(x, 0)
	if err != nil {
		return nil, err
	}
	body, sc := c.lambdaScope(l)
	g := &grouping{alias: c.alias, class: c.class}

	if obj, ok := body.(*expr.New); ok {
		g.key = &value{fields: map[string]*value{}, names: obj.Members}
		for i, name := range obj.Members {
			v, err := c.t.scalar(obj.Args[i], sc)
			if err != nil {
				return nil, err
			}
			v = keyOf(v)
			g.key.fields[name] = v
			g.keys = append(g.keys, v.x)
		}
	} else {
		v, err := c.t.scalar(body, sc)
		if err != nil {
			return nil, err
		}
		g.key = keyOf(v)
		g.keys = []queryir.Expr{g.key.x}
	}

	n := c.clone()
	n.group = g
	n.order, n.desc, n.ordered = nil, nil, false
	return n, nil
}

// keyOf drops the object shape of a grouping key: an object key groups by
// and projects its primary key.
func keyOf(v *value) *value {
	if v.class == nil {
		return v
	}
	return &value{x: v.x, kind: v.kind, nullable: v.nullable}
}

func (c *Chain) selectOp(x *expr.Call) (*Chain, error) {
	if c.proj != nil {
		return nil, ir.ChainState("Select", "the chain is already projected")
	}
	l, err := lambdaArg(x, 0)
	if err != nil {
		return nil, err
	}
	if l.Body == expr.Node(l.Params[0]) && c.group == nil {
		return c, nil
	}
	if _, err := c.t.project(l.Body, c.elemScope(l.Params[0])); err != nil {
		return nil, err
	}
	n := c.clone()
	n.proj = l
	return n, nil
}

// reverse flips every ordering term. An unordered chain is ordered by
// descending primary key (group keys for a grouped chain), which reverses
// the default order.
func (c *Chain) reverse() *Chain {
	n := c.clone()
	if len(n.order) == 0 {
		if c.group != nil {
			n.order = slices.Clone(c.group.keys)
		} else {
			n.order = []queryir.Expr{queryir.NewPath(c.alias)}
		}
		n.desc = make([]bool, len(n.order))
		for i := range n.desc {
			n.desc[i] = true
		}
		return n
	}
	for i := range n.desc {
		n.desc[i] = !n.desc[i]
	}
	return n
}

// ofType narrows the chain to a subclass, is a no-op for the chain's own
// class or an ancestor, and yields nothing for an unrelated class.
func (c *Chain) ofType(x *expr.Call) (*Chain, error) {
	if len(x.Method.TypeArgs) != 1 {
		return nil, ir.Unsupported(x.String(), "OfType needs one type argument")
	}
	if c.limited() {
		return nil, ir.ChainState("OfType", "cannot narrow after Take or Skip")
	}
	if c.proj != nil || c.group != nil {
		return nil, ir.Unsupported(x.String(), "OfType applies to mapped objects")
	}
	name := x.Method.TypeArgs[0]
	if name == "object" || name == "Object" {
		return c, nil
	}
	target, ok := c.t.schema.Class(name)
	switch {
	case ok && c.class.IsA(target):
		return c, nil
	case ok && target.IsA(c.class):
		n := c.clone()
		n.class = target
		return n, nil
	}
	n := c.clone()
	n.where = queryir.False
	return n, nil
}

// setOp folds Union, Intersect and Except of two chains over the same
// class into one filter. The other operand is either a query over the same
// class or a constant sequence of objects.
func (c *Chain) setOp(op methods.Op, x *expr.Call) (*Chain, error) {
	if c.limited() || c.group != nil || c.proj != nil || c.distinct {
		return nil, ir.ChainState(op.String(), "set operations need unwindowed, unprojected chains")
	}
	arg := x.Args[0]
	var other queryir.BoolExpr
	if c.t.constant(arg, c.outer) {
		v, err := expr.Eval(arg, c.outer.env())
		if err != nil {
			return nil, err
		}
		seq, ok := hostSequence(v)
		if !ok {
			return nil, ir.Unsupported(arg.String(), "%s operand is not a sequence", op)
		}
		in, err := c.t.in(queryir.NewPath(c.alias), seq, false)
		if err != nil {
			return nil, err
		}
		other = in.x.(queryir.BoolExpr)
	} else {
		// Except tests key membership in the other operand so that rows
		// whose filter is unknown on a null column are still kept.
		alias := c.alias
		if op == methods.Except {
			alias = c.t.aliases.fresh()
		}
		oc, err := c.t.chainOf(arg, c.outer, alias)
		if err != nil {
			return nil, err
		}
		if oc.limited() || oc.group != nil || oc.proj != nil || oc.distinct {
			return nil, ir.ChainState(op.String(), "set operations need unwindowed, unprojected chains")
		}
		other = oc.where
		switch {
		case oc.class == c.class:
		case oc.class.IsA(c.class):
			other = queryir.NewAnd(classTest(objectValue(queryir.NewPath(alias), c.class), oc.class), other)
		default:
			return nil, ir.ChainState(op.String(), "operands are over %s and %s", c.class.Name, oc.class.Name)
		}
		if op == methods.Except {
			sub := oc.query()
			sub.Where = queryir.NewAnd(oc.member, other)
			other = &queryir.In{Needle: queryir.NewPath(c.alias), Query: sub}
		}
	}

	n := c.clone()
	switch op {
	case methods.Union:
		n.where = queryir.NewOr(c.where, nilTrue(other))
	case methods.Intersect:
		n.where = queryir.NewAnd(c.where, other)
	case methods.Except:
		n.where = queryir.NewAnd(c.where, queryir.NewNot(other))
	}
	return n, nil
}

func nilTrue(b queryir.BoolExpr) queryir.BoolExpr {
	if b == nil {
		return queryir.True
	}
	return b
}

// query builds the query object model query of the chain. The select list
// is left to the caller.
func (c *Chain) query() *queryir.Query {
	q := queryir.NewQuery(c.class.Name, c.alias)
	q.Where = queryir.NewAnd(c.member, c.where)
	q.OrderBy = slices.Clone(c.order)
	q.OrderDesc = slices.Clone(c.desc)
	q.Distinct = c.distinct
	q.Offset = c.offset
	q.Limit = c.limit
	if c.group != nil {
		q.GroupBy = slices.Clone(c.group.keys)
		q.Having = c.having
	}
	return q
}

// wrap returns an unwindowed chain over the rows of c: its filter is
// primary key membership in c's windowed query. Ordering does not survive
// the wrap.
func (c *Chain) wrap() *Chain {
	inner := c.query()
	inner.Distinct = false
	n := c.t.newChain(c.class, c.t.aliases.fresh(), c.outer)
	n.where = &queryir.In{Needle: queryir.NewPath(n.alias), Query: inner}
	n.proj = c.proj
	n.distinct = c.distinct
	return n
}

func (t *translation) constInt(n expr.Node, sc *scope, op methods.Op) (int64, error) {
	if !t.constant(n, sc) {
		return 0, ir.Unsupported(n.String(), "%s needs a constant count", op)
	}
	v, err := expr.Eval(n, sc.env())
	if err != nil {
		return 0, err
	}
	k, err := ir.Convert(ir.KindInt, v)
	if err != nil {
		return 0, ir.Unsupported(n.String(), "%s count: %v", op, err)
	}
	i, ok := k.(int64)
	if !ok {
		return 0, ir.Unsupported(n.String(), "%s count is null", op)
	}
	return i, nil
}
