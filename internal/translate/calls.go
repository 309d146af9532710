package translate

import (
	"strings"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/methods"
	"github.com/roach88/sooq/internal/queryir"
)

// call translates a method call. The declaring type is taken from the
// call when given and otherwise inferred from what the receiver
// translated to.
func (t *translation) call(x *expr.Call, sc *scope) (*value, error) {
	var recv *value
	typ := x.Method.Type
	if x.Recv != nil {
		v, err := t.value(x.Recv, sc)
		if err != nil {
			return nil, err
		}
		recv = v
		if typ == "" {
			typ = receiverType(v)
		}
	}
	if typ == "" {
		return nil, ir.Unsupported(x.String(), "static call %s has no declaring type", x.Method.Name)
	}

	op := methods.Classify(typ, x.Method, len(x.Args))
	if op == methods.Unknown {
		return nil, ir.Unsupported(x.String(), "method %s.%s with %d arguments has no translation", typ, x.Method.Name, len(x.Args))
	}

	switch op {
	case methods.Equals, methods.ToString, methods.GetPrimaryKeyValue:
		if recv == nil || recv.x == nil {
			return nil, ir.Unsupported(x.String(), "%s needs a scalar or object receiver", x.Method.Name)
		}
	}

	switch op {
	case methods.Equals:
		return t.compare(&expr.Binary{Op: expr.OpEq, X: x.Recv, Y: x.Args[0]}, sc)
	case methods.ToString:
		if recv.kind == ir.KindString && recv.class == nil {
			return recv, nil
		}
		return &value{x: &queryir.Cast{X: recv.x, Kind: ir.KindString}, kind: ir.KindString, nullable: recv.nullable}, nil
	case methods.GetPrimaryKeyValue:
		if recv.class == nil {
			return nil, ir.Unsupported(x.String(), "%s is not a mapped object", x.Recv)
		}
		return &value{x: recv.x, kind: recv.kind, nullable: recv.nullable}, nil
	}

	if !receiverFits(typ, recv) {
		return nil, ir.Unsupported(x.String(), "%s is not a %s receiver", x.Recv, typ)
	}
	switch typ {
	case methods.String:
		return t.stringCall(op, x, recv, sc)
	case methods.Math:
		return t.mathCall(op, x, sc)
	case methods.Collection:
		c := t.collectionChain(recv.coll, sc)
		if op.Terminal() {
			return t.chainTerminal(c, op, x)
		}
		n, err := c.apply(op, x)
		if err != nil {
			return nil, err
		}
		return &value{chain: n}, nil
	case methods.Queryable:
		if op.Terminal() {
			return t.chainTerminal(recv.chain, op, x)
		}
		n, err := recv.chain.apply(op, x)
		if err != nil {
			return nil, err
		}
		return &value{chain: n}, nil
	case methods.Grouping:
		return t.groupCall(op, x, recv.group, sc)
	case methods.Enumerable:
		return t.sequenceCall(op, x, recv, sc)
	}
	return nil, ir.Unsupported(x.String(), "method %s has no translation on %s", x.Method.Name, typ)
}

// receiverFits reports whether recv has the shape typ's operations need.
// String and Math calls may be static.
func receiverFits(typ string, recv *value) bool {
	switch typ {
	case methods.Queryable:
		return recv != nil && recv.chain != nil
	case methods.Collection:
		return recv != nil && recv.coll != nil
	case methods.Grouping:
		return recv != nil && recv.group != nil
	case methods.Enumerable:
		return recv != nil && recv.isSeq
	}
	return true
}

// receiverType infers the declaring type of a method from its receiver.
func receiverType(v *value) string {
	switch {
	case v.chain != nil:
		return methods.Queryable
	case v.coll != nil:
		return methods.Collection
	case v.group != nil:
		return methods.Grouping
	case v.isSeq:
		return methods.Enumerable
	case v.class != nil:
		return methods.Object
	case v.kind == ir.KindString:
		return methods.String
	}
	return methods.Object
}

func (t *translation) args(x *expr.Call, sc *scope) ([]*value, error) {
	out := make([]*value, len(x.Args))
	for i, a := range x.Args {
		v, err := t.scalar(a, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *translation) stringCall(op methods.Op, x *expr.Call, recv *value, sc *scope) (*value, error) {
	args, err := t.args(x, sc)
	if err != nil {
		return nil, err
	}

	switch op {
	case methods.StringIsNullOrEmpty:
		v := args[0]
		return boolValue(queryir.NewOr(
			&queryir.IsNull{X: v.x},
			&queryir.Relational{Op: queryir.OpEq, Left: v.x, Right: queryir.Lit(ir.NewString(""))},
		)), nil
	case methods.StringConcat:
		out := asString(args[0])
		for _, a := range args[1:] {
			out = concat(out, asString(a))
		}
		return &value{x: out, kind: ir.KindString, nullable: true}, nil
	}

	if recv == nil || recv.x == nil {
		return nil, ir.Unsupported(x.String(), "String.%s needs a string receiver", x.Method.Name)
	}
	s := recv.x
	str := func(e queryir.Expr) *value {
		return &value{x: e, kind: ir.KindString, nullable: recv.nullable}
	}

	switch op {
	case methods.StringToUpper:
		return str(call("UPPER", s)), nil
	case methods.StringToLower:
		return str(call("LOWER", s)), nil
	case methods.StringTrim:
		return str(call("TRIM", s)), nil
	case methods.StringReplace:
		return str(call("REPLACE", s, args[0].x, args[1].x)), nil
	case methods.StringSubstring:
		return str(call("SUBSTRING_FROM", s, plusOne(args[0]))), nil
	case methods.StringSubstringLength:
		return str(call("SUBSTRING", s, plusOne(args[0]), args[1].x)), nil
	case methods.StringRemove:
		return str(call("SUBSTRING", s, queryir.Lit(ir.Int(1)), args[0].x)), nil
	case methods.StringRemoveCount:
		head := call("SUBSTRING", s, queryir.Lit(ir.Int(1)), args[0].x)
		from := &value{x: &queryir.Arithmetic{Op: queryir.OpAdd, Left: args[0].x, Right: args[1].x}, kind: ir.KindInt}
		if a, ok := intConst(args[0]); ok {
			if b, ok := intConst(args[1]); ok {
				from = &value{x: queryir.Lit(ir.Int(a + b)), kind: ir.KindInt, constant: true, raw: a + b}
			}
		}
		return str(concat(head, call("SUBSTRING_FROM", s, plusOne(from)))), nil
	case methods.StringLike:
		return boolValue(&queryir.Relational{Op: queryir.OpLike, Left: s, Right: args[0].x}), nil
	case methods.StringStartsWith:
		return t.like(recv, args[0], false, true)
	case methods.StringEndsWith:
		return t.like(recv, args[0], true, false)
	case methods.StringContains:
		return t.like(recv, args[0], true, true)
	}
	return nil, ir.Unsupported(x.String(), "String.%s has no translation", x.Method.Name)
}

// like matches recv against arg with wildcards on the requested sides.
// A constant argument is folded into the pattern. One that itself contains
// wildcard characters is compared by position instead, since LIKE has no
// portable escape.
func (t *translation) like(recv, arg *value, leading, trailing bool) (*value, error) {
	s, isConst := arg.raw.(string)
	if arg.constant && isConst {
		if !strings.ContainsAny(s, "%_[") {
			pattern := s
			if leading {
				pattern = "%" + pattern
			}
			if trailing {
				pattern += "%"
			}
			return boolValue(&queryir.Relational{Op: queryir.OpLike, Left: recv.x, Right: queryir.Lit(ir.NewString(pattern))}), nil
		}
		n := ir.Int(len([]rune(s)))
		switch {
		case !leading:
			part := call("SUBSTRING", recv.x, queryir.Lit(ir.Int(1)), queryir.Lit(n))
			return boolValue(&queryir.Relational{Op: queryir.OpEq, Left: part, Right: arg.x}), nil
		case !trailing:
			start := &queryir.Arithmetic{
				Op:    queryir.OpSub,
				Left:  call("LENGTH", recv.x),
				Right: queryir.Lit(n - 1),
			}
			part := call("SUBSTRING_FROM", recv.x, start)
			return boolValue(&queryir.Relational{Op: queryir.OpEq, Left: part, Right: arg.x}), nil
		}
		return nil, ir.Unsupported(s, "Contains with a pattern containing LIKE wildcards")
	}

	pattern := arg.x
	if leading {
		pattern = concat(queryir.Lit(ir.NewString("%")), pattern)
	}
	if trailing {
		pattern = concat(pattern, queryir.Lit(ir.NewString("%")))
	}
	return boolValue(&queryir.Relational{Op: queryir.OpLike, Left: recv.x, Right: pattern}), nil
}

var mathFunctions = map[methods.Op]string{
	methods.MathAbs:         "ABS",
	methods.MathAcos:        "ACOS",
	methods.MathAsin:        "ASIN",
	methods.MathAtan:        "ATAN",
	methods.MathCeiling:     "CEILING",
	methods.MathCos:         "COS",
	methods.MathExp:         "EXP",
	methods.MathFloor:       "FLOOR",
	methods.MathLog:         "LN",
	methods.MathPow:         "POWER",
	methods.MathRound:       "ROUND",
	methods.MathRoundDigits: "ROUND",
	methods.MathSign:        "SIGN",
	methods.MathSin:         "SIN",
	methods.MathSqrt:        "SQRT",
	methods.MathTan:         "TAN",
}

func (t *translation) mathCall(op methods.Op, x *expr.Call, sc *scope) (*value, error) {
	name, ok := mathFunctions[op]
	if !ok {
		return nil, ir.Unsupported(x.String(), "Math.%s has no translation", x.Method.Name)
	}
	args, err := t.args(x, sc)
	if err != nil {
		return nil, err
	}
	exprs := make([]queryir.Expr, len(args))
	out := &value{kind: ir.KindFloat}
	for i, a := range args {
		exprs[i] = a.x
		out.nullable = out.nullable || a.nullable
	}
	out.x = call(name, exprs...)
	switch op {
	case methods.MathAbs:
		out.kind = args[0].kind
	case methods.MathSign:
		out.kind = ir.KindInt
	}
	return out, nil
}

// groupCall translates an aggregate over the rows of a grouping. Filters
// become conditional aggregates so they apply per group:
//
//	g.Count(c => c.Active)  →  COUNT(CASE WHEN t0.active = 1 THEN 1 END)
func (t *translation) groupCall(op methods.Op, x *expr.Call, g *grouping, sc *scope) (*value, error) {
	lambda := func() (*expr.Lambda, error) { return lambdaArg(x, 0) }
	rowCond := func() (queryir.BoolExpr, error) {
		l, err := lambda()
		if err != nil {
			return nil, err
		}
		l = g.compose(l)
		return t.cond(l.Body, g.rows(sc, l.Params[0]))
	}
	gt := func(v *value, op queryir.RelOp) *value {
		return boolValue(&queryir.Relational{Op: op, Left: v.x, Right: queryir.Lit(ir.Int(0))})
	}

	switch op {
	case methods.Where:
		if g.sel != nil {
			return nil, ir.ChainState(op.String(), "a projected grouping cannot be filtered")
		}
		c, err := rowCond()
		if err != nil {
			return nil, err
		}
		n := *g
		n.filter = queryir.NewAnd(g.filter, c)
		return &value{group: &n}, nil
	case methods.Select:
		if g.sel != nil {
			return nil, ir.ChainState(op.String(), "the grouping is already projected")
		}
		l, err := lambda()
		if err != nil {
			return nil, err
		}
		n := *g
		n.sel = l
		return &value{group: &n}, nil
	case methods.Count, methods.LongCount:
		return g.count(nil), nil
	case methods.CountFiltered, methods.LongCountFiltered:
		c, err := rowCond()
		if err != nil {
			return nil, err
		}
		return g.count(c), nil
	case methods.Any:
		return gt(g.count(nil), queryir.OpGt), nil
	case methods.AnyFiltered:
		c, err := rowCond()
		if err != nil {
			return nil, err
		}
		return gt(g.count(c), queryir.OpGt), nil
	case methods.All:
		c, err := rowCond()
		if err != nil {
			return nil, err
		}
		return gt(g.count(queryir.NewNot(c)), queryir.OpEq), nil
	case methods.SumSelector, methods.AverageSelector, methods.MinSelector, methods.MaxSelector:
		l, err := lambda()
		if err != nil {
			return nil, err
		}
		return t.groupAggregate(op, g, g.compose(l), sc)
	case methods.Sum, methods.Average, methods.Min, methods.Max:
		if g.sel == nil {
			return nil, ir.Unsupported(x.String(), "%s over grouped objects needs a selector", op)
		}
		return t.groupAggregate(op, g, g.sel, sc)
	}
	return nil, ir.Unsupported(x.String(), "%s has no translation on a grouping", op)
}

// compose rewrites l to read the grouped row directly when the grouping is
// projected: after g.Select(x => x.Salary), Max(v => v) becomes
// Max(x => x.Salary).
func (g *grouping) compose(l *expr.Lambda) *expr.Lambda {
	if g.sel == nil {
		return l
	}
	return expr.L(substitute(l.Body, l.Params[0], g.sel), g.sel.Params[0])
}

var aggregateNames = map[methods.Op]string{
	methods.Sum:             "SUM",
	methods.SumSelector:     "SUM",
	methods.Average:         "AVG",
	methods.AverageSelector: "AVG",
	methods.Min:             "MIN",
	methods.MinSelector:     "MIN",
	methods.Max:             "MAX",
	methods.MaxSelector:     "MAX",
}

func (t *translation) groupAggregate(op methods.Op, g *grouping, sel *expr.Lambda, sc *scope) (*value, error) {
	v, err := t.scalar(sel.Body, g.rows(sc, sel.Params[0]))
	if err != nil {
		return nil, err
	}
	arg := v.x
	if g.filter != nil {
		arg = &queryir.Conditional{Test: g.filter, Then: arg}
	}
	name := aggregateNames[op]
	kind := v.kind
	if name == "AVG" {
		kind = ir.KindFloat
	}
	return &value{x: call(name, arg), kind: kind, nullable: true}, nil
}

// sequenceCall translates an operation on a constant host sequence whose
// arguments depend on the rows. Membership becomes IN; predicates are
// expanded once per element.
func (t *translation) sequenceCall(op methods.Op, x *expr.Call, recv *value, sc *scope) (*value, error) {
	switch op {
	case methods.Contains:
		needle, err := t.scalar(x.Args[0], sc)
		if err != nil {
			return nil, err
		}
		return t.in(needle.x, recv.seq, false)
	case methods.AnyFiltered, methods.All:
		l, err := lambdaArg(x, 0)
		if err != nil {
			return nil, err
		}
		all := op == methods.All
		if other, ok := equalityOn(l, all); ok {
			needle, err := t.scalar(other, sc)
			if err != nil {
				return nil, err
			}
			return t.in(needle.x, recv.seq, all)
		}
		var parts []queryir.BoolExpr
		for _, elem := range recv.seq {
			c, err := t.cond(l.Body, sc.push(binding{kind: bindConst, param: l.Params[0], value: elem}))
			if err != nil {
				return nil, err
			}
			parts = append(parts, c)
		}
		if all {
			return boolValue(queryir.NewAnd(parts...)), nil
		}
		return boolValue(queryir.NewOr(parts...)), nil
	}
	return nil, ir.Unsupported(x.String(), "%s on a host collection has no translation", op)
}

// in tests needle against constant elements. An empty list is false
// (true when negated).
func (t *translation) in(needle queryir.Expr, seq []any, negated bool) (*value, error) {
	list := make([]queryir.Expr, 0, len(seq))
	for _, e := range seq {
		lit, err := ir.FromGo(e)
		if err != nil {
			return nil, ir.Unsupported("constant list", "element: %v", err)
		}
		list = append(list, queryir.Lit(lit))
	}
	var out queryir.BoolExpr = queryir.False
	if len(list) > 0 {
		out = &queryir.In{Needle: needle, List: list}
	}
	if negated {
		out = queryir.NewNot(out)
	}
	return boolValue(out), nil
}

// equalityOn matches `e => e == other` (or `e != other` for All) where
// other does not mention e.
func equalityOn(l *expr.Lambda, all bool) (expr.Node, bool) {
	b, ok := l.Body.(*expr.Binary)
	if !ok {
		return nil, false
	}
	want := expr.OpEq
	if all {
		want = expr.OpNe
	}
	if b.Op != want {
		return nil, false
	}
	p := l.Params[0]
	switch {
	case b.X == expr.Node(p) && !expr.References(b.Y, p):
		return b.Y, true
	case b.Y == expr.Node(p) && !expr.References(b.X, p):
		return b.X, true
	}
	return nil, false
}

// lambdaArg returns argument i of call as a one-parameter lambda.
func lambdaArg(x *expr.Call, i int) (*expr.Lambda, error) {
	if x == nil || i >= len(x.Args) {
		return nil, ir.Unsupported("call", "missing lambda argument")
	}
	l, ok := x.Args[i].(*expr.Lambda)
	if !ok || len(l.Params) != 1 {
		return nil, ir.Unsupported(x.String(), "%s expects a one-parameter lambda", x.Method.Name)
	}
	return l, nil
}

func asString(v *value) queryir.Expr {
	if v.kind == ir.KindString {
		return v.x
	}
	return &queryir.Cast{X: v.x, Kind: ir.KindString}
}

// plusOne converts a zero-based position to SQL's one-based one.
func plusOne(v *value) queryir.Expr {
	if n, ok := intConst(v); ok {
		return queryir.Lit(ir.Int(n + 1))
	}
	return &queryir.Arithmetic{Op: queryir.OpAdd, Left: v.x, Right: queryir.Lit(ir.Int(1))}
}

func intConst(v *value) (int64, bool) {
	if !v.constant {
		return 0, false
	}
	lit, ok := v.x.(*queryir.Literal)
	if !ok {
		return 0, false
	}
	n, ok := lit.Value.(ir.Int)
	return int64(n), ok
}
