package translate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/methods"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// value is a translated subexpression. Its shape is one of:
//
//   - a scalar or boolean expression: x set, class nil
//   - a mapped object: x is its path (or key literal), class set
//   - a collection association: coll set
//   - a grouping: group set
//   - a composite group key: fields set
//   - a constant host sequence: isSeq set
//   - a nested query chain: chain set
type value struct {
	x        queryir.Expr
	kind     ir.Kind
	nullable bool

	class *schema.Class
	coll  *collection
	group *grouping
	chain *Chain

	fields map[string]*value
	names  []string

	isSeq bool
	seq   []any

	// constant marks a folded host value; raw holds it.
	constant bool
	raw      any
}

// collection is an association member reached from an object path.
type collection struct {
	owner *queryir.Path
	def   *schema.Collection
}

// boolValue wraps a condition. A nil condition means "no filter".
func boolValue(b queryir.BoolExpr) *value {
	if b == nil {
		b = queryir.True
	}
	return &value{x: b, kind: ir.KindBool}
}

func objectValue(p *queryir.Path, class *schema.Class) *value {
	return &value{x: p, class: class, kind: keyKind(class)}
}

func keyKind(c *schema.Class) ir.Kind {
	kf, err := c.KeyField()
	if err != nil {
		return ir.KindUnknown
	}
	return kf.Kind
}

// translation is the state shared by every frame of one translation.
type translation struct {
	schema  *schema.Schema
	aliases *aliases
}

// constant reports whether n can be evaluated on the client before the
// query runs: it references no row or grouping in scope, no query source,
// and raises nothing.
func (t *translation) constant(n expr.Node, sc *scope) bool {
	ok := true
	expr.Inspect(n, func(c expr.Node) bool {
		switch x := c.(type) {
		case *expr.Source, *expr.Throw:
			ok = false
		case *expr.Param:
			if sc.variable(x) {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// value translates n in scope sc.
func (t *translation) value(n expr.Node, sc *scope) (*value, error) {
	if t.constant(n, sc) {
		v, err := expr.Eval(n, sc.env())
		if err != nil {
			return nil, err
		}
		return t.constValue(v)
	}

	switch x := n.(type) {
	case *expr.Source:
		class, err := t.schema.Lookup(x.Class)
		if err != nil {
			return nil, err
		}
		return &value{chain: t.newChain(class, t.aliases.fresh(), sc)}, nil
	case *expr.Param:
		return t.param(x, sc)
	case *expr.Member:
		return t.member(x, sc)
	case *expr.Call:
		return t.call(x, sc)
	case *expr.Binary:
		return t.binary(x, sc)
	case *expr.Unary:
		return t.unary(x, sc)
	case *expr.Cond:
		return t.conditional(x, sc)
	case *expr.TypeIs:
		return t.typeIs(x, sc)
	case *expr.New:
		return nil, ir.Unsupported(n.String(), "object construction is evaluated on the client")
	case *expr.NewArray:
		return nil, ir.Unsupported(n.String(), "array construction is evaluated on the client")
	case *expr.Func:
		return nil, ir.Unsupported(n.String(), "host function %s is evaluated on the client", x.Name)
	case *expr.Lambda:
		return nil, ir.Unsupported(n.String(), "a lambda is not a value")
	}
	return nil, ir.Unsupported(n.String(), "%T has no SQL translation", n)
}

// scalar translates n and requires a single SQL expression.
func (t *translation) scalar(n expr.Node, sc *scope) (*value, error) {
	v, err := t.value(n, sc)
	if err != nil {
		return nil, err
	}
	if v.x == nil {
		return nil, ir.Unsupported(n.String(), "%s is not a scalar value", n)
	}
	return v, nil
}

// cond translates n as a condition.
func (t *translation) cond(n expr.Node, sc *scope) (queryir.BoolExpr, error) {
	v, err := t.value(n, sc)
	if err != nil {
		return nil, err
	}
	return predicate(v, n)
}

// predicate turns a boolean value into a condition. A boolean column used
// as a predicate is compared with TRUE.
func predicate(v *value, n expr.Node) (queryir.BoolExpr, error) {
	if b, ok := v.x.(queryir.BoolExpr); ok {
		return b, nil
	}
	if v.x != nil && v.kind == ir.KindBool {
		return &queryir.Relational{Op: queryir.OpEq, Left: v.x, Right: queryir.Lit(ir.Bool(true))}, nil
	}
	return nil, ir.Unsupported(n.String(), "%s is not a condition", n)
}

func (t *translation) constValue(v any) (*value, error) {
	if isNil(v) {
		return &value{x: queryir.Lit(ir.Null{}), kind: ir.KindNull, nullable: true, constant: true}, nil
	}
	if id, ok := v.(ir.Identifiable); ok {
		lit, err := ir.FromGo(id.PrimaryKeyValue())
		if err != nil {
			return nil, ir.Unsupported(fmt.Sprintf("%T", v), "primary key: %v", err)
		}
		out := &value{x: queryir.Lit(lit), kind: lit.Kind(), constant: true, raw: v}
		if c, ok := t.schema.Class(id.ClassName()); ok {
			out.class = c
		}
		return out, nil
	}
	if b, ok := v.(bool); ok {
		out := boolValue(queryir.False)
		if b {
			out = boolValue(queryir.True)
		}
		out.constant, out.raw = true, v
		return out, nil
	}
	if seq, ok := hostSequence(v); ok {
		return &value{isSeq: true, seq: seq, constant: true, raw: v}, nil
	}
	lit, err := ir.FromGo(v)
	if err != nil {
		return nil, ir.Unsupported(fmt.Sprintf("%T", v), "constant: %v", err)
	}
	return &value{x: queryir.Lit(lit), kind: lit.Kind(), constant: true, raw: v}, nil
}

func (t *translation) param(p *expr.Param, sc *scope) (*value, error) {
	b, ok := sc.lookup(p)
	if !ok {
		return nil, ir.Unsupported(p.Name, "parameter %s is not bound by an enclosing lambda", p.Name)
	}
	switch b.kind {
	case bindRow:
		return objectValue(queryir.NewPath(b.alias), b.class), nil
	case bindGroup:
		return &value{group: b.group}, nil
	case bindClient:
		return nil, ir.Unsupported(p.Name, "%s is only known on the client", p.Name)
	}
	return t.constValue(b.value)
}

func (t *translation) member(x *expr.Member, sc *scope) (*value, error) {
	recv, err := t.value(x.X, sc)
	if err != nil {
		return nil, err
	}
	switch {
	case recv.group != nil:
		if x.Name == "Key" {
			return recv.group.key, nil
		}
		return nil, ir.SchemaResolution("grouping", x.Name)
	case recv.fields != nil:
		if f, ok := recv.fields[x.Name]; ok {
			return f, nil
		}
		return nil, ir.SchemaResolution("group key", x.Name)
	case recv.coll != nil:
		if x.Name == "Count" {
			return t.chainTerminal(t.collectionChain(recv.coll, sc), methods.Count, nil)
		}
		return nil, ir.SchemaResolution(recv.coll.def.Name, x.Name)
	case recv.chain != nil:
		return nil, ir.Unsupported(x.String(), "member %s of a query", x.Name)
	case recv.class != nil:
		path, ok := recv.x.(*queryir.Path)
		if !ok {
			return nil, ir.Unsupported(x.String(), "member %s of a computed object", x.Name)
		}
		return t.field(path, recv.class, x.Name)
	}

	switch recv.kind {
	case ir.KindString:
		if x.Name == "Length" {
			return &value{x: call("LENGTH", recv.x), kind: ir.KindInt, nullable: recv.nullable}, nil
		}
	case ir.KindTime:
		switch x.Name {
		case "Year", "Month", "Day":
			return &value{x: call(strings.ToUpper(x.Name), recv.x), kind: ir.KindInt, nullable: recv.nullable}, nil
		}
	}
	return nil, ir.SchemaResolution(recv.kind.String(), x.Name)
}

// field resolves a member of the object at path.
func (t *translation) field(path *queryir.Path, class *schema.Class, name string) (*value, error) {
	if f, ok := class.Field(name); ok {
		p := path.Dot(name)
		if ref := f.RefClass(); ref != nil {
			v := objectValue(p, ref)
			v.nullable = f.Nullable
			return v, nil
		}
		return &value{x: p, kind: f.Kind, nullable: f.Nullable}, nil
	}
	if c, ok := class.Collection(name); ok {
		return &value{coll: &collection{owner: path, def: c}}, nil
	}
	return nil, ir.SchemaResolution(class.Name, name)
}

var relOps = map[expr.BinaryOp]queryir.RelOp{
	expr.OpEq: queryir.OpEq,
	expr.OpNe: queryir.OpNe,
	expr.OpLt: queryir.OpLt,
	expr.OpLe: queryir.OpLe,
	expr.OpGt: queryir.OpGt,
	expr.OpGe: queryir.OpGe,
}

var arithOps = map[expr.BinaryOp]queryir.ArithOp{
	expr.OpAdd: queryir.OpAdd,
	expr.OpSub: queryir.OpSub,
	expr.OpMul: queryir.OpMul,
	expr.OpDiv: queryir.OpDiv,
	expr.OpMod: queryir.OpMod,
}

func (t *translation) binary(x *expr.Binary, sc *scope) (*value, error) {
	switch {
	case x.Op == expr.OpAndAlso || x.Op == expr.OpOrElse:
		l, err := t.cond(x.X, sc)
		if err != nil {
			return nil, err
		}
		r, err := t.cond(x.Y, sc)
		if err != nil {
			return nil, err
		}
		if x.Op == expr.OpAndAlso {
			return boolValue(queryir.NewAnd(l, r)), nil
		}
		return boolValue(queryir.NewOr(l, r)), nil
	case x.Op.IsComparison():
		return t.compare(x, sc)
	}

	l, err := t.scalar(x.X, sc)
	if err != nil {
		return nil, err
	}
	r, err := t.scalar(x.Y, sc)
	if err != nil {
		return nil, err
	}

	if x.Op == expr.OpCoalesce {
		kind := l.kind
		if kind == ir.KindNull || kind == ir.KindUnknown {
			kind = r.kind
		}
		return &value{x: call("COALESCE", l.x, r.x), kind: kind, nullable: r.nullable}, nil
	}
	if x.Op == expr.OpAdd && (l.kind == ir.KindString || r.kind == ir.KindString) {
		return &value{x: concat(l.x, r.x), kind: ir.KindString, nullable: l.nullable || r.nullable}, nil
	}
	return &value{
		x:        &queryir.Arithmetic{Op: arithOps[x.Op], Left: l.x, Right: r.x},
		kind:     arithKind(l.kind, r.kind),
		nullable: l.nullable || r.nullable,
	}, nil
}

// compare translates a relational operator. Equality against null becomes
// IS [NOT] NULL, and equality of a condition against a boolean constant
// becomes the condition or its negation.
func (t *translation) compare(x *expr.Binary, sc *scope) (*value, error) {
	l, err := t.value(x.X, sc)
	if err != nil {
		return nil, err
	}
	r, err := t.value(x.Y, sc)
	if err != nil {
		return nil, err
	}

	if x.Op == expr.OpEq || x.Op == expr.OpNe {
		ne := x.Op == expr.OpNe
		for _, pair := range [][2]*value{{l, r}, {r, l}} {
			v, c := pair[0], pair[1]
			if isNullConst(c) && v.x != nil {
				return boolValue(&queryir.IsNull{X: v.x, Negated: ne}), nil
			}
			if b, ok := c.raw.(bool); ok && c.constant && v.kind == ir.KindBool {
				n := x.X
				if v == r {
					n = x.Y
				}
				p, err := predicate(v, n)
				if err != nil {
					return nil, err
				}
				if b == ne {
					p = queryir.NewNot(p)
				}
				return boolValue(p), nil
			}
		}
	}

	if l.x == nil || r.x == nil {
		return nil, ir.Unsupported(x.String(), "operands of %s must be scalar values", x.Op)
	}
	return boolValue(&queryir.Relational{Op: relOps[x.Op], Left: l.x, Right: r.x}), nil
}

var castKinds = map[string]ir.Kind{
	"int":     ir.KindInt,
	"long":    ir.KindInt,
	"double":  ir.KindFloat,
	"decimal": ir.KindFloat,
	"float":   ir.KindFloat,
	"string":  ir.KindString,
	"bool":    ir.KindBool,
}

func (t *translation) unary(x *expr.Unary, sc *scope) (*value, error) {
	switch x.Op {
	case expr.OpNot:
		c, err := t.cond(x.X, sc)
		if err != nil {
			return nil, err
		}
		return boolValue(queryir.NewNot(c)), nil
	case expr.OpNegate:
		v, err := t.scalar(x.X, sc)
		if err != nil {
			return nil, err
		}
		return &value{x: &queryir.Negate{X: v.x}, kind: v.kind, nullable: v.nullable}, nil
	}

	v, err := t.value(x.X, sc)
	if err != nil {
		return nil, err
	}
	if k, ok := castKinds[strings.ToLower(x.Type)]; ok {
		if v.x == nil {
			return nil, ir.Unsupported(x.String(), "cannot cast %s to %s", x.X, x.Type)
		}
		if v.kind == k && v.class == nil {
			return v, nil
		}
		return &value{x: &queryir.Cast{X: v.x, Kind: k}, kind: k, nullable: v.nullable}, nil
	}
	if v.class == nil {
		return nil, ir.Unsupported(x.String(), "cannot cast %s to %s", x.X, x.Type)
	}
	target, err := t.schema.Lookup(x.Type)
	if err != nil {
		return nil, err
	}
	if !target.IsA(v.class) && !v.class.IsA(target) {
		return nil, ir.Unsupported(x.String(), "%s is not related to %s", v.class.Name, target.Name)
	}
	out := *v
	out.class = target
	return &out, nil
}

func (t *translation) conditional(x *expr.Cond, sc *scope) (*value, error) {
	test, err := t.cond(x.Test, sc)
	if err != nil {
		return nil, err
	}
	then, err := t.scalar(x.Then, sc)
	if err != nil {
		return nil, err
	}
	els, err := t.scalar(x.Else, sc)
	if err != nil {
		return nil, err
	}

	if then.kind == ir.KindBool && els.kind == ir.KindBool {
		a, err := predicate(then, x.Then)
		if err != nil {
			return nil, err
		}
		b, err := predicate(els, x.Else)
		if err != nil {
			return nil, err
		}
		return boolValue(queryir.NewOr(
			queryir.NewAnd(test, a),
			queryir.NewAnd(queryir.NewNot(test), b),
		)), nil
	}

	kind := then.kind
	if kind == ir.KindNull {
		kind = els.kind
	}
	out := &value{
		x:        &queryir.Conditional{Test: test, Then: then.x, Else: els.x},
		kind:     kind,
		nullable: then.nullable || els.nullable,
	}
	if then.class != nil && isNullConst(els) {
		out.class = then.class
	}
	return out, nil
}

func (t *translation) typeIs(x *expr.TypeIs, sc *scope) (*value, error) {
	v, err := t.value(x.X, sc)
	if err != nil {
		return nil, err
	}
	if v.class == nil {
		return nil, ir.Unsupported(x.String(), "%s is not a mapped object", x.X)
	}
	target, err := t.schema.Lookup(x.Class)
	if err != nil {
		return nil, err
	}
	return boolValue(classTest(v, target)), nil
}

// classTest checks the runtime class of an object against target using the
// discriminator of its hierarchy.
func classTest(v *value, target *schema.Class) queryir.BoolExpr {
	if v.class.IsA(target) {
		return queryir.True
	}
	if !target.IsA(v.class) {
		return queryir.False
	}
	path, ok := v.x.(*queryir.Path)
	if !ok {
		return queryir.False
	}
	values := target.SelectorValues()
	if len(values) == 0 {
		return queryir.False
	}
	list := make([]queryir.Expr, len(values))
	for i, sv := range values {
		list[i] = queryir.Lit(sv)
	}
	return &queryir.In{Needle: &queryir.ClassDiscriminator{Path: path}, List: list}
}

func call(name string, args ...queryir.Expr) *queryir.FunctionCall {
	return &queryir.FunctionCall{Name: name, Args: args}
}

func concat(l, r queryir.Expr) queryir.Expr {
	return &queryir.Arithmetic{Op: queryir.OpConcat, Left: l, Right: r}
}

func arithKind(l, r ir.Kind) ir.Kind {
	switch {
	case l == ir.KindFloat || r == ir.KindFloat:
		return ir.KindFloat
	case l == ir.KindTime:
		return ir.KindTime
	case l == ir.KindInt || r == ir.KindInt:
		return ir.KindInt
	}
	return l
}

func isNullConst(v *value) bool {
	if !v.constant {
		return false
	}
	lit, ok := v.x.(*queryir.Literal)
	return ok && lit.Value.Kind() == ir.KindNull
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// hostSequence reports whether v is a client-side collection and returns
// its elements. Strings and byte arrays (including UUIDs) are scalars.
func hostSequence(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return x, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
