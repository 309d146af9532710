package querysql

import (
	"fmt"

	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// scalar renders e into a fresh buffer.
func (c *converter) scalar(e queryir.Expr) (*sqlBuf, error) {
	b := &sqlBuf{}
	if err := c.writeScalar(b, e); err != nil {
		return nil, err
	}
	return b, nil
}

// writeScalar renders a value expression.
func (c *converter) writeScalar(b *sqlBuf, e queryir.Expr) error {
	d := c.dialect
	switch x := e.(type) {
	case *queryir.Literal:
		c.writeLiteral(b, x.Value)

	case *queryir.Parameter:
		b.param(x.Ordinal, x.Kind)

	case *queryir.Path:
		r, err := c.resolve(x, false)
		if err != nil {
			return err
		}
		col, err := c.columnOf(r)
		if err != nil {
			return err
		}
		b.text(col)

	case *queryir.Arithmetic:
		l, err := c.scalar(x.Left)
		if err != nil {
			return err
		}
		r, err := c.scalar(x.Right)
		if err != nil {
			return err
		}
		args := []*sqlBuf{l, r}
		switch {
		case x.Op == queryir.OpConcat:
			s := argSentinels(2)
			b.splice(d.Concat(s[0], s[1]), args)
		case x.Op == queryir.OpMod && d.Functions["MOD"] != "":
			b.splice(d.Function("MOD", argSentinels(2)), args)
		default:
			b.text("(")
			b.append(l)
			b.text(" " + x.Op.String() + " ")
			b.append(r)
			b.text(")")
		}

	case *queryir.Negate:
		b.text("(-")
		if err := c.writeScalar(b, x.X); err != nil {
			return err
		}
		b.text(")")

	case *queryir.FunctionCall:
		return c.writeFunction(b, x)

	case *queryir.Cast:
		b.text("CAST(")
		if err := c.writeScalar(b, x.X); err != nil {
			return err
		}
		b.text(" AS " + d.TypeName(x.Kind) + ")")

	case *queryir.Conditional:
		b.text("CASE WHEN ")
		if err := c.writeCond(b, x.Test); err != nil {
			return err
		}
		b.text(" THEN ")
		if err := c.writeScalar(b, x.Then); err != nil {
			return err
		}
		if x.Else != nil {
			b.text(" ELSE ")
			if err := c.writeScalar(b, x.Else); err != nil {
				return err
			}
		}
		b.text(" END")

	case *queryir.ClassDiscriminator:
		obj, err := c.object(x.Path)
		if err != nil {
			return err
		}
		sel := obj.class.Selector()
		if sel == nil {
			return ir.Unsupported(x.Path.String(), "class %s has no subclass selector", obj.class.Name)
		}
		b.text(c.column(obj.alias, sel.Column))

	case *queryir.CountOf:
		owner, col, err := c.collection(x.Path, x.Collection)
		if err != nil {
			return err
		}
		count := &queryir.FunctionCall{Name: "COUNT"}
		sub, err := c.collectionQuery(owner, col, x.Alias, x.Where, count)
		if err != nil {
			return err
		}
		b.text("(")
		b.append(sub)
		b.text(")")

	case *queryir.Subquery:
		sub, cols, err := c.subquery(x.Query)
		if err != nil {
			return err
		}
		if len(cols) != 1 {
			return ir.Unsupported("subquery", "scalar subquery returns %d columns", len(cols))
		}
		b.text("(")
		b.append(sub)
		b.text(")")

	case *queryir.Asterisk:
		return ir.Unsupported(x.Path.String(), "object %s used as a value", x.Path)

	case *queryir.BoolLiteral:
		c.writeLiteral(b, ir.Bool(x.Value))

	case queryir.BoolExpr:
		b.text("CASE WHEN ")
		if err := c.writeCond(b, x); err != nil {
			return err
		}
		b.text(" THEN " + d.BoolTrue + " ELSE " + d.BoolFalse + " END")

	default:
		return ir.Unsupported(fmt.Sprintf("%T", e), "expression has no SQL mapping")
	}
	return nil
}

// writeLiteral inlines safe values and emits a literal slot otherwise.
func (c *converter) writeLiteral(b *sqlBuf, v ir.Value) {
	if v == nil {
		v = ir.Null{}
	}
	if c.dialect.IsSafeLiteral(v) {
		b.text(c.dialect.Literal(v))
		return
	}
	b.literal(v)
}

// writeFunction renders a portable function through the dialect's spelling.
// AVG over an integral argument is cast to the float type on dialects that
// would otherwise truncate.
func (c *converter) writeFunction(b *sqlBuf, f *queryir.FunctionCall) error {
	args := make([]*sqlBuf, len(f.Args))
	for i, a := range f.Args {
		ab, err := c.scalar(a)
		if err != nil {
			return err
		}
		args[i] = ab
	}
	if f.Name == "AVG" && c.dialect.AverageRequiresCast && len(f.Args) == 1 && c.kindOf(f.Args[0]) != ir.KindFloat {
		cast := &sqlBuf{}
		cast.text("CAST(")
		cast.append(args[0])
		cast.text(" AS " + c.dialect.TypeName(ir.KindFloat) + ")")
		args[0] = cast
	}
	b.splice(c.dialect.Function(f.Name, argSentinels(len(args))), args)
	return nil
}

// writeCond renders a truth-valued expression.
func (c *converter) writeCond(b *sqlBuf, e queryir.BoolExpr) error {
	switch x := e.(type) {
	case nil:
		b.text(trueSQL)

	case *queryir.BoolLiteral:
		if x.Value {
			b.text(trueSQL)
		} else {
			b.text(falseSQL)
		}

	case *queryir.Relational:
		if isNullLiteral(x.Right) && (x.Op == queryir.OpEq || x.Op == queryir.OpNe) {
			return c.writeCond(b, &queryir.IsNull{X: x.Left, Negated: x.Op == queryir.OpNe})
		}
		if isNullLiteral(x.Left) && (x.Op == queryir.OpEq || x.Op == queryir.OpNe) {
			return c.writeCond(b, &queryir.IsNull{X: x.Right, Negated: x.Op == queryir.OpNe})
		}
		if err := c.writeScalar(b, x.Left); err != nil {
			return err
		}
		b.text(" " + x.Op.String() + " ")
		return c.writeScalar(b, x.Right)

	case *queryir.And:
		return c.writeJunction(b, x.Operands, " AND ", trueSQL)

	case *queryir.Or:
		return c.writeJunction(b, x.Operands, " OR ", falseSQL)

	case *queryir.Not:
		b.text("NOT (")
		if err := c.writeCond(b, x.X); err != nil {
			return err
		}
		b.text(")")

	case *queryir.IsNull:
		if err := c.writeScalar(b, x.X); err != nil {
			return err
		}
		if x.Negated {
			b.text(" IS NOT NULL")
		} else {
			b.text(" IS NULL")
		}

	case *queryir.In:
		if x.Query == nil && len(x.List) == 0 {
			b.text(falseSQL)
			return nil
		}
		if err := c.writeScalar(b, x.Needle); err != nil {
			return err
		}
		b.text(" IN (")
		if x.Query != nil {
			sub, _, err := c.subquery(x.Query)
			if err != nil {
				return err
			}
			b.append(sub)
		} else {
			for i, item := range x.List {
				if i > 0 {
					b.text(", ")
				}
				if err := c.writeScalar(b, item); err != nil {
					return err
				}
			}
		}
		b.text(")")

	case *queryir.Contains:
		owner, col, err := c.collection(x.Path, x.Collection)
		if err != nil {
			return err
		}
		if x.Needle != nil {
			needle, err := c.scalar(x.Needle)
			if err != nil {
				return err
			}
			sub, err := c.collectionQuery(owner, col, x.Alias, x.Where, nil)
			if err != nil {
				return err
			}
			b.append(needle)
			b.text(" IN (")
			b.append(sub)
			b.text(")")
			return nil
		}
		sub, err := c.collectionQuery(owner, col, x.Alias, x.Where, nil)
		if err != nil {
			return err
		}
		b.text("EXISTS (")
		b.append(sub)
		b.text(")")

	case *queryir.Exists:
		sub, _, err := c.subquery(x.Query)
		if err != nil {
			return err
		}
		b.text("EXISTS (")
		b.append(sub)
		b.text(")")

	default:
		return ir.Unsupported(fmt.Sprintf("%T", e), "condition has no SQL mapping")
	}
	return nil
}

func (c *converter) writeJunction(b *sqlBuf, operands []queryir.BoolExpr, sep, empty string) error {
	switch len(operands) {
	case 0:
		b.text(empty)
		return nil
	case 1:
		return c.writeCond(b, operands[0])
	}
	b.text("(")
	for i, o := range operands {
		if i > 0 {
			b.text(sep)
		}
		if err := c.writeCond(b, o); err != nil {
			return err
		}
	}
	b.text(")")
	return nil
}

func isNullLiteral(e queryir.Expr) bool {
	l, ok := e.(*queryir.Literal)
	if !ok {
		return false
	}
	_, null := l.Value.(ir.Null)
	return null || l.Value == nil
}

// object resolves a path that must denote an object.
func (c *converter) object(p *queryir.Path) (*objectRef, error) {
	r, err := c.resolve(p, true)
	if err != nil {
		return nil, err
	}
	if r.obj == nil {
		return nil, ir.Unsupported(p.String(), "%s is not an object", p)
	}
	return r.obj, nil
}

// collection resolves the owner object and the named collection on it.
func (c *converter) collection(p *queryir.Path, name string) (*objectRef, *schema.Collection, error) {
	owner, err := c.object(p)
	if err != nil {
		return nil, nil, err
	}
	col, ok := owner.class.Collection(name)
	if !ok {
		return nil, nil, ir.SchemaResolution(owner.class.Name, name)
	}
	return owner, col, nil
}

// collectionQuery renders a subquery over the members of owner's
// collection, restricted by where, selecting sel (the element key when nil).
//
// One-to-many membership:
//
//	t1.manager = t0.id
//
// Many-to-many membership:
//
//	t1.id IN (SELECT t2.role_id FROM ContactToRole t2 WHERE t2.contact_id = t0.id)
func (c *converter) collectionQuery(owner *objectRef, col *schema.Collection, alias string, where queryir.BoolExpr, sel queryir.Expr) (*sqlBuf, error) {
	ownerKey, err := c.keyColumn(owner)
	if err != nil {
		return nil, err
	}
	elem := col.Element()
	if alias == "" {
		alias = c.aliases.fresh()
	}
	q := queryir.NewQuery(elem.Name, alias)
	q.Where = where
	if sel != nil {
		q.Select = []queryir.Expr{sel}
	}

	membership := func(child *converter) ([]*sqlBuf, error) {
		b := &sqlBuf{}
		if col.Kind == schema.OneToMany {
			if err := child.writeScalar(b, queryir.NewPath(alias, col.ForeignField)); err != nil {
				return nil, err
			}
			b.text(" = " + ownerKey)
			return []*sqlBuf{b}, nil
		}
		link := col.Link()
		la := child.aliases.fresh()
		if err := child.writeScalar(b, queryir.NewPath(alias)); err != nil {
			return nil, err
		}
		b.text(" IN (SELECT " + child.column(la, col.ElementColumn()) +
			" FROM " + child.dialect.QuoteIdent(link.Table) + " " + la +
			" WHERE " + child.column(la, col.OwnerColumn()) + " = " + ownerKey + ")")
		return []*sqlBuf{b}, nil
	}

	sub, _, err := c.child().query(q, true, membership)
	return sub, err
}

// kindOf infers the value kind of a scalar expression.
func (c *converter) kindOf(e queryir.Expr) ir.Kind {
	switch x := e.(type) {
	case *queryir.Literal:
		if x.Value == nil {
			return ir.KindNull
		}
		return x.Value.Kind()
	case *queryir.Parameter:
		return x.Kind
	case *queryir.Path:
		r, err := c.resolve(x, false)
		if err != nil {
			return ir.KindUnknown
		}
		return kindOfResolved(r)
	case *queryir.Arithmetic:
		if x.Op == queryir.OpConcat {
			return ir.KindString
		}
		l, r := c.kindOf(x.Left), c.kindOf(x.Right)
		if l == ir.KindFloat || r == ir.KindFloat {
			return ir.KindFloat
		}
		if l == ir.KindTime || l == ir.KindString {
			return l
		}
		return ir.KindInt
	case *queryir.Negate:
		return c.kindOf(x.X)
	case *queryir.FunctionCall:
		switch x.Name {
		case "COUNT", "LENGTH", "YEAR", "MONTH", "DAY", "SIGN":
			return ir.KindInt
		case "AVG", "SQRT", "EXP", "LN", "LOG", "POWER", "ACOS", "ASIN", "ATAN", "COS", "SIN", "TAN":
			return ir.KindFloat
		case "UPPER", "LOWER", "SUBSTRING", "SUBSTRING_FROM", "TRIM", "REPLACE":
			return ir.KindString
		}
		if len(x.Args) > 0 {
			return c.kindOf(x.Args[0])
		}
		return ir.KindUnknown
	case *queryir.Cast:
		return x.Kind
	case *queryir.Conditional:
		if k := c.kindOf(x.Then); k != ir.KindNull {
			return k
		}
		if x.Else != nil {
			return c.kindOf(x.Else)
		}
		return ir.KindNull
	case *queryir.ClassDiscriminator:
		if obj, err := c.object(x.Path); err == nil && obj.class.Selector() != nil {
			return obj.class.Selector().Kind
		}
		return ir.KindUnknown
	case *queryir.CountOf:
		return ir.KindInt
	case queryir.BoolExpr:
		return ir.KindBool
	}
	return ir.KindUnknown
}
