package queryir

import "github.com/roach88/sooq/internal/ir"

// True and False are the boolean literals.
var (
	True  = &BoolLiteral{Value: true}
	False = &BoolLiteral{Value: false}
)

// Lit wraps a value as a Literal.
func Lit(v ir.Value) *Literal { return &Literal{Value: v} }

// IsTrue reports whether b is the literal TRUE (or nil, meaning no filter).
func IsTrue(b BoolExpr) bool {
	if b == nil {
		return true
	}
	l, ok := b.(*BoolLiteral)
	return ok && l.Value
}

// IsFalse reports whether b is the literal FALSE.
func IsFalse(b BoolExpr) bool {
	l, ok := b.(*BoolLiteral)
	return ok && !l.Value
}

// NewAnd conjoins operands, flattening nested Ands, dropping TRUE and
// short-circuiting on FALSE. Nil operands are ignored; the result is nil
// when nothing remains.
func NewAnd(operands ...BoolExpr) BoolExpr {
	var out []BoolExpr
	for _, o := range operands {
		switch x := o.(type) {
		case nil:
			continue
		case *BoolLiteral:
			if !x.Value {
				return False
			}
			continue
		case *And:
			for _, inner := range x.Operands {
				if IsFalse(inner) {
					return False
				}
				if !IsTrue(inner) {
					out = append(out, inner)
				}
			}
			continue
		}
		out = append(out, o)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return &And{Operands: out}
}

// NewOr disjoins operands, flattening nested Ors, dropping FALSE and
// short-circuiting on TRUE. A nil operand means "no filter" and makes the
// whole disjunction true.
func NewOr(operands ...BoolExpr) BoolExpr {
	var out []BoolExpr
	for _, o := range operands {
		switch x := o.(type) {
		case nil:
			return True
		case *BoolLiteral:
			if x.Value {
				return True
			}
			continue
		case *Or:
			for _, inner := range x.Operands {
				if IsTrue(inner) {
					return True
				}
				if !IsFalse(inner) {
					out = append(out, inner)
				}
			}
			continue
		}
		out = append(out, o)
	}
	switch len(out) {
	case 0:
		return False
	case 1:
		return out[0]
	}
	return &Or{Operands: out}
}

// NewNot negates b, folding literals, double negation and null checks.
// Negating nil (no filter) yields FALSE.
func NewNot(b BoolExpr) BoolExpr {
	switch x := b.(type) {
	case nil:
		return False
	case *BoolLiteral:
		if x.Value {
			return False
		}
		return True
	case *Not:
		return x.X
	case *IsNull:
		return &IsNull{X: x.X, Negated: !x.Negated}
	}
	return &Not{X: b}
}

// Walk calls fn for e and every expression beneath it in depth-first order,
// descending into subqueries. Children are skipped when fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || isNilExpr(e) || !fn(e) {
		return
	}
	for _, c := range children(e) {
		Walk(c, fn)
	}
}

// WalkQuery walks every expression of q.
func WalkQuery(q *Query, fn func(Expr) bool) {
	if q == nil {
		return
	}
	for _, e := range queryExprs(q) {
		Walk(e, fn)
	}
}

func queryExprs(q *Query) []Expr {
	var out []Expr
	out = append(out, q.Select...)
	if q.Where != nil {
		out = append(out, q.Where)
	}
	out = append(out, q.GroupBy...)
	if q.Having != nil {
		out = append(out, q.Having)
	}
	return append(out, q.OrderBy...)
}

func children(e Expr) []Expr {
	switch x := e.(type) {
	case *Path:
		if x.Left != nil {
			return []Expr{x.Left}
		}
	case *Arithmetic:
		return []Expr{x.Left, x.Right}
	case *Negate:
		return []Expr{x.X}
	case *FunctionCall:
		return x.Args
	case *Cast:
		return []Expr{x.X}
	case *Conditional:
		return []Expr{x.Test, x.Then, x.Else}
	case *ClassDiscriminator:
		return []Expr{x.Path}
	case *CountOf:
		out := []Expr{x.Path}
		if x.Where != nil {
			out = append(out, x.Where)
		}
		return out
	case *Subquery:
		return queryExprs(x.Query)
	case *Asterisk:
		return []Expr{x.Path}
	case *Relational:
		return []Expr{x.Left, x.Right}
	case *And:
		return boolExprs(x.Operands)
	case *Or:
		return boolExprs(x.Operands)
	case *Not:
		return []Expr{x.X}
	case *IsNull:
		return []Expr{x.X}
	case *In:
		out := append([]Expr{x.Needle}, x.List...)
		if x.Query != nil {
			out = append(out, queryExprs(x.Query)...)
		}
		return out
	case *Contains:
		out := []Expr{x.Path}
		if x.Needle != nil {
			out = append(out, x.Needle)
		}
		if x.Where != nil {
			out = append(out, x.Where)
		}
		return out
	case *Exists:
		return queryExprs(x.Query)
	}
	return nil
}

func boolExprs(bs []BoolExpr) []Expr {
	out := make([]Expr, len(bs))
	for i, b := range bs {
		out[i] = b
	}
	return out
}

func isNilExpr(e Expr) bool {
	switch x := e.(type) {
	case *Path:
		return x == nil
	case *Subquery:
		return x == nil || x.Query == nil
	case *Exists:
		return x == nil || x.Query == nil
	}
	return false
}

// ContainsAggregate reports whether e uses an aggregate function outside
// of any subquery.
func ContainsAggregate(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		switch f := x.(type) {
		case *FunctionCall:
			if f.IsAggregate() {
				found = true
			}
		case *Subquery, *Exists, *In, *CountOf, *Contains:
			if in, ok := f.(*In); ok && in.Query == nil {
				return !found
			}
			return false
		}
		return !found
	})
	return found
}
