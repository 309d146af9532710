package queryir

import (
	"strings"

	"github.com/roach88/sooq/internal/ir"
)

// Expr is any query object model expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// BoolExpr is an expression producing a truth value. Boolean expressions
// may appear wherever an Expr is expected (the converter renders them as
// CASE WHEN ... THEN 1 ELSE 0 END in scalar position).
type BoolExpr interface {
	Expr
	boolNode() // Marker method - seals interface to this package
}

// Literal is a typed constant.
//
// Semantics:
//
//	'Mary Manager'   -- inlined when the dialect deems it safe
//	{L:String:...}   -- otherwise a bound literal slot
type Literal struct {
	Value ir.Value
}

// Parameter is a positional slot bound at execution time.
//
// Example (load by primary key):
//
//	&Relational{Op: OpEq, Left: keyPath, Right: &Parameter{Ordinal: 0, Kind: ir.KindInt}}
//
// Translates to:
//
//	t0.id = {0:Int}
type Parameter struct {
	Ordinal int
	Kind    ir.Kind
}

// Path is a member navigation chain. Left is nil for the first segment.
type Path struct {
	Left *Path
	Name string
}

// Segments returns the chain from first to last segment.
func (p *Path) Segments() []string {
	var out []string
	for k := p; k != nil; k = k.Left {
		out = append(out, k.Name)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// String renders the path in dotted form.
func (p *Path) String() string { return strings.Join(p.Segments(), ".") }

// Root returns the first segment.
func (p *Path) Root() *Path {
	k := p
	for k.Left != nil {
		k = k.Left
	}
	return k
}

// Dot extends the path by one member.
func (p *Path) Dot(name string) *Path { return &Path{Left: p, Name: name} }

// NewPath builds a path from segments.
func NewPath(segments ...string) *Path {
	var p *Path
	for _, s := range segments {
		p = &Path{Left: p, Name: s}
	}
	return p
}

// ArithOp enumerates arithmetic operators.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat // string concatenation; the dialect picks the operator
)

func (o ArithOp) String() string {
	return [...]string{"+", "-", "*", "/", "%", "||"}[o]
}

// Arithmetic combines two scalars.
type Arithmetic struct {
	Op          ArithOp
	Left, Right Expr
}

// Negate is unary minus.
type Negate struct {
	X Expr
}

// FunctionCall invokes a portable function by name. The dialect maps the
// name to its own spelling.
//
// Aggregates are COUNT, SUM, AVG, MIN and MAX. COUNT with no arguments is
// COUNT(*).
type FunctionCall struct {
	Name string
	Args []Expr
}

// IsAggregate reports whether the call is an aggregate function.
func (f *FunctionCall) IsAggregate() bool {
	switch f.Name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	}
	return false
}

// Cast converts X to the dialect's type for Kind.
type Cast struct {
	X    Expr
	Kind ir.Kind
}

// Conditional is CASE WHEN Test THEN Then ELSE Else END.
type Conditional struct {
	Test BoolExpr
	Then Expr
	Else Expr
}

// ClassDiscriminator is the discriminator column of the object at Path,
// i.e. the runtime class of the row.
type ClassDiscriminator struct {
	Path *Path
}

// CountOf counts the members of a collection of the object at Path,
// optionally restricted by Where. Where refers to the element as Alias.
//
// Semantics (one-to-many):
//
//	(SELECT COUNT(*) FROM Contact t1 WHERE t1.manager = t0.id AND <where>)
type CountOf struct {
	Path       *Path
	Collection string
	Alias      string
	Where      BoolExpr
}

// Subquery is a scalar subquery; its select list has exactly one item.
type Subquery struct {
	Query *Query
}

// Asterisk selects all mapped fields of the object at Path.
type Asterisk struct {
	Path *Path
}

// RelOp enumerates relational operators.
type RelOp int

const (
	OpEq RelOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLike
)

func (o RelOp) String() string {
	return [...]string{"=", "<>", "<", "<=", ">", ">=", "LIKE"}[o]
}

// Negated returns the complementary operator. LIKE has no complement and is
// returned unchanged.
func (o RelOp) Negated() RelOp {
	switch o {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	}
	return o
}

// Swapped returns the operator with operands exchanged: a < b is b > a.
func (o RelOp) Swapped() RelOp {
	switch o {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return o
}

// Relational compares two scalars.
//
// Semantics:
//
//	<left> <op> <right>
//
// NULL never compares equal; use IsNull for null checks.
type Relational struct {
	Op          RelOp
	Left, Right Expr
}

// And is a conjunction. An empty And is true.
type And struct {
	Operands []BoolExpr
}

// Or is a disjunction. An empty Or is false.
type Or struct {
	Operands []BoolExpr
}

// Not negates X.
type Not struct {
	X BoolExpr
}

// IsNull tests X IS NULL, or IS NOT NULL when Negated.
type IsNull struct {
	X       Expr
	Negated bool
}

// In tests Needle against a literal list or, when Query is set, a one-column
// subquery.
type In struct {
	Needle Expr
	List   []Expr
	Query  *Query
}

// Contains tests collection membership on the object at Path.
//
// With a Needle it asks whether the needle (an element key) is a member;
// without one it asks whether any member satisfies Where, which refers to
// the element as Alias.
//
// Semantics (many-to-many, needle):
//
//	2 IN (SELECT t1.id FROM Role t1 WHERE t1.id IN (SELECT role_id FROM ContactToRole WHERE contact_id = t0.id))
type Contains struct {
	Path       *Path
	Collection string
	Needle     Expr
	Alias      string
	Where      BoolExpr
}

// Exists tests whether Query returns any row.
type Exists struct {
	Query *Query
}

// BoolLiteral is TRUE or FALSE. Constructors fold it away where possible.
type BoolLiteral struct {
	Value bool
}

// Query is a complete query expression.
//
// Semantics:
//
//	SELECT [DISTINCT] <select> FROM <from> <aliases>
//	WHERE <where> GROUP BY <groupBy> HAVING <having>
//	ORDER BY <orderBy> [DESC]... OFFSET <offset> LIMIT <limit>
//
// From lists mapped class names; FromAliases, when set, has one alias per
// from item. An empty select list selects the first from item's fields (or
// its primary key when used as a subquery). Limit is -1 when unlimited.
type Query struct {
	Select        []Expr
	SelectAliases []string
	From          []string
	FromAliases   []string
	Where         BoolExpr
	GroupBy       []Expr
	Having        BoolExpr
	OrderBy       []Expr
	OrderDesc     []bool
	Distinct      bool
	Offset        int64
	Limit         int64
}

// NewQuery returns an unlimited query over class with the given alias.
func NewQuery(class, alias string) *Query {
	q := &Query{From: []string{class}, Limit: -1}
	if alias != "" {
		q.FromAliases = []string{alias}
	}
	return q
}

// Limited reports whether the query has a row window.
func (q *Query) Limited() bool { return q.Limit >= 0 || q.Offset > 0 }

// Clone returns a shallow copy whose slices may be appended independently.
func (q *Query) Clone() *Query {
	c := *q
	c.Select = append([]Expr(nil), q.Select...)
	c.SelectAliases = append([]string(nil), q.SelectAliases...)
	c.From = append([]string(nil), q.From...)
	c.FromAliases = append([]string(nil), q.FromAliases...)
	c.GroupBy = append([]Expr(nil), q.GroupBy...)
	c.OrderBy = append([]Expr(nil), q.OrderBy...)
	c.OrderDesc = append([]bool(nil), q.OrderDesc...)
	return &c
}

func (*Literal) exprNode()            {}
func (*Parameter) exprNode()          {}
func (*Path) exprNode()               {}
func (*Arithmetic) exprNode()         {}
func (*Negate) exprNode()             {}
func (*FunctionCall) exprNode()       {}
func (*Cast) exprNode()               {}
func (*Conditional) exprNode()        {}
func (*ClassDiscriminator) exprNode() {}
func (*CountOf) exprNode()            {}
func (*Subquery) exprNode()           {}
func (*Asterisk) exprNode()           {}
func (*Relational) exprNode()         {}
func (*And) exprNode()                {}
func (*Or) exprNode()                 {}
func (*Not) exprNode()                {}
func (*IsNull) exprNode()             {}
func (*In) exprNode()                 {}
func (*Contains) exprNode()           {}
func (*Exists) exprNode()             {}
func (*BoolLiteral) exprNode()        {}

func (*Relational) boolNode()  {}
func (*And) boolNode()         {}
func (*Or) boolNode()          {}
func (*Not) boolNode()         {}
func (*IsNull) boolNode()      {}
func (*In) boolNode()          {}
func (*Contains) boolNode()    {}
func (*Exists) boolNode()      {}
func (*BoolLiteral) boolNode() {}
