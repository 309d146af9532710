// Package expr is the language-neutral query-builder AST.
//
// Queries are chains of method calls rooted at a Source, with lambdas as
// arguments:
//
//	c := expr.P("c")
//	q := expr.CallM(expr.Src("Contact"), "Where",
//		expr.L(expr.Eq(expr.M(c, "Name"), expr.C("Mary Manager")), c))
//
// The same tree is produced by Parse from its textual form
// `Contact.Where(c => c.Name == "Mary Manager")`.
//
// Nodes are compared by identity: a *Param is the same variable wherever it
// is referenced, and evaluation environments key on node pointers.
package expr

import "reflect"

// Node is a sealed interface over AST nodes.
type Node interface {
	node()
	String() string
}

// Source is the root of a query over all objects of a mapped class.
type Source struct {
	Class string
}

// Param is a lambda parameter (range variable).
type Param struct {
	Name string
}

// Const is a host value embedded in the tree.
type Const struct {
	Value any
}

// Member accesses a named member (field, association, or property) of X.
type Member struct {
	X    Node
	Name string
}

// Method identifies a called method.
// Type is the declaring type ("Queryable", "String", "Math", ...). It may be
// left empty, in which case the translator infers it from the receiver.
type Method struct {
	Type     string
	Name     string
	TypeArgs []string
}

// Call invokes Method on Recv (nil for static methods) with Args.
type Call struct {
	Method Method
	Recv   Node
	Args   []Node
}

// Lambda is an anonymous function.
type Lambda struct {
	Params []*Param
	Body   Node
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAndAlso
	OpOrElse
	OpCoalesce
)

var binaryTokens = map[BinaryOp]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpMod:      "%",
	OpEq:       "==",
	OpNe:       "!=",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
	OpAndAlso:  "&&",
	OpOrElse:   "||",
	OpCoalesce: "??",
}

// String returns the operator token.
func (op BinaryOp) String() string { return binaryTokens[op] }

// IsComparison reports whether op is one of == != < <= > >=.
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpGe }

// IsArithmetic reports whether op is one of + - * / %.
func (op BinaryOp) IsArithmetic() bool { return op <= OpMod }

// Binary applies Op to X and Y.
type Binary struct {
	Op   BinaryOp
	X, Y Node
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpConvert
)

// Unary applies Op to X. Type is the target of OpConvert
// ("int", "long", "double", "decimal", "string", or a class name).
type Unary struct {
	Op   UnaryOp
	X    Node
	Type string
}

// Cond is the conditional operator Test ? Then : Else.
type Cond struct {
	Test, Then, Else Node
}

// New constructs an object from named members.
// When Type is a struct type, evaluation fills a value of it by field name;
// otherwise it produces a map[string]any.
type New struct {
	Type    reflect.Type
	Members []string
	Args    []Node
}

// NewArray constructs a []any.
type NewArray struct {
	Elems []Node
}

// TypeIs tests whether X is an instance of the mapped class Class.
type TypeIs struct {
	X     Node
	Class string
}

// Func is an opaque host computation over Args. It never translates to SQL:
// it is folded when its arguments are constant and otherwise evaluated per
// row after the translatable arguments are fetched.
type Func struct {
	Name string
	Fn   func(args ...any) (any, error)
	Args []Node
}

// Throw raises an error when evaluated. It is never constant.
type Throw struct {
	Message string
}

func (*Source) node()   {}
func (*Param) node()    {}
func (*Const) node()    {}
func (*Member) node()   {}
func (*Call) node()     {}
func (*Lambda) node()   {}
func (*Binary) node()   {}
func (*Unary) node()    {}
func (*Cond) node()     {}
func (*New) node()      {}
func (*NewArray) node() {}
func (*TypeIs) node()   {}
func (*Func) node()     {}
func (*Throw) node()    {}
