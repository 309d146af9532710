package expr

import "reflect"

// Src returns a query source over class.
func Src(class string) *Source { return &Source{Class: class} }

// P returns a new lambda parameter.
func P(name string) *Param { return &Param{Name: name} }

// C wraps a host value.
func C(v any) *Const { return &Const{Value: v} }

// M builds a member access chain: M(c, "Type", "Code") is c.Type.Code.
func M(x Node, path ...string) Node {
	for _, name := range path {
		x = &Member{X: x, Name: name}
	}
	return x
}

// L builds a lambda over params.
func L(body Node, params ...*Param) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// Fn builds a one-parameter lambda by calling body with a fresh parameter.
//
//	expr.Fn("c", func(c Node) Node { return expr.Eq(expr.M(c, "Name"), expr.C("Mary")) })
func Fn(name string, body func(p Node) Node) *Lambda {
	p := P(name)
	return &Lambda{Params: []*Param{p}, Body: body(p)}
}

// CallM calls an instance method on recv. The declaring type is inferred
// during translation.
func CallM(recv Node, name string, args ...Node) *Call {
	return &Call{Method: Method{Name: name}, Recv: recv, Args: args}
}

// Generic calls a generic instance method such as OfType<Bike>().
func Generic(recv Node, name string, typeArgs []string, args ...Node) *Call {
	return &Call{Method: Method{Name: name, TypeArgs: typeArgs}, Recv: recv, Args: args}
}

// Static calls a static method such as Math.Abs or String.IsNullOrEmpty.
func Static(typ, name string, args ...Node) *Call {
	return &Call{Method: Method{Type: typ, Name: name}, Args: args}
}

func bin(op BinaryOp, x, y Node) *Binary { return &Binary{Op: op, X: x, Y: y} }

func Add(x, y Node) *Binary      { return bin(OpAdd, x, y) }
func Sub(x, y Node) *Binary      { return bin(OpSub, x, y) }
func Mul(x, y Node) *Binary      { return bin(OpMul, x, y) }
func Div(x, y Node) *Binary      { return bin(OpDiv, x, y) }
func Mod(x, y Node) *Binary      { return bin(OpMod, x, y) }
func Eq(x, y Node) *Binary       { return bin(OpEq, x, y) }
func Ne(x, y Node) *Binary       { return bin(OpNe, x, y) }
func Lt(x, y Node) *Binary       { return bin(OpLt, x, y) }
func Le(x, y Node) *Binary       { return bin(OpLe, x, y) }
func Gt(x, y Node) *Binary       { return bin(OpGt, x, y) }
func Ge(x, y Node) *Binary       { return bin(OpGe, x, y) }
func And(x, y Node) *Binary      { return bin(OpAndAlso, x, y) }
func Or(x, y Node) *Binary       { return bin(OpOrElse, x, y) }
func Coalesce(x, y Node) *Binary { return bin(OpCoalesce, x, y) }

// Not negates a boolean.
func Not(x Node) *Unary { return &Unary{Op: OpNot, X: x} }

// Neg negates a number.
func Neg(x Node) *Unary { return &Unary{Op: OpNegate, X: x} }

// Convert casts x to typ.
func Convert(x Node, typ string) *Unary { return &Unary{Op: OpConvert, X: x, Type: typ} }

// If builds test ? then : els.
func If(test, then, els Node) *Cond { return &Cond{Test: test, Then: then, Else: els} }

// Is builds `x is class`.
func Is(x Node, class string) *TypeIs { return &TypeIs{X: x, Class: class} }

// Array builds new[] { elems... }.
func Array(elems ...Node) *NewArray { return &NewArray{Elems: elems} }

// Field is one member of an object construction.
type Field struct {
	Name  string
	Value Node
}

// F names a member value for Object.
func F(name string, value Node) Field { return Field{Name: name, Value: value} }

// Object builds an anonymous object: new { Name = ..., ... }.
func Object(fields ...Field) *New {
	n := &New{Members: make([]string, len(fields)), Args: make([]Node, len(fields))}
	for i, f := range fields {
		n.Members[i] = f.Name
		n.Args[i] = f.Value
	}
	return n
}

// Struct builds a value of the struct type of proto, filling fields by name.
func Struct(proto any, fields ...Field) *New {
	n := Object(fields...)
	t := reflect.TypeOf(proto)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	n.Type = t
	return n
}

// Host wraps a Go function that runs on the client over evaluated args.
func Host(name string, fn func(args ...any) (any, error), args ...Node) *Func {
	return &Func{Name: name, Fn: fn, Args: args}
}
