package expr

// Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(n Node) (w Visitor)
}

// Walk traverses the tree rooted at n in depth-first order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if v = v.Visit(n); v == nil {
		return
	}
	for _, c := range Children(n) {
		Walk(v, c)
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node) Visitor {
	if n != nil && f(n) {
		return f
	}
	return nil
}

// Inspect calls f for each node of the tree in depth-first order.
// Children are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	Walk(inspector(f), n)
}

// Children returns the direct child nodes in evaluation order.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Member:
		return []Node{x.X}
	case *Call:
		out := make([]Node, 0, len(x.Args)+1)
		if x.Recv != nil {
			out = append(out, x.Recv)
		}
		return append(out, x.Args...)
	case *Lambda:
		out := make([]Node, 0, len(x.Params)+1)
		for _, p := range x.Params {
			out = append(out, p)
		}
		return append(out, x.Body)
	case *Binary:
		return []Node{x.X, x.Y}
	case *Unary:
		return []Node{x.X}
	case *Cond:
		return []Node{x.Test, x.Then, x.Else}
	case *New:
		return x.Args
	case *NewArray:
		return x.Elems
	case *TypeIs:
		return []Node{x.X}
	case *Func:
		return x.Args
	}
	return nil
}

// References reports whether n mentions any of params.
func References(n Node, params ...*Param) bool {
	if len(params) == 0 {
		return false
	}
	found := false
	Inspect(n, func(c Node) bool {
		if found {
			return false
		}
		if p, ok := c.(*Param); ok {
			for _, want := range params {
				if p == want {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

// Replace returns a copy of n with every node for which f returns a
// non-nil replacement substituted. Unchanged subtrees are shared.
func Replace(n Node, f func(Node) Node) Node {
	if n == nil {
		return nil
	}
	if r := f(n); r != nil {
		return r
	}
	switch x := n.(type) {
	case *Member:
		if nx := Replace(x.X, f); nx != x.X {
			return &Member{X: nx, Name: x.Name}
		}
	case *Call:
		recv := Replace(x.Recv, f)
		args, changed := replaceAll(x.Args, f)
		if changed || recv != x.Recv {
			return &Call{Method: x.Method, Recv: recv, Args: args}
		}
	case *Lambda:
		if body := Replace(x.Body, f); body != x.Body {
			return &Lambda{Params: x.Params, Body: body}
		}
	case *Binary:
		nx, ny := Replace(x.X, f), Replace(x.Y, f)
		if nx != x.X || ny != x.Y {
			return &Binary{Op: x.Op, X: nx, Y: ny}
		}
	case *Unary:
		if nx := Replace(x.X, f); nx != x.X {
			return &Unary{Op: x.Op, X: nx, Type: x.Type}
		}
	case *Cond:
		t, a, b := Replace(x.Test, f), Replace(x.Then, f), Replace(x.Else, f)
		if t != x.Test || a != x.Then || b != x.Else {
			return &Cond{Test: t, Then: a, Else: b}
		}
	case *New:
		if args, changed := replaceAll(x.Args, f); changed {
			return &New{Type: x.Type, Members: x.Members, Args: args}
		}
	case *NewArray:
		if elems, changed := replaceAll(x.Elems, f); changed {
			return &NewArray{Elems: elems}
		}
	case *TypeIs:
		if nx := Replace(x.X, f); nx != x.X {
			return &TypeIs{X: nx, Class: x.Class}
		}
	case *Func:
		if args, changed := replaceAll(x.Args, f); changed {
			return &Func{Name: x.Name, Fn: x.Fn, Args: args}
		}
	}
	return n
}

func replaceAll(nodes []Node, f func(Node) Node) ([]Node, bool) {
	out := make([]Node, len(nodes))
	changed := false
	for i, c := range nodes {
		out[i] = Replace(c, f)
		changed = changed || out[i] != c
	}
	return out, changed
}
