package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func (n *Source) String() string { return n.Class }
func (n *Param) String() string  { return n.Name }

func (n *Const) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case time.Time:
		return strconv.Quote(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(n.Value)
}

func (n *Member) String() string { return n.X.String() + "." + n.Name }

func (m Method) String() string {
	name := m.Name
	if len(m.TypeArgs) > 0 {
		name += "<" + strings.Join(m.TypeArgs, ", ") + ">"
	}
	if m.Type != "" {
		return m.Type + "." + name
	}
	return name
}

func (n *Call) String() string {
	var b strings.Builder
	switch {
	case n.Recv != nil:
		b.WriteString(n.Recv.String())
		b.WriteByte('.')
		b.WriteString(Method{Name: n.Method.Name, TypeArgs: n.Method.TypeArgs}.String())
	default:
		b.WriteString(n.Method.String())
	}
	b.WriteByte('(')
	writeList(&b, n.Args)
	b.WriteByte(')')
	return b.String()
}

func (n *Lambda) String() string {
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		names[i] = p.Name
	}
	if len(names) == 1 {
		return names[0] + " => " + n.Body.String()
	}
	return "(" + strings.Join(names, ", ") + ") => " + n.Body.String()
}

func (n *Binary) String() string {
	return "(" + n.X.String() + " " + n.Op.String() + " " + n.Y.String() + ")"
}

func (n *Unary) String() string {
	switch n.Op {
	case OpNot:
		return "!" + n.X.String()
	case OpNegate:
		return "-" + n.X.String()
	}
	return "(" + n.Type + ")" + n.X.String()
}

func (n *Cond) String() string {
	return "(" + n.Test.String() + " ? " + n.Then.String() + " : " + n.Else.String() + ")"
}

func (n *New) String() string {
	var b strings.Builder
	b.WriteString("new ")
	if n.Type != nil {
		b.WriteString(n.Type.Name())
		b.WriteByte(' ')
	}
	b.WriteString("{ ")
	for i, arg := range n.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n.Members[i])
		b.WriteString(" = ")
		b.WriteString(arg.String())
	}
	b.WriteString(" }")
	return b.String()
}

func (n *NewArray) String() string {
	var b strings.Builder
	b.WriteString("new[] { ")
	writeList(&b, n.Elems)
	b.WriteString(" }")
	return b.String()
}

func (n *TypeIs) String() string { return "(" + n.X.String() + " is " + n.Class + ")" }

func (n *Func) String() string {
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteByte('(')
	writeList(&b, n.Args)
	b.WriteByte(')')
	return b.String()
}

func (n *Throw) String() string { return "throw " + strconv.Quote(n.Message) }

func writeList(b *strings.Builder, nodes []Node) {
	for i, a := range nodes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
}
