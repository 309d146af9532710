package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOptions resolves free identifiers of a textual query.
type ParseOptions struct {
	// Vars binds identifiers to host values, which become constants.
	Vars map[string]any

	// IsClass reports whether an identifier names a mapped class. Such
	// identifiers become query sources.
	IsClass func(name string) bool
}

// staticTypes may prefix a static method call.
var staticTypes = map[string]string{
	"Math":   "Math",
	"String": "String",
	"string": "String",
}

var castTypes = map[string]bool{
	"int": true, "long": true, "double": true, "decimal": true,
	"float": true, "string": true, "bool": true,
}

// Parse reads a query written in lambda-chain syntax:
//
//	Contact.Where(c => c.Type.Code == "Customer").OrderBy(c => c.Name).Select(c => new { c.Name })
//
// Identifiers resolve to enclosing lambda parameters first, then to
// opts.Vars, then to mapped classes, then to the static types Math and String.
func Parse(src string, opts ParseOptions) (Node, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, opts: opts}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != EOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return n, nil
}

type parser struct {
	toks   []Token
	pos    int
	opts   ParseOptions
	scopes [][]*Param
}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(k int) Token {
	if p.pos+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+k]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != EOF {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.Type == Symbol || t.Type == Ident) && t.Text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf(p.peek(), "expected %q, found %s", text, p.peek())
	}
	return nil
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return &SyntaxError{Pos: t.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) lookup(name string) *Param {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		for _, prm := range p.scopes[i] {
			if prm.Name == name {
				return prm
			}
		}
	}
	return nil
}

func (p *parser) expr() (Node, error) {
	if params, ok := p.lambdaHead(); ok {
		return p.lambda(params)
	}
	return p.conditional()
}

// lambdaHead consumes `x =>`, `(x, y) =>` or `() =>` when present.
func (p *parser) lambdaHead() ([]string, bool) {
	t := p.peek()
	if t.Type == Ident && p.peekAt(1).Text == "=>" {
		p.pos += 2
		return []string{t.Text}, true
	}
	if !p.is("(") {
		return nil, false
	}
	var names []string
	k := 1
	for {
		t := p.peekAt(k)
		if t.Text == ")" && t.Type == Symbol {
			break
		}
		if t.Type != Ident {
			return nil, false
		}
		names = append(names, t.Text)
		k++
		if sep := p.peekAt(k); sep.Type == Symbol && sep.Text == "," {
			k++
			continue
		}
		if p.peekAt(k).Text != ")" {
			return nil, false
		}
	}
	if p.peekAt(k+1).Text != "=>" {
		return nil, false
	}
	p.pos += k + 2
	return names, true
}

func (p *parser) lambda(names []string) (Node, error) {
	params := make([]*Param, len(names))
	for i, n := range names {
		params[i] = P(n)
	}
	p.scopes = append(p.scopes, params)
	defer func() { p.scopes = p.scopes[:len(p.scopes)-1] }()

	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: params, Body: body}, nil
}

func (p *parser) conditional() (Node, error) {
	test, err := p.coalesce()
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return test, nil
	}
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return If(test, then, els), nil
}

func (p *parser) coalesce() (Node, error) {
	x, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.accept("??") {
		return x, nil
	}
	y, err := p.coalesce()
	if err != nil {
		return nil, err
	}
	return Coalesce(x, y), nil
}

// precedence lists binary operator levels from loosest to tightest.
var precedence = [][]struct {
	tok string
	op  BinaryOp
}{
	{{"||", OpOrElse}},
	{{"&&", OpAndAlso}},
	{{"==", OpEq}, {"!=", OpNe}},
	{{"<", OpLt}, {"<=", OpLe}, {">", OpGt}, {">=", OpGe}},
	{{"+", OpAdd}, {"-", OpSub}},
	{{"*", OpMul}, {"/", OpDiv}, {"%", OpMod}},
}

const relationalLevel = 3

func (p *parser) binary(level int) (Node, error) {
	if level == len(precedence) {
		return p.unary()
	}
	x, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		if level == relationalLevel && p.peek().Type == Ident && p.peek().Text == "is" {
			p.next()
			t := p.next()
			if t.Type != Ident {
				return nil, p.errorf(t, "expected class name after 'is'")
			}
			x = Is(x, t.Text)
			continue
		}
		op, ok := p.binaryOp(level)
		if !ok {
			return x, nil
		}
		y, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		x = bin(op, x, y)
	}
}

func (p *parser) binaryOp(level int) (BinaryOp, bool) {
	t := p.peek()
	if t.Type != Symbol {
		return 0, false
	}
	for _, cand := range precedence[level] {
		if cand.tok == t.Text {
			p.next()
			return cand.op, true
		}
	}
	return 0, false
}

func (p *parser) unary() (Node, error) {
	switch {
	case p.accept("!"):
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not(x), nil
	case p.accept("-"):
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if c, ok := x.(*Const); ok {
			switch v := c.Value.(type) {
			case int64:
				return C(-v), nil
			case float64:
				return C(-v), nil
			}
		}
		return Neg(x), nil
	case p.is("(") && p.peekAt(1).Type == Ident && castTypes[p.peekAt(1).Text] &&
		p.peekAt(2).Text == ")" && p.lookup(p.peekAt(1).Text) == nil:
		typ := p.peekAt(1).Text
		p.pos += 3
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Convert(x, typ), nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.accept(".") {
		t := p.next()
		if t.Type != Ident {
			return nil, p.errorf(t, "expected member name, found %s", t)
		}
		typeArgs, ok := p.typeArgs()
		if !ok && !p.is("(") {
			x = &Member{X: x, Name: t.Text}
			continue
		}
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		x = &Call{Method: Method{Name: t.Text, TypeArgs: typeArgs}, Recv: x, Args: args}
	}
	return x, nil
}

// typeArgs consumes `<A, B>` when it is immediately followed by a call.
func (p *parser) typeArgs() ([]string, bool) {
	if !p.is("<") {
		return nil, false
	}
	var names []string
	k := 1
	for {
		t := p.peekAt(k)
		if t.Type != Ident {
			return nil, false
		}
		names = append(names, t.Text)
		k++
		sep := p.peekAt(k)
		if sep.Text == "," {
			k++
			continue
		}
		if sep.Text == ">" && p.peekAt(k+1).Text == "(" {
			p.pos += k + 1
			return names, true
		}
		return nil, false
	}
}

func (p *parser) args() ([]Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Node
	for !p.accept(")") {
		if len(args) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.Type {
	case Number:
		return parseNumber(t, p)
	case Str:
		return C(t.Text), nil
	case Symbol:
		if t.Text == "(" {
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			return x, p.expect(")")
		}
		return nil, p.errorf(t, "unexpected %s", t)
	case Ident:
		return p.ident(t)
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) ident(t Token) (Node, error) {
	switch t.Text {
	case "true":
		return C(true), nil
	case "false":
		return C(false), nil
	case "null":
		return C(nil), nil
	case "new":
		return p.newExpr()
	case "throw":
		msg := p.next()
		if msg.Type != Str {
			return nil, p.errorf(msg, "expected message after throw")
		}
		return &Throw{Message: msg.Text}, nil
	}

	if prm := p.lookup(t.Text); prm != nil {
		return prm, nil
	}
	if v, ok := p.opts.Vars[t.Text]; ok {
		return C(v), nil
	}
	if p.opts.IsClass != nil && p.opts.IsClass(t.Text) {
		return Src(t.Text), nil
	}
	if typ, ok := staticTypes[t.Text]; ok && p.is(".") {
		p.next()
		name := p.next()
		if name.Type != Ident {
			return nil, p.errorf(name, "expected method name after %s.", typ)
		}
		if !p.is("(") {
			return nil, p.errorf(name, "%s.%s is not a method call", typ, name.Text)
		}
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return Static(typ, name.Text, args...), nil
	}
	return nil, p.errorf(t, "unknown identifier %q", t.Text)
}

func (p *parser) newExpr() (Node, error) {
	if p.accept("[") {
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		if err := p.expect("{"); err != nil {
			return nil, err
		}
		var elems []Node
		for !p.accept("}") {
			if len(elems) > 0 {
				if err := p.expect(","); err != nil {
					return nil, err
				}
			}
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return Array(elems...), nil
	}

	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var fields []Field
	for !p.accept("}") {
		if len(fields) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		if t := p.peek(); t.Type == Ident && p.peekAt(1).Text == "=" {
			p.pos += 2
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			fields = append(fields, F(t.Text, v))
			continue
		}
		start := p.peek()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		name, ok := inferredName(v)
		if !ok {
			return nil, p.errorf(start, "anonymous member %s needs a name", v)
		}
		fields = append(fields, F(name, v))
	}
	return Object(fields...), nil
}

// inferredName names a projection initializer member the way `new { c.Name }` does.
func inferredName(n Node) (string, bool) {
	switch x := n.(type) {
	case *Member:
		return x.Name, true
	case *Param:
		return x.Name, true
	}
	return "", false
}

func parseNumber(t Token, p *parser) (Node, error) {
	text := t.Text
	isFloat := strings.ContainsAny(text, ".eE")
	switch last := text[len(text)-1]; last {
	case 'L', 'l':
		text = text[:len(text)-1]
	case 'M', 'm', 'D', 'd', 'F', 'f':
		text = text[:len(text)-1]
		isFloat = true
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf(t, "bad number %q", t.Text)
		}
		return C(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf(t, "bad number %q", t.Text)
	}
	return C(n), nil
}
