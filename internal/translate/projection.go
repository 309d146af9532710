package translate

import (
	"fmt"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// Item describes one select item of a projection.
type Item struct {
	Kind     ir.Kind
	Nullable bool

	// Class is set when the item is a mapped object. The engine
	// materializes the object's columns before calling Build.
	Class *schema.Class
}

// Projection is a Select body split in two: the largest subexpressions
// with a SQL translation become select items, and the rest of the body is
// evaluated on the client over the fetched items.
type Projection struct {
	body expr.Node
	env  *expr.Env

	columns []column
	items   []queryir.Expr
	aliases []string
	meta    []Item
}

// column binds one translated subexpression to its select items. A
// composite group key spans one item per member.
type column struct {
	node  expr.Node
	first int
	names []string
}

// Items describes the select items in order.
func (p *Projection) Items() []Item { return p.meta }

// Build evaluates the projection body for one fetched row. items holds one
// value per select item, mapped objects already materialized.
func (p *Projection) Build(items []any) (any, error) {
	if len(items) != len(p.meta) {
		return nil, fmt.Errorf("projection needs %d items, got %d", len(p.meta), len(items))
	}
	values := make(map[expr.Node]any, len(p.columns))
	for _, c := range p.columns {
		if c.names == nil {
			values[c.node] = items[c.first]
			continue
		}
		m := make(map[string]any, len(c.names))
		for i, name := range c.names {
			m[name] = items[c.first+i]
		}
		values[c.node] = m
	}
	return expr.Eval(p.body, p.env.WithValues(values))
}

// project splits body, translated in scope sc, into select items and a
// client-side remainder. Constant subexpressions are left to the client.
func (t *translation) project(body expr.Node, sc *scope) (*Projection, error) {
	p := &Projection{body: body, env: sc.env()}
	if err := t.projectNode(p, body, "", sc); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *translation) projectNode(p *Projection, n expr.Node, name string, sc *scope) error {
	switch x := n.(type) {
	case *expr.Lambda:
		inner := sc
		for _, prm := range x.Params {
			inner = inner.push(binding{kind: bindClient, param: prm})
		}
		return t.projectNode(p, x.Body, "", inner)
	case *expr.Param:
		if b, ok := sc.lookup(x); ok && b.kind == bindClient {
			return nil
		}
	}
	if t.constant(n, sc) {
		return nil
	}
	v, err := t.value(n, sc)
	if err != nil {
		if !ir.IsUnsupported(err) {
			return err
		}
		kids := expr.Children(n)
		if len(kids) == 0 {
			return err
		}
		obj, _ := n.(*expr.New)
		for i, k := range kids {
			hint := ""
			if obj != nil && i < len(obj.Members) {
				hint = obj.Members[i]
			}
			if err := t.projectNode(p, k, hint, sc); err != nil {
				return err
			}
		}
		return nil
	}

	switch {
	case v.constant:
		return nil
	case v.fields != nil:
		c := column{node: n, first: len(p.items), names: v.names}
		for _, f := range v.names {
			fv := v.fields[f]
			p.add(fv.x, f, Item{Kind: fv.kind, Nullable: fv.nullable})
		}
		p.columns = append(p.columns, c)
	case v.class != nil:
		path, ok := v.x.(*queryir.Path)
		if !ok {
			return ir.Unsupported(n.String(), "%s cannot be selected", n)
		}
		p.columns = append(p.columns, column{node: n, first: len(p.items)})
		p.add(&queryir.Asterisk{Path: path}, name, Item{Kind: v.kind, Nullable: v.nullable, Class: v.class})
	case v.x != nil:
		p.columns = append(p.columns, column{node: n, first: len(p.items)})
		p.add(v.x, name, Item{Kind: v.kind, Nullable: v.nullable})
	default:
		return ir.Unsupported(n.String(), "%s cannot be selected; project its members or aggregates instead", n)
	}
	return nil
}

func (p *Projection) add(x queryir.Expr, alias string, it Item) {
	p.items = append(p.items, x)
	p.aliases = append(p.aliases, alias)
	p.meta = append(p.meta, it)
}
