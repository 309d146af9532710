package querysql

import (
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// objectRef is an object reachable from a from item: the item itself or
// an object reached through reference fields.
type objectRef struct {
	item  *fromItem
	class *schema.Class
	alias string // alias of the class's primary table
	key   string // resolved path prefix, used to memoize joins

	// outer is set once any join on the path to this object is outer.
	// Every later join from it must then be outer too, or the rows the
	// earlier join filled with NULLs would be dropped.
	outer bool
}

// resolved is the target of a path: either an object or a column.
type resolved struct {
	obj   *objectRef
	alias string
	field *schema.Field
}

// resolve walks a path left to right, adding joins as needed.
//
// The first segment names a from alias of this level or of an enclosing
// level; otherwise the path is relative to this level's first from item.
// A trailing reference field resolves to its foreign key column unless
// object is set, in which case the referenced object is joined.
func (c *converter) resolve(p *queryir.Path, object bool) (*resolved, error) {
	segs := p.Segments()
	item := c.lookupAlias(segs[0])
	if item != nil {
		segs = segs[1:]
	} else {
		if len(c.from) == 0 {
			return nil, ir.SchemaResolution("query", segs[0])
		}
		item = c.from[0]
	}

	obj := &objectRef{item: item, class: item.class, alias: item.alias, key: item.alias}
	for i, name := range segs {
		f, ok := obj.class.Field(name)
		if !ok {
			return nil, ir.SchemaResolution(obj.class.Name, name)
		}
		ta, err := c.tableAlias(obj, f.Table())
		if err != nil {
			return nil, err
		}
		last := i == len(segs)-1
		ref := f.RefClass()
		if last && (!object || ref == nil) {
			return &resolved{alias: ta, field: f}, nil
		}
		if ref == nil {
			return nil, ir.SchemaResolution(obj.class.Name+"."+name, segs[i+1])
		}
		if obj, err = c.joinReference(obj, f, ta); err != nil {
			return nil, err
		}
	}
	return &resolved{obj: obj}, nil
}

// lookupAlias finds a from item by alias here or in an enclosing level.
func (c *converter) lookupAlias(alias string) *fromItem {
	for k := c; k != nil; k = k.parent {
		for _, it := range k.from {
			if it.alias == alias {
				return it
			}
		}
	}
	return nil
}

// tableAlias returns the alias under which table is visible for obj,
// joining a secondary table on the primary key the first time it is used.
// Required secondary tables are inner joined, optional ones outer joined,
// and every table of an object reached through an outer join is outer.
func (c *converter) tableAlias(obj *objectRef, table *schema.Table) (string, error) {
	if table == obj.class.PrimaryTable() {
		return obj.alias, nil
	}
	memoKey := obj.key + "#" + table.Name
	if alias, ok := obj.item.memo[memoKey]; ok {
		return alias, nil
	}
	kf, err := obj.class.KeyField()
	if err != nil {
		return "", err
	}
	alias := c.aliases.fresh()
	obj.item.joins = append(obj.item.joins, &join{
		table:       table.Name,
		alias:       alias,
		outer:       obj.outer || !table.Required,
		leftAlias:   obj.alias,
		leftColumn:  kf.Column,
		rightColumn: kf.Column,
	})
	obj.item.memo[memoKey] = alias
	return alias, nil
}

// joinReference joins the primary table of the class f points at. The join
// is outer when the foreign key is nullable, when its table was outer
// joined, or when obj itself was reached through an outer join.
func (c *converter) joinReference(obj *objectRef, f *schema.Field, fkAlias string) (*objectRef, error) {
	ref := f.RefClass()
	memoKey := obj.key + "." + f.Name
	next := &objectRef{
		item:  obj.item,
		class: ref,
		key:   memoKey,
		outer: obj.outer || f.Nullable || c.outerAlias(obj.item, fkAlias),
	}
	if alias, ok := obj.item.memo[memoKey]; ok {
		next.alias = alias
		return next, nil
	}
	kf, err := ref.KeyField()
	if err != nil {
		return nil, err
	}
	next.alias = c.aliases.fresh()
	obj.item.joins = append(obj.item.joins, &join{
		table:       ref.PrimaryTable().Name,
		alias:       next.alias,
		outer:       next.outer,
		leftAlias:   fkAlias,
		leftColumn:  f.Column,
		rightColumn: kf.Column,
	})
	obj.item.memo[memoKey] = next.alias
	return next, nil
}

// outerAlias reports whether alias was introduced by an outer join of item.
func (c *converter) outerAlias(item *fromItem, alias string) bool {
	for _, j := range item.joins {
		if j.alias == alias {
			return j.outer
		}
	}
	return false
}

// keyColumn renders the primary key column of obj.
func (c *converter) keyColumn(obj *objectRef) (string, error) {
	kf, err := obj.class.KeyField()
	if err != nil {
		return "", err
	}
	return c.column(obj.alias, kf.Column), nil
}

// columnOf renders a resolved path as a scalar: the column, or the primary
// key of an object.
func (c *converter) columnOf(r *resolved) (string, error) {
	if r.obj != nil {
		return c.keyColumn(r.obj)
	}
	return c.column(r.alias, r.field.Column), nil
}

// kindOfResolved is the value kind of a resolved path used as a scalar.
func kindOfResolved(r *resolved) ir.Kind {
	if r.obj != nil {
		if kf, err := r.obj.class.KeyField(); err == nil {
			return kf.Kind
		}
		return ir.KindUnknown
	}
	return r.field.Kind
}
