package schema

import (
	"github.com/roach88/sooq/internal/ir"
)

// Class is a mapped persistent class.
//
// The exported members are the declaration as read from a mapping document.
// Everything else is derived by New and exposed through accessors.
type Class struct {
	Name     string
	Inherits string

	// OwnTables are the tables declared by this class. A root class lists its
	// primary table first. Subclasses list only their additional tables.
	OwnTables []*Table

	OwnCollections []*Collection

	// SubclassSelectorField names the discriminator field on a hierarchy root.
	SubclassSelectorField string

	// SubclassSelectorValue is this class's discriminator value.
	SubclassSelectorValue ir.Value

	// Abstract classes have no rows of their own.
	Abstract bool

	parent      *Class
	subclasses  []*Class
	tables      []*Table
	fields      []*Field
	byName      map[string]*Field
	collections map[string]*Collection
	primaryKey  []*Field
	selector    *Field
	resolved    bool
}

// Parent returns the superclass, or nil for a root class.
func (c *Class) Parent() *Class { return c.parent }

// Subclasses returns the direct subclasses.
func (c *Class) Subclasses() []*Class { return c.subclasses }

// Tables returns all tables backing the class, primary table first.
func (c *Class) Tables() []*Table { return c.tables }

// PrimaryTable returns the table holding the primary key.
func (c *Class) PrimaryTable() *Table { return c.tables[0] }

// Fields returns all fields, inherited fields first, in declaration order.
func (c *Class) Fields() []*Field { return c.fields }

// Field returns the named field.
func (c *Class) Field(name string) (*Field, bool) {
	f, ok := c.byName[name]
	return f, ok
}

// Collection returns the named collection.
func (c *Class) Collection(name string) (*Collection, bool) {
	col, ok := c.collections[name]
	return col, ok
}

// PrimaryKey returns the primary key fields.
func (c *Class) PrimaryKey() []*Field { return c.primaryKey }

// KeyField returns the single primary key field.
// Object identity comparisons and association joins need a one-column key.
func (c *Class) KeyField() (*Field, error) {
	if len(c.primaryKey) != 1 {
		return nil, ir.Unsupported(c.Name, "class %q has a composite primary key", c.Name)
	}
	return c.primaryKey[0], nil
}

// Selector returns the discriminator field of the class hierarchy, or nil.
func (c *Class) Selector() *Field { return c.selector }

// Root returns the topmost ancestor.
func (c *Class) Root() *Class {
	r := c
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// IsA reports whether c is other or one of its descendants.
func (c *Class) IsA(other *Class) bool {
	for k := c; k != nil; k = k.parent {
		if k == other {
			return true
		}
	}
	return false
}

// InHierarchy reports whether the class takes part in a discriminated hierarchy.
func (c *Class) InHierarchy() bool {
	return c.selector != nil && (c.parent != nil || len(c.subclasses) > 0)
}

// SelectorValues returns the discriminator values of c and every concrete
// descendant, depth first in declaration order.
func (c *Class) SelectorValues() []ir.Value {
	var out []ir.Value
	var walk func(k *Class)
	walk = func(k *Class) {
		if !k.Abstract && k.SubclassSelectorValue != nil {
			out = append(out, k.SubclassSelectorValue)
		}
		for _, sub := range k.subclasses {
			walk(sub)
		}
	}
	walk(c)
	return out
}

// ClassForSelector finds the most derived class in c's subtree whose
// discriminator value equals v. It returns c when nothing matches.
func (c *Class) ClassForSelector(v any) *Class {
	var found *Class
	var walk func(k *Class)
	walk = func(k *Class) {
		if found != nil {
			return
		}
		if k.SubclassSelectorValue != nil && sameValue(k.SubclassSelectorValue.Go(), v) {
			found = k
			return
		}
		for _, sub := range k.subclasses {
			walk(sub)
		}
	}
	walk(c)
	if found == nil {
		return c
	}
	return found
}

func sameValue(a, b any) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		case []byte:
			return string(y) == ir.FormatValue(ir.Int(x))
		case string:
			return y == ir.FormatValue(ir.Int(x))
		}
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case []byte:
			return x == string(y)
		}
	}
	return a == b
}
