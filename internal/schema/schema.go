// Package schema is the read-only mapping metadata consumed by the query
// pipeline: classes, their tables and fields, associations, and class
// hierarchies with discriminator values.
//
// A Schema is assembled once (see New) and never mutated afterwards, so it
// is safe to share between concurrently running sessions.
package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/sooq/internal/ir"
)

// Schema is a resolved set of mapped classes and relations.
type Schema struct {
	classes   map[string]*Class
	relations map[string]*Relation
	order     []string
}

// Table is one physical table backing a class.
// The first table of a class is its primary table; further tables share the
// primary key column and are joined on it.
type Table struct {
	Name   string
	Fields []*Field

	// Required marks a secondary table that always has a row for every
	// primary row, so it can be inner joined.
	Required bool

	owner *Class
}

// Owner returns the class that declared the table.
func (t *Table) Owner() *Class { return t.owner }

// Field maps a class member to a column.
type Field struct {
	Name       string
	Column     string
	Kind       ir.Kind
	Nullable   bool
	PrimaryKey bool

	// References names the class this field points to (foreign key).
	References string

	table    *Table
	refClass *Class
}

// Table returns the table holding the field's column.
func (f *Field) Table() *Table { return f.table }

// RefClass returns the referenced class, or nil for scalar fields.
func (f *Field) RefClass() *Class { return f.refClass }

// IsReference reports whether the field is a foreign key to another class.
func (f *Field) IsReference() bool { return f.References != "" }

// CollectionKind distinguishes association collections.
type CollectionKind int

const (
	OneToMany CollectionKind = iota
	ManyToMany
)

// Collection is an association exposed as a collection member of a class.
type Collection struct {
	Name string
	Kind CollectionKind

	// Class is the element class name.
	Class string

	// ForeignField is the field of the element class pointing back at the
	// owner (OneToMany only).
	ForeignField string

	// Relation and MasterSide identify the link table (ManyToMany only).
	// MasterSide is 0 when the owner is the relation's left side.
	Relation   string
	MasterSide int

	elem     *Class
	relation *Relation
}

// Element returns the resolved element class.
func (c *Collection) Element() *Class { return c.elem }

// Link returns the resolved relation of a ManyToMany collection.
func (c *Collection) Link() *Relation { return c.relation }

// OwnerColumn returns the link-table column referencing the owner.
func (c *Collection) OwnerColumn() string {
	if c.MasterSide == 0 {
		return c.relation.Left.Column
	}
	return c.relation.Right.Column
}

// ElementColumn returns the link-table column referencing the element.
func (c *Collection) ElementColumn() string {
	if c.MasterSide == 0 {
		return c.relation.Right.Column
	}
	return c.relation.Left.Column
}

// RelationSide is one column of a many-to-many link table.
type RelationSide struct {
	Column string
	Class  string
	Kind   ir.Kind
}

// Relation is a many-to-many link table.
type Relation struct {
	Name  string
	Table string
	Left  RelationSide
	Right RelationSide
}

// New links classes and relations into a Schema.
// It resolves inheritance (a subclass inherits its parent's tables, fields
// and collections), foreign key targets, and collection element classes.
func New(classes []*Class, relations []*Relation) (*Schema, error) {
	s := &Schema{
		classes:   make(map[string]*Class, len(classes)),
		relations: make(map[string]*Relation, len(relations)),
	}
	for _, r := range relations {
		if _, dup := s.relations[r.Name]; dup {
			return nil, fmt.Errorf("duplicate relation %q", r.Name)
		}
		s.relations[r.Name] = r
	}
	for _, c := range classes {
		if _, dup := s.classes[c.Name]; dup {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		s.classes[c.Name] = c
		s.order = append(s.order, c.Name)
		for _, t := range c.OwnTables {
			t.owner = c
			for _, f := range t.Fields {
				f.table = t
			}
		}
	}

	for _, c := range classes {
		if c.Inherits == "" {
			continue
		}
		parent, ok := s.classes[c.Inherits]
		if !ok {
			return nil, fmt.Errorf("class %q inherits unknown class %q", c.Name, c.Inherits)
		}
		c.parent = parent
		parent.subclasses = append(parent.subclasses, c)
	}

	for _, c := range classes {
		if err := s.resolve(c, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// resolve fills the derived members of c after its ancestors.
func (s *Schema) resolve(c *Class, seen []string) error {
	if c.resolved {
		return nil
	}
	if slices.Contains(seen, c.Name) {
		return fmt.Errorf("inheritance cycle through class %q", c.Name)
	}
	seen = append(seen, c.Name)

	c.byName = make(map[string]*Field)
	c.collections = make(map[string]*Collection)

	if c.parent != nil {
		if err := s.resolve(c.parent, seen); err != nil {
			return err
		}
		c.tables = append(c.tables, c.parent.tables...)
		c.fields = append(c.fields, c.parent.fields...)
		for k, v := range c.parent.byName {
			c.byName[k] = v
		}
		for k, v := range c.parent.collections {
			c.collections[k] = v
		}
		c.primaryKey = c.parent.primaryKey
		c.selector = c.parent.selector
	}

	for _, t := range c.OwnTables {
		c.tables = append(c.tables, t)
		for _, f := range t.Fields {
			if _, dup := c.byName[f.Name]; dup {
				return fmt.Errorf("class %q: duplicate field %q", c.Name, f.Name)
			}
			if f.References != "" {
				ref, ok := s.classes[f.References]
				if !ok {
					return fmt.Errorf("class %q: field %q references unknown class %q", c.Name, f.Name, f.References)
				}
				f.refClass = ref
			}
			c.fields = append(c.fields, f)
			c.byName[f.Name] = f
			if f.PrimaryKey && c.parent == nil {
				c.primaryKey = append(c.primaryKey, f)
			}
		}
	}

	if c.SubclassSelectorField != "" {
		sel, ok := c.byName[c.SubclassSelectorField]
		if !ok {
			return fmt.Errorf("class %q: subclass selector field %q not found", c.Name, c.SubclassSelectorField)
		}
		c.selector = sel
	}

	for _, col := range c.OwnCollections {
		elem, ok := s.classes[col.Class]
		if !ok {
			return fmt.Errorf("class %q: collection %q has unknown element class %q", c.Name, col.Name, col.Class)
		}
		col.elem = elem
		if col.Kind == ManyToMany {
			rel, ok := s.relations[col.Relation]
			if !ok {
				return fmt.Errorf("class %q: collection %q has unknown relation %q", c.Name, col.Name, col.Relation)
			}
			col.relation = rel
		}
		c.collections[col.Name] = col
	}

	if len(c.primaryKey) == 0 {
		return fmt.Errorf("class %q has no primary key", c.Name)
	}
	c.resolved = true
	return nil
}

// Class returns the named class.
func (s *Schema) Class(name string) (*Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Lookup returns the named class or a schema resolution error.
func (s *Schema) Lookup(name string) (*Class, error) {
	if c, ok := s.classes[name]; ok {
		return c, nil
	}
	return nil, ir.UnknownClass(name)
}

// Relation returns the named relation.
func (s *Schema) Relation(name string) (*Relation, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// Classes returns the classes in declaration order.
func (s *Schema) Classes() []*Class {
	out := make([]*Class, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.classes[name])
	}
	return out
}

// Relations returns the relations sorted by name.
func (s *Schema) Relations() []*Relation {
	out := make([]*Relation, 0, len(s.relations))
	for _, r := range s.relations {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Relation) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}
