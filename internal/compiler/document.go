// Package compiler turns mapping documents (CUE or YAML) into a resolved
// schema.Schema.
//
// Both formats decode into the same Document shape:
//
//	classes:
//	  - name: Contact
//	    tables:
//	      - name: Contact
//	        fields:
//	          - {name: ContactId, column: id, type: int, primaryKey: true}
//	          - {name: Type, column: type, type: string, references: ContactType}
//	    collections:
//	      - {name: Subordinates, class: Contact, foreignField: Manager}
//	relations:
//	  - name: ContactToRole
//	    table: ContactToRole
//	    left: {column: contact_id, class: Contact}
//	    right: {column: role_id, class: Role}
//
// Documents are validated (Validate) before they are linked (schema.New).
package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/schema"
)

// Document is the decoded form of a mapping file.
type Document struct {
	Classes   []ClassDoc    `json:"classes" yaml:"classes"`
	Relations []RelationDoc `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// ClassDoc declares one mapped class.
type ClassDoc struct {
	Name                  string          `json:"name" yaml:"name"`
	Inherits              string          `json:"inherits,omitempty" yaml:"inherits,omitempty"`
	Abstract              bool            `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	SubclassSelectorField string          `json:"subclassSelectorField,omitempty" yaml:"subclassSelectorField,omitempty"`
	SubclassSelectorValue any             `json:"subclassSelectorValue,omitempty" yaml:"subclassSelectorValue,omitempty"`
	Tables                []TableDoc      `json:"tables,omitempty" yaml:"tables,omitempty"`
	Collections           []CollectionDoc `json:"collections,omitempty" yaml:"collections,omitempty"`
}

// TableDoc declares a table and the fields stored in it.
type TableDoc struct {
	Name     string     `json:"name" yaml:"name"`
	Required bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Fields   []FieldDoc `json:"fields" yaml:"fields"`
}

// FieldDoc declares one field. Column defaults to Name.
type FieldDoc struct {
	Name       string `json:"name" yaml:"name"`
	Column     string `json:"column,omitempty" yaml:"column,omitempty"`
	Type       string `json:"type" yaml:"type"`
	Nullable   bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	PrimaryKey bool   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	References string `json:"references,omitempty" yaml:"references,omitempty"`
}

// CollectionDoc declares an association collection.
// A collection with Relation set is many-to-many; otherwise ForeignField
// names the element-class field pointing back at the owner.
type CollectionDoc struct {
	Name         string `json:"name" yaml:"name"`
	Class        string `json:"class" yaml:"class"`
	ForeignField string `json:"foreignField,omitempty" yaml:"foreignField,omitempty"`
	Relation     string `json:"relation,omitempty" yaml:"relation,omitempty"`
	Side         string `json:"side,omitempty" yaml:"side,omitempty"` // "left" (default) | "right"
}

// RelationDoc declares a many-to-many link table.
type RelationDoc struct {
	Name  string  `json:"name" yaml:"name"`
	Table string  `json:"table" yaml:"table"`
	Left  SideDoc `json:"left" yaml:"left"`
	Right SideDoc `json:"right" yaml:"right"`
}

// SideDoc is one column of a link table.
type SideDoc struct {
	Column string `json:"column" yaml:"column"`
	Class  string `json:"class" yaml:"class"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Compile validates the document and links it into a Schema.
func Compile(doc *Document) (*schema.Schema, error) {
	if errs := Validate(doc); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	byName := make(map[string]*ClassDoc, len(doc.Classes))
	for i := range doc.Classes {
		byName[doc.Classes[i].Name] = &doc.Classes[i]
	}

	classes := make([]*schema.Class, 0, len(doc.Classes))
	for i := range doc.Classes {
		cd := &doc.Classes[i]
		c := &schema.Class{
			Name:                  cd.Name,
			Inherits:              cd.Inherits,
			Abstract:              cd.Abstract,
			SubclassSelectorField: cd.SubclassSelectorField,
		}

		for _, td := range cd.Tables {
			t := &schema.Table{Name: td.Name, Required: td.Required}
			for _, fd := range td.Fields {
				kind, _ := ir.ParseKind(fd.Type)
				column := fd.Column
				if column == "" {
					column = fd.Name
				}
				t.Fields = append(t.Fields, &schema.Field{
					Name:       fd.Name,
					Column:     column,
					Kind:       kind,
					Nullable:   fd.Nullable,
					PrimaryKey: fd.PrimaryKey,
					References: fd.References,
				})
			}
			c.OwnTables = append(c.OwnTables, t)
		}

		for _, col := range cd.Collections {
			sc := &schema.Collection{Name: col.Name, Class: col.Class}
			if col.Relation != "" {
				sc.Kind = schema.ManyToMany
				sc.Relation = col.Relation
				if col.Side == "right" {
					sc.MasterSide = 1
				}
			} else {
				sc.Kind = schema.OneToMany
				sc.ForeignField = col.ForeignField
			}
			c.OwnCollections = append(c.OwnCollections, sc)
		}

		if cd.SubclassSelectorValue != nil {
			kind := selectorKind(byName, cd)
			v, err := ir.ParseValue(kind, fmt.Sprint(cd.SubclassSelectorValue))
			if err != nil {
				return nil, fmt.Errorf("class %q: subclass selector value: %w", cd.Name, err)
			}
			c.SubclassSelectorValue = v
		}
		classes = append(classes, c)
	}

	relations := make([]*schema.Relation, 0, len(doc.Relations))
	for _, rd := range doc.Relations {
		relations = append(relations, &schema.Relation{
			Name:  rd.Name,
			Table: rd.Table,
			Left:  schema.RelationSide{Column: rd.Left.Column, Class: rd.Left.Class, Kind: sideKind(byName, rd.Left)},
			Right: schema.RelationSide{Column: rd.Right.Column, Class: rd.Right.Class, Kind: sideKind(byName, rd.Right)},
		})
	}

	return schema.New(classes, relations)
}

// selectorKind finds the type of the discriminator field declared on the
// hierarchy root of cd.
func selectorKind(byName map[string]*ClassDoc, cd *ClassDoc) ir.Kind {
	for k := cd; k != nil; k = byName[k.Inherits] {
		if k.SubclassSelectorField == "" {
			continue
		}
		if f := findField(byName, k, k.SubclassSelectorField); f != nil {
			kind, _ := ir.ParseKind(f.Type)
			return kind
		}
	}
	return ir.KindString
}

// sideKind is the key type of the class a link column points at.
func sideKind(byName map[string]*ClassDoc, side SideDoc) ir.Kind {
	if side.Type != "" {
		kind, _ := ir.ParseKind(side.Type)
		return kind
	}
	if cd, ok := byName[side.Class]; ok {
		for k := cd; k != nil; k = byName[k.Inherits] {
			for _, t := range k.Tables {
				for _, f := range t.Fields {
					if f.PrimaryKey {
						kind, _ := ir.ParseKind(f.Type)
						return kind
					}
				}
			}
		}
	}
	return ir.KindInt
}

// findField looks a field up on cd and its ancestors.
func findField(byName map[string]*ClassDoc, cd *ClassDoc, name string) *FieldDoc {
	seen := map[string]bool{}
	for k := cd; k != nil && !seen[k.Name]; k = byName[k.Inherits] {
		seen[k.Name] = true
		for ti := range k.Tables {
			for fi := range k.Tables[ti].Fields {
				if k.Tables[ti].Fields[fi].Name == name {
					return &k.Tables[ti].Fields[fi]
				}
			}
		}
	}
	return nil
}

// ValidationErrors is the error returned by Compile for an invalid document.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
