package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/sooq/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrClassName        = "E201" // missing or duplicate class name
	ErrNoPrimaryKey     = "E202" // root class without a primary key field
	ErrInvalidFieldType = "E203" // unknown type tag
	ErrUnknownReference = "E204" // field or collection names an unknown class
	ErrBadCollection    = "E205" // collection foreign field or relation invalid
	ErrBadRelation      = "E206" // relation missing table, columns or classes
	ErrBadHierarchy     = "E207" // inheritance or discriminator inconsistency
	ErrDuplicateName    = "E208" // duplicate field, column or collection name
)

// ValidationError represents a mapping document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a mapping document against the schema rules.
// Returns all errors found (does not fail-fast).
func Validate(doc *Document) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ClassDoc, len(doc.Classes))
	for i := range doc.Classes {
		cd := &doc.Classes[i]
		path := fmt.Sprintf("classes[%d]", i)

		// E201: class names are required and unique
		if strings.TrimSpace(cd.Name) == "" {
			errs = append(errs, ValidationError{Field: path + ".name", Message: "class name is required", Code: ErrClassName})
			continue
		}
		if _, dup := byName[cd.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate class name %q", cd.Name),
				Code:    ErrClassName,
			})
			continue
		}
		byName[cd.Name] = cd
	}

	relations := make(map[string]*RelationDoc, len(doc.Relations))
	for i := range doc.Relations {
		rd := &doc.Relations[i]
		path := fmt.Sprintf("relations[%d]", i)
		relations[rd.Name] = rd

		// E206: relations need a table and two resolvable sides
		if rd.Name == "" || rd.Table == "" {
			errs = append(errs, ValidationError{Field: path, Message: "relation requires name and table", Code: ErrBadRelation})
		}
		sides := []struct {
			name string
			doc  SideDoc
		}{{"left", rd.Left}, {"right", rd.Right}}
		for _, side := range sides {
			sd := side.doc
			if sd.Column == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s.column", path, side.name),
					Message: "link column is required",
					Code:    ErrBadRelation,
				})
			}
			if _, ok := byName[sd.Class]; !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s.class", path, side.name),
					Message: fmt.Sprintf("unknown class %q", sd.Class),
					Code:    ErrUnknownReference,
				})
			}
		}
	}

	for i := range doc.Classes {
		cd := &doc.Classes[i]
		if byName[cd.Name] != cd {
			continue
		}
		errs = append(errs, validateClass(fmt.Sprintf("classes[%d]", i), cd, byName, relations)...)
	}
	return errs
}

func validateClass(path string, cd *ClassDoc, byName map[string]*ClassDoc, relations map[string]*RelationDoc) []ValidationError {
	var errs []ValidationError

	if cd.Inherits != "" {
		if _, ok := byName[cd.Inherits]; !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".inherits",
				Message: fmt.Sprintf("unknown parent class %q", cd.Inherits),
				Code:    ErrBadHierarchy,
			})
		}
	} else {
		// E202: root classes carry the primary key
		hasKey := false
		for _, t := range cd.Tables {
			for _, f := range t.Fields {
				hasKey = hasKey || f.PrimaryKey
			}
		}
		if !hasKey {
			errs = append(errs, ValidationError{
				Field:   path + ".tables",
				Message: fmt.Sprintf("class %q has no primary key field", cd.Name),
				Code:    ErrNoPrimaryKey,
			})
		}
	}

	fieldNames := map[string]bool{}
	for ti, t := range cd.Tables {
		tpath := fmt.Sprintf("%s.tables[%d]", path, ti)
		columns := map[string]bool{}
		for fi, f := range t.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", tpath, fi)

			// E203: type tags must be known
			if _, err := ir.ParseKind(f.Type); err != nil || f.Type == "" {
				errs = append(errs, ValidationError{
					Field:   fpath + ".type",
					Message: fmt.Sprintf("invalid field type %q", f.Type),
					Code:    ErrInvalidFieldType,
				})
			}

			// E208: names and columns are unique
			if fieldNames[f.Name] {
				errs = append(errs, ValidationError{
					Field:   fpath + ".name",
					Message: fmt.Sprintf("duplicate field name %q", f.Name),
					Code:    ErrDuplicateName,
				})
			}
			fieldNames[f.Name] = true
			column := f.Column
			if column == "" {
				column = f.Name
			}
			if columns[strings.ToLower(column)] {
				errs = append(errs, ValidationError{
					Field:   fpath + ".column",
					Message: fmt.Sprintf("duplicate column %q in table %q", column, t.Name),
					Code:    ErrDuplicateName,
				})
			}
			columns[strings.ToLower(column)] = true

			// E204: references resolve
			if f.References != "" {
				if _, ok := byName[f.References]; !ok {
					errs = append(errs, ValidationError{
						Field:   fpath + ".references",
						Message: fmt.Sprintf("unknown class %q", f.References),
						Code:    ErrUnknownReference,
					})
				}
			}
		}
	}

	// E207: discriminator consistency
	if cd.SubclassSelectorField != "" && findField(byName, cd, cd.SubclassSelectorField) == nil {
		errs = append(errs, ValidationError{
			Field:   path + ".subclassSelectorField",
			Message: fmt.Sprintf("selector field %q is not declared", cd.SubclassSelectorField),
			Code:    ErrBadHierarchy,
		})
	}
	if cd.Inherits != "" && !cd.Abstract && cd.SubclassSelectorValue == nil && hasSelector(byName, cd) {
		errs = append(errs, ValidationError{
			Field:   path + ".subclassSelectorValue",
			Message: fmt.Sprintf("subclass %q needs a selector value", cd.Name),
			Code:    ErrBadHierarchy,
		})
	}

	collections := map[string]bool{}
	for ci, col := range cd.Collections {
		cpath := fmt.Sprintf("%s.collections[%d]", path, ci)
		if collections[col.Name] || fieldNames[col.Name] {
			errs = append(errs, ValidationError{
				Field:   cpath + ".name",
				Message: fmt.Sprintf("duplicate member name %q", col.Name),
				Code:    ErrDuplicateName,
			})
		}
		collections[col.Name] = true

		elem, ok := byName[col.Class]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   cpath + ".class",
				Message: fmt.Sprintf("unknown class %q", col.Class),
				Code:    ErrUnknownReference,
			})
			continue
		}

		// E205: the association must be navigable
		if col.Relation != "" {
			if _, ok := relations[col.Relation]; !ok {
				errs = append(errs, ValidationError{
					Field:   cpath + ".relation",
					Message: fmt.Sprintf("unknown relation %q", col.Relation),
					Code:    ErrBadCollection,
				})
			}
			if col.Side != "" && col.Side != "left" && col.Side != "right" {
				errs = append(errs, ValidationError{
					Field:   cpath + ".side",
					Message: fmt.Sprintf("side must be left or right, got %q", col.Side),
					Code:    ErrBadCollection,
				})
			}
			continue
		}
		fk := findField(byName, elem, col.ForeignField)
		if fk == nil {
			errs = append(errs, ValidationError{
				Field:   cpath + ".foreignField",
				Message: fmt.Sprintf("class %q has no field %q", col.Class, col.ForeignField),
				Code:    ErrBadCollection,
			})
			continue
		}
		if !inLineage(byName, cd, fk.References) {
			errs = append(errs, ValidationError{
				Field:   cpath + ".foreignField",
				Message: fmt.Sprintf("field %s.%s does not reference %q", col.Class, col.ForeignField, cd.Name),
				Code:    ErrBadCollection,
			})
		}
	}

	return errs
}

// hasSelector reports whether an ancestor of cd declares a discriminator.
func hasSelector(byName map[string]*ClassDoc, cd *ClassDoc) bool {
	seen := map[string]bool{}
	for k := cd; k != nil && !seen[k.Name]; k = byName[k.Inherits] {
		seen[k.Name] = true
		if k.SubclassSelectorField != "" {
			return true
		}
	}
	return false
}

// inLineage reports whether name is cd or one of its ancestors.
func inLineage(byName map[string]*ClassDoc, cd *ClassDoc, name string) bool {
	seen := map[string]bool{}
	for k := cd; k != nil && !seen[k.Name]; k = byName[k.Inherits] {
		seen[k.Name] = true
		if k.Name == name {
			return true
		}
	}
	return false
}
