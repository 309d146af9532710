package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sooq/internal/schema"
)

// mappingDefinition constrains the structure of CUE mapping documents.
// Definitions are closed, so misspelled keys are rejected with a position.
const mappingDefinition = `
#Field: {
	name:        string & !=""
	column?:     string
	type:        "int" | "integer" | "long" | "string" | "text" | "float" | "double" | "decimal" | "bool" | "boolean" | "datetime" | "date" | "time" | "guid" | "uuid"
	nullable?:   bool
	primaryKey?: bool
	references?: string
}

#Table: {
	name:      string & !=""
	required?: bool
	fields: [...#Field]
}

#Collection: {
	name:          string & !=""
	class:         string & !=""
	foreignField?: string
	relation?:     string
	side?:         "left" | "right"
}

#Side: {
	column: string & !=""
	class:  string & !=""
	type?:  string
}

#Relation: {
	name:  string & !=""
	table: string & !=""
	left:  #Side
	right: #Side
}

#Class: {
	name:                   string & !=""
	inherits?:              string
	abstract?:              bool
	subclassSelectorField?: string
	subclassSelectorValue?: int | string
	tables?: [...#Table]
	collections?: [...#Collection]
}

#Schema: {
	classes: [...#Class]
	relations?: [...#Relation]
}
`

// CompileError is a CUE mapping error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileCUE checks v against the mapping definition and decodes it.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`classes: [{name: "Contact", tables: [...]}]`)
//	doc, err := CompileCUE(v)
func CompileCUE(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := v.Context().CompileString(mappingDefinition, cue.Filename("mapping.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("mapping definition: %w", err)
	}

	unified := def.LookupPath(cue.ParsePath("#Schema")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}
	return &doc, nil
}

// LoadCUE reads a .cue file, or every .cue file of a directory package,
// and compiles it into a Schema.
func LoadCUE(path string) (*schema.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mapping not found: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances in %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mapping: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}

	doc, err := CompileCUE(value)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
