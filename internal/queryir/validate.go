package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult contains the structural analysis of a query.
type ValidationResult struct {
	// Valid is false when the query cannot be converted.
	Valid bool

	// Errors lists structural defects. Empty when Valid is true.
	Errors []string

	// Warnings lists constructs that convert but may not mean what the
	// caller expects, such as paging without an order.
	Warnings []string
}

// Err folds the errors into one error, or returns nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(r.Errors, "; "))
}

// Validate checks a query for structural consistency before conversion.
//
// Rules:
//  1. At least one from item; aliases, when given, match the from list
//  2. Select aliases never outnumber select items
//  3. One direction per order-by item
//  4. Offset is non-negative and Limit is -1 or non-negative
//  5. No nil operands in boolean and scalar nodes
//  6. No aggregates in WHERE; Asterisk only at the top of a select list
//  7. Subqueries used with IN select exactly one column
//
// Validate is a pure function with no side effects.
func Validate(q *Query) ValidationResult {
	v := &validator{}
	v.validateQuery(q, "query")
	return ValidationResult{
		Valid:    len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
	}
}

// validator accumulates findings during traversal.
type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *Query, at string) {
	if q == nil {
		v.addError("%s: nil query", at)
		return
	}
	if len(q.From) == 0 {
		v.addError("%s: empty from list", at)
	}
	if len(q.FromAliases) > 0 && len(q.FromAliases) != len(q.From) {
		v.addError("%s: %d from aliases for %d from items", at, len(q.FromAliases), len(q.From))
	}
	if len(q.SelectAliases) > len(q.Select) {
		v.addError("%s: %d select aliases for %d select items", at, len(q.SelectAliases), len(q.Select))
	}
	if len(q.OrderDesc) != len(q.OrderBy) {
		v.addError("%s: %d order directions for %d order items", at, len(q.OrderDesc), len(q.OrderBy))
	}
	if q.Offset < 0 {
		v.addError("%s: negative offset %d", at, q.Offset)
	}
	if q.Limit < -1 {
		v.addError("%s: invalid limit %d", at, q.Limit)
	}
	if q.Limited() && len(q.OrderBy) == 0 && q.Offset > 0 {
		v.addWarning("%s: offset without order by returns an unspecified window", at)
	}
	if q.Having != nil && len(q.GroupBy) == 0 {
		v.addWarning("%s: having without group by", at)
	}

	for i, e := range q.Select {
		if _, ok := e.(*Asterisk); ok {
			v.validateExpr(e.(*Asterisk).Path, fmt.Sprintf("%s.select[%d]", at, i))
			continue
		}
		v.validateExpr(e, fmt.Sprintf("%s.select[%d]", at, i))
	}
	if q.Where != nil {
		v.validateExpr(q.Where, at+".where")
		if ContainsAggregate(q.Where) {
			v.addError("%s.where: aggregate function in where clause", at)
		}
	}
	for i, e := range q.GroupBy {
		v.validateExpr(e, fmt.Sprintf("%s.groupBy[%d]", at, i))
	}
	if q.Having != nil {
		v.validateExpr(q.Having, at+".having")
	}
	for i, e := range q.OrderBy {
		v.validateExpr(e, fmt.Sprintf("%s.orderBy[%d]", at, i))
	}
}

func (v *validator) validateExpr(e Expr, at string) {
	switch x := e.(type) {
	case nil:
		v.addError("%s: nil expression", at)
	case *Literal:
		if x.Value == nil {
			v.addError("%s: literal without value", at)
		}
	case *Parameter:
		if x.Ordinal < 0 {
			v.addError("%s: negative parameter ordinal %d", at, x.Ordinal)
		}
	case *Path:
		if x == nil {
			v.addError("%s: nil path", at)
			return
		}
		for k := x; k != nil; k = k.Left {
			if k.Name == "" {
				v.addError("%s: empty path segment in %s", at, x)
			}
		}
	case *Arithmetic:
		v.validateExpr(x.Left, at+".left")
		v.validateExpr(x.Right, at+".right")
	case *Negate:
		v.validateExpr(x.X, at)
	case *FunctionCall:
		if x.Name == "" {
			v.addError("%s: function without name", at)
		}
		for i, a := range x.Args {
			v.validateExpr(a, fmt.Sprintf("%s.args[%d]", at, i))
		}
	case *Cast:
		v.validateExpr(x.X, at)
	case *Conditional:
		v.validateExpr(x.Test, at+".test")
		v.validateExpr(x.Then, at+".then")
		if x.Else != nil {
			v.validateExpr(x.Else, at+".else")
		}
	case *ClassDiscriminator:
		if x.Path == nil {
			v.addError("%s: discriminator without path", at)
		}
	case *CountOf:
		v.validateCollection(x.Path, x.Collection, at)
		if x.Where != nil {
			v.validateExpr(x.Where, at+".where")
		}
	case *Subquery:
		v.validateQuery(x.Query, at+".subquery")
		if x.Query != nil && len(x.Query.Select) != 1 {
			v.addError("%s: scalar subquery selects %d items", at, len(x.Query.Select))
		}
	case *Asterisk:
		v.addError("%s: asterisk outside the select list", at)
	case *Relational:
		v.validateExpr(x.Left, at+".left")
		v.validateExpr(x.Right, at+".right")
	case *And:
		for i, o := range x.Operands {
			v.validateExpr(o, fmt.Sprintf("%s.and[%d]", at, i))
		}
	case *Or:
		for i, o := range x.Operands {
			v.validateExpr(o, fmt.Sprintf("%s.or[%d]", at, i))
		}
	case *Not:
		v.validateExpr(x.X, at+".not")
	case *IsNull:
		v.validateExpr(x.X, at)
	case *In:
		v.validateExpr(x.Needle, at+".needle")
		if x.Query != nil {
			v.validateQuery(x.Query, at+".subquery")
			if len(x.Query.Select) > 1 {
				v.addError("%s: IN subquery selects %d items", at, len(x.Query.Select))
			}
		}
		for i, e := range x.List {
			v.validateExpr(e, fmt.Sprintf("%s.list[%d]", at, i))
		}
	case *Contains:
		v.validateCollection(x.Path, x.Collection, at)
		if x.Needle != nil {
			v.validateExpr(x.Needle, at+".needle")
		}
		if x.Where != nil {
			v.validateExpr(x.Where, at+".where")
		}
	case *Exists:
		v.validateQuery(x.Query, at+".exists")
	case *BoolLiteral:
	default:
		v.addError("%s: unknown expression type %T", at, e)
	}
}

func (v *validator) validateCollection(p *Path, collection, at string) {
	if p == nil {
		v.addError("%s: collection without owner path", at)
	}
	if collection == "" {
		v.addError("%s: collection name is required", at)
	}
}
