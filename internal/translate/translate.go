// Package translate turns query-builder expression trees into query object
// model queries.
//
// ARCHITECTURE:
//
//	expr.Node ──► Chain (Where, OrderBy, GroupBy, Select, Take, ...) ──► Plan
//	                 │                                                   │
//	                 └─ lambdas translated in an immutable scope stack   └─ queryir.Query + result shape
//
// A query is a chain of calls rooted at a Source. Non-terminal calls
// accumulate into a Chain; a terminal call (ToList, Count, First, Sum, ...)
// turns the chain into a Plan that says which query to run and how to
// shape its rows.
//
// TRANSLATION RULES:
//
//   - Subexpressions that reference no row are evaluated on the client and
//     become literals. Identifiable values become their primary key.
//   - Member access on a row becomes a path; the SQL converter resolves
//     paths to columns and joins.
//   - Collection members (c.Reports, c.Roles) become nested chains. Count,
//     Any, All and Contains over them become CountOf, Contains or EXISTS.
//   - Select bodies with no full SQL translation are split: the largest
//     translatable subexpressions are fetched and the remainder runs on the
//     client for each row.
//
// Errors carry the ir taxonomy: UNSUPPORTED_CONSTRUCT for anything without
// a translation, SCHEMA_RESOLUTION for unknown classes and members, and
// CHAIN_STATE for operations that cannot follow the chain built so far.
package translate

import (
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/methods"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// Translator translates queries over one schema. It holds no per-query
// state and is safe for concurrent use.
type Translator struct {
	schema *schema.Schema
}

// New returns a translator for s.
func New(s *schema.Schema) *Translator {
	return &Translator{schema: s}
}

// Schema returns the translator's schema.
func (tr *Translator) Schema() *schema.Schema { return tr.schema }

func (tr *Translator) translation() *translation {
	return &translation{schema: tr.schema, aliases: &aliases{}}
}

// Translate plans a complete query expression. A chain that does not end
// in a terminal call is planned as ToList.
//
// Example:
//
//	c := expr.P("c")
//	q := expr.CallM(expr.CallM(expr.Src("Contact"), "Where",
//		expr.L(expr.Eq(expr.M(c, "Name"), expr.C("Mary Manager")), c)), "Count")
//	plan, err := translate.New(s).Translate(q)
//	// plan.Shape == ScalarCount
func (tr *Translator) Translate(n expr.Node) (*Plan, error) {
	t := tr.translation()
	if x, ok := n.(*expr.Call); ok && x.Recv != nil {
		op := methods.Classify(methods.Queryable, x.Method, len(x.Args))
		if op.Terminal() {
			c, err := t.chainOf(x.Recv, nil, "")
			if err != nil {
				return nil, err
			}
			return c.terminal(op, x)
		}
	}
	c, err := t.chainOf(n, nil, "")
	if err != nil {
		return nil, err
	}
	return c.List()
}

// Source starts an empty chain over class. The engine extends it call by
// call with Apply and ends it with Terminal or List.
func (tr *Translator) Source(class string) (*Chain, error) {
	return tr.translation().chainOf(expr.Src(class), nil, "")
}

// ByKey plans loading one object of class by primary key. The key is
// parameter 0, so the converted statement can be cached and rebound.
func (tr *Translator) ByKey(class string) (*Plan, error) {
	c, err := tr.Source(class)
	if err != nil {
		return nil, err
	}
	kf, err := c.class.KeyField()
	if err != nil {
		return nil, ir.Unsupported(class, "load by key: %v", err)
	}
	c.where = &queryir.Relational{
		Op:    queryir.OpEq,
		Left:  queryir.NewPath(c.alias),
		Right: &queryir.Parameter{Ordinal: 0, Kind: kf.Kind},
	}
	return c.rows(methods.FirstOrDefault, FirstRow)
}
