// Package queryir provides the query object model: the portable relational
// intermediate representation between the query-builder AST and SQL text.
//
// ARCHITECTURE:
//
//	[expr AST] → [translate] → [queryir] → [querysql] → SQL + parameters
//
// The translator produces queryir nodes; the SQL converter lowers them
// against schema metadata and a dialect. Nothing in this package knows
// about tables or columns: paths name mapped members and are resolved,
// segment by segment, only during conversion.
//
// NODE FAMILIES:
//
//   - Scalars: Literal, Parameter, Path, Arithmetic, Negate, FunctionCall,
//     Cast, Conditional, ClassDiscriminator, CountOf, Subquery, Asterisk
//   - Booleans: Relational, And, Or, Not, IsNull, In, Contains, Exists,
//     BoolLiteral
//   - Query: select list, from list, where, group by, having, order by,
//     distinct, offset and limit
//
// PATHS:
//
// A Path is a navigation chain. Its first segment is either the alias of a
// from item (in the current query or an enclosing one) or, when no alias
// matches, a member of the first from item:
//
//	&Path{Left: &Path{Name: "t0"}, Name: "Name"}          // t0.Name
//	&Path{Left: &Path{Left: &Path{Name: "t0"}, Name: "Type"}, Name: "Code"}
//
// SEALED INTERFACES:
//
// Expr and BoolExpr are sealed with marker methods so the converter can
// switch exhaustively:
//
//	switch e := expr.(type) {
//	case *Path:
//	    // resolve joins
//	case *Literal:
//	    // inline or parameterize
//	}
//
// LITERALS:
//
// Literal carries a typed ir.Value; the converter decides per dialect
// whether it is inlined or bound. Parameter is a positional slot filled at
// execution time, which lets converted statements be cached.
package queryir
