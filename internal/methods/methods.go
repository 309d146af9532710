// Package methods classifies query-builder method calls into a closed set
// of operations.
//
// The table is keyed by (declaring type, method name, arity) where arity
// counts arguments after the receiver. Generic type arguments are erased
// before lookup, so Where<Contact> and Where<Order> share one entry.
package methods

import (
	"strings"
	"sync/atomic"

	"github.com/roach88/sooq/internal/expr"
)

// Op is a recognized operation.
type Op int

const (
	Unknown Op = iota

	// Sequence operators.
	Where
	Select
	OrderBy
	OrderByDescending
	ThenBy
	ThenByDescending
	Take
	Skip
	GroupBy
	Reverse
	Distinct
	OfType
	Except
	Intersect
	Union
	All
	Any
	AnyFiltered
	Contains
	Count
	CountFiltered
	LongCount
	LongCountFiltered
	First
	FirstFiltered
	FirstOrDefault
	FirstOrDefaultFiltered
	Last
	LastFiltered
	LastOrDefault
	LastOrDefaultFiltered
	Single
	SingleFiltered
	SingleOrDefault
	SingleOrDefaultFiltered
	ElementAt
	ElementAtOrDefault
	Sum
	SumSelector
	Average
	AverageSelector
	Min
	MinSelector
	Max
	MaxSelector
	ToList

	// Object members.
	Equals
	ToString
	GetPrimaryKeyValue

	// String members.
	StringConcat
	StringIsNullOrEmpty
	StringLike
	StringRemove
	StringRemoveCount
	StringSubstring
	StringSubstringLength
	StringReplace
	StringToLower
	StringToUpper
	StringTrim
	StringStartsWith
	StringEndsWith
	StringContains

	// Math statics.
	MathAbs
	MathAcos
	MathAsin
	MathAtan
	MathCeiling
	MathCos
	MathExp
	MathFloor
	MathLog
	MathPow
	MathRound
	MathRoundDigits
	MathSign
	MathSin
	MathSqrt
	MathTan

	opCount
)

var opNames = [...]string{
	Unknown:                 "Unknown",
	Where:                   "Where",
	Select:                  "Select",
	OrderBy:                 "OrderBy",
	OrderByDescending:       "OrderByDescending",
	ThenBy:                  "ThenBy",
	ThenByDescending:        "ThenByDescending",
	Take:                    "Take",
	Skip:                    "Skip",
	GroupBy:                 "GroupBy",
	Reverse:                 "Reverse",
	Distinct:                "Distinct",
	OfType:                  "OfType",
	Except:                  "Except",
	Intersect:               "Intersect",
	Union:                   "Union",
	All:                     "All",
	Any:                     "Any",
	AnyFiltered:             "AnyFiltered",
	Contains:                "Contains",
	Count:                   "Count",
	CountFiltered:           "CountFiltered",
	LongCount:               "LongCount",
	LongCountFiltered:       "LongCountFiltered",
	First:                   "First",
	FirstFiltered:           "FirstFiltered",
	FirstOrDefault:          "FirstOrDefault",
	FirstOrDefaultFiltered:  "FirstOrDefaultFiltered",
	Last:                    "Last",
	LastFiltered:            "LastFiltered",
	LastOrDefault:           "LastOrDefault",
	LastOrDefaultFiltered:   "LastOrDefaultFiltered",
	Single:                  "Single",
	SingleFiltered:          "SingleFiltered",
	SingleOrDefault:         "SingleOrDefault",
	SingleOrDefaultFiltered: "SingleOrDefaultFiltered",
	ElementAt:               "ElementAt",
	ElementAtOrDefault:      "ElementAtOrDefault",
	Sum:                     "Sum",
	SumSelector:             "SumSelector",
	Average:                 "Average",
	AverageSelector:         "AverageSelector",
	Min:                     "Min",
	MinSelector:             "MinSelector",
	Max:                     "Max",
	MaxSelector:             "MaxSelector",
	ToList:                  "ToList",
	Equals:                  "Equals",
	ToString:                "ToString",
	GetPrimaryKeyValue:      "GetPrimaryKeyValue",
	StringConcat:            "String.Concat",
	StringIsNullOrEmpty:     "String.IsNullOrEmpty",
	StringLike:              "String.Like",
	StringRemove:            "String.Remove",
	StringRemoveCount:       "String.RemoveCount",
	StringSubstring:         "String.Substring",
	StringSubstringLength:   "String.SubstringLength",
	StringReplace:           "String.Replace",
	StringToLower:           "String.ToLower",
	StringToUpper:           "String.ToUpper",
	StringTrim:              "String.Trim",
	StringStartsWith:        "String.StartsWith",
	StringEndsWith:          "String.EndsWith",
	StringContains:          "String.Contains",
	MathAbs:                 "Math.Abs",
	MathAcos:                "Math.Acos",
	MathAsin:                "Math.Asin",
	MathAtan:                "Math.Atan",
	MathCeiling:             "Math.Ceiling",
	MathCos:                 "Math.Cos",
	MathExp:                 "Math.Exp",
	MathFloor:               "Math.Floor",
	MathLog:                 "Math.Log",
	MathPow:                 "Math.Pow",
	MathRound:               "Math.Round",
	MathRoundDigits:         "Math.RoundDigits",
	MathSign:                "Math.Sign",
	MathSin:                 "Math.Sin",
	MathSqrt:                "Math.Sqrt",
	MathTan:                 "Math.Tan",
}

func (o Op) String() string {
	if o < 0 || o >= opCount {
		return "Unknown"
	}
	return opNames[o]
}

// Terminal reports whether the operation materializes its source.
func (o Op) Terminal() bool {
	switch o {
	case All, Any, AnyFiltered, Contains,
		Count, CountFiltered, LongCount, LongCountFiltered,
		First, FirstFiltered, FirstOrDefault, FirstOrDefaultFiltered,
		Last, LastFiltered, LastOrDefault, LastOrDefaultFiltered,
		Single, SingleFiltered, SingleOrDefault, SingleOrDefaultFiltered,
		ElementAt, ElementAtOrDefault,
		Sum, SumSelector, Average, AverageSelector,
		Min, MinSelector, Max, MaxSelector, ToList:
		return true
	}
	return false
}

// OrDefault reports whether the operation yields a default value instead of
// failing on an empty source.
func (o Op) OrDefault() bool {
	switch o {
	case FirstOrDefault, FirstOrDefaultFiltered, LastOrDefault, LastOrDefaultFiltered,
		SingleOrDefault, SingleOrDefaultFiltered, ElementAtOrDefault:
		return true
	}
	return false
}

// Declaring types.
const (
	Queryable  = "Queryable"
	Enumerable = "Enumerable"
	Collection = "Collection"
	Grouping   = "Grouping"
	String     = "String"
	Math       = "Math"
	Object     = "Object"
)

// Key identifies a method independent of its type arguments.
type Key struct {
	Type  string
	Name  string
	Arity int
}

type entry struct {
	name  string
	arity int
	op    Op
}

// sequenceOps are registered for every sequence-like declaring type.
var sequenceOps = []entry{
	{"Where", 1, Where},
	{"Select", 1, Select},
	{"OrderBy", 1, OrderBy},
	{"OrderByDescending", 1, OrderByDescending},
	{"ThenBy", 1, ThenBy},
	{"ThenByDescending", 1, ThenByDescending},
	{"Take", 1, Take},
	{"Skip", 1, Skip},
	{"GroupBy", 1, GroupBy},
	{"Reverse", 0, Reverse},
	{"Distinct", 0, Distinct},
	{"OfType", 0, OfType},
	{"Except", 1, Except},
	{"Intersect", 1, Intersect},
	{"Union", 1, Union},
	{"All", 1, All},
	{"Any", 0, Any},
	{"Any", 1, AnyFiltered},
	{"Contains", 1, Contains},
	{"Count", 0, Count},
	{"Count", 1, CountFiltered},
	{"LongCount", 0, LongCount},
	{"LongCount", 1, LongCountFiltered},
	{"First", 0, First},
	{"First", 1, FirstFiltered},
	{"FirstOrDefault", 0, FirstOrDefault},
	{"FirstOrDefault", 1, FirstOrDefaultFiltered},
	{"Last", 0, Last},
	{"Last", 1, LastFiltered},
	{"LastOrDefault", 0, LastOrDefault},
	{"LastOrDefault", 1, LastOrDefaultFiltered},
	{"Single", 0, Single},
	{"Single", 1, SingleFiltered},
	{"SingleOrDefault", 0, SingleOrDefault},
	{"SingleOrDefault", 1, SingleOrDefaultFiltered},
	{"ElementAt", 1, ElementAt},
	{"ElementAtOrDefault", 1, ElementAtOrDefault},
	{"Sum", 0, Sum},
	{"Sum", 1, SumSelector},
	{"Average", 0, Average},
	{"Average", 1, AverageSelector},
	{"Min", 0, Min},
	{"Min", 1, MinSelector},
	{"Max", 0, Max},
	{"Max", 1, MaxSelector},
	{"ToList", 0, ToList},
	{"ToArray", 0, ToList},
	{"AsEnumerable", 0, ToList},
	{"AsQueryable", 0, ToList},
}

var registrations = map[string][]entry{
	Object: {
		{"Equals", 1, Equals},
		{"ToString", 0, ToString},
		{"GetPrimaryKeyValue", 0, GetPrimaryKeyValue},
	},
	String: {
		{"Concat", 2, StringConcat},
		{"Concat", 3, StringConcat},
		{"Concat", 4, StringConcat},
		{"IsNullOrEmpty", 1, StringIsNullOrEmpty},
		{"Like", 1, StringLike},
		{"Remove", 1, StringRemove},
		{"Remove", 2, StringRemoveCount},
		{"Substring", 1, StringSubstring},
		{"Substring", 2, StringSubstringLength},
		{"Replace", 2, StringReplace},
		{"ToLower", 0, StringToLower},
		{"ToUpper", 0, StringToUpper},
		{"Trim", 0, StringTrim},
		{"StartsWith", 1, StringStartsWith},
		{"EndsWith", 1, StringEndsWith},
		{"Contains", 1, StringContains},
		{"Equals", 1, Equals},
		{"ToString", 0, ToString},
	},
	Math: {
		{"Abs", 1, MathAbs},
		{"Acos", 1, MathAcos},
		{"Asin", 1, MathAsin},
		{"Atan", 1, MathAtan},
		{"Ceiling", 1, MathCeiling},
		{"Cos", 1, MathCos},
		{"Exp", 1, MathExp},
		{"Floor", 1, MathFloor},
		{"Log", 1, MathLog},
		{"Pow", 2, MathPow},
		{"Round", 1, MathRound},
		{"Round", 2, MathRoundDigits},
		{"Sign", 1, MathSign},
		{"Sin", 1, MathSin},
		{"Sqrt", 1, MathSqrt},
		{"Tan", 1, MathTan},
	},
}

var table atomic.Pointer[map[Key]Op]

// build computes the table. It is deterministic, so concurrent first calls
// may each build and store it.
func build() map[Key]Op {
	t := make(map[Key]Op, 4*len(sequenceOps)+64)
	for _, typ := range []string{Queryable, Enumerable, Collection, Grouping} {
		for _, e := range sequenceOps {
			t[Key{typ, e.name, e.arity}] = e.op
		}
	}
	for typ, entries := range registrations {
		for _, e := range entries {
			t[Key{typ, e.name, e.arity}] = e.op
		}
	}
	return t
}

func lookup() map[Key]Op {
	if t := table.Load(); t != nil {
		return *t
	}
	t := build()
	table.Store(&t)
	return t
}

// Normalize erases generic type arguments from a method name.
func Normalize(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}
	if i := strings.IndexByte(name, '`'); i >= 0 {
		return name[:i]
	}
	return name
}

// Classify maps a method on declaring type typ with arity arguments to an
// operation. It returns Unknown when the method is not recognized.
func Classify(typ string, m expr.Method, arity int) Op {
	if typ == "" {
		typ = m.Type
	}
	return lookup()[Key{Type: typ, Name: Normalize(m.Name), Arity: arity}]
}

// ClassifyCall classifies a call whose declaring type is known.
func ClassifyCall(typ string, c *expr.Call) Op {
	return Classify(typ, c.Method, len(c.Args))
}
