package translate

import (
	"strconv"

	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/schema"
)

// bindKind says what a lambda parameter stands for.
type bindKind int

const (
	// bindRow is a range variable over the rows of a from item.
	bindRow bindKind = iota

	// bindGroup is the grouping produced by GroupBy.
	bindGroup

	// bindConst is one element of a constant host sequence.
	bindConst

	// bindClient is a parameter of a lambda evaluated on the client inside
	// a projection.
	bindClient
)

// binding gives a lambda parameter its meaning during translation.
type binding struct {
	kind  bindKind
	param *expr.Param

	alias string        // bindRow
	class *schema.Class // bindRow
	group *grouping     // bindGroup
	value any           // bindConst
}

// scope is an immutable stack of parameter bindings. Entering a lambda
// pushes a frame onto its enclosing scope; nothing is ever popped, so a
// scope captured by a chain stays valid while sibling lambdas are
// translated.
//
// The nil scope is empty.
type scope struct {
	parent *scope
	b      binding
}

func (s *scope) push(b binding) *scope {
	return &scope{parent: s, b: b}
}

// row binds p to the rows of class under alias.
func (s *scope) row(p *expr.Param, alias string, class *schema.Class) *scope {
	return s.push(binding{kind: bindRow, param: p, alias: alias, class: class})
}

// lookup finds the innermost binding of p.
func (s *scope) lookup(p *expr.Param) (*binding, bool) {
	for k := s; k != nil; k = k.parent {
		if k.b.param == p {
			return &k.b, true
		}
	}
	return nil, false
}

// variable reports whether p has no value before the query runs.
func (s *scope) variable(p *expr.Param) bool {
	b, ok := s.lookup(p)
	return ok && b.kind != bindConst
}

// env returns an evaluation environment with every constant binding.
func (s *scope) env() *expr.Env {
	env := expr.NewEnv()
	var frames []*scope
	for k := s; k != nil; k = k.parent {
		frames = append(frames, k)
	}
	// Outermost first so inner frames shadow outer ones.
	for i := len(frames) - 1; i >= 0; i-- {
		if b := frames[i].b; b.kind == bindConst {
			env = env.Bind(b.param, b.value)
		}
	}
	return env
}

// aliases hands out t0, t1, ... for one translation. Every frame of a
// translation shares it, so nested queries never reuse an enclosing alias.
type aliases struct {
	next int
}

func (a *aliases) fresh() string {
	name := "t" + strconv.Itoa(a.next)
	a.next++
	return name
}
