package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sooq/internal/schema"
)

// Object is a materialized row of a mapped class.
//
// Reference fields hold the referenced key, not the referenced object.
// Objects satisfy ir.Identifiable, so they can be used as constants in
// later queries (c.Manager == boss), and expr.Record and expr.Typed, so
// client-side projections can read their members.
type Object struct {
	Class  *schema.Class
	Values map[string]any
}

func newObject(class *schema.Class, values map[string]any) (any, error) {
	return &Object{Class: class, Values: values}, nil
}

// ClassName returns the name of the object's class.
func (o *Object) ClassName() string { return o.Class.Name }

// PrimaryKeyValue returns the value of the key field, or nil for a class
// with a composite key.
func (o *Object) PrimaryKeyValue() any {
	kf, err := o.Class.KeyField()
	if err != nil {
		return nil
	}
	return o.Values[kf.Name]
}

// Member returns the value of field name.
func (o *Object) Member(name string) (any, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// Get returns the value of field name, or nil.
func (o *Object) Get(name string) any { return o.Values[name] }

// IsA reports whether the object's class is class or derives from it.
func (o *Object) IsA(class string) bool {
	for c := o.Class; c != nil; c = c.Parent() {
		if c.Name == class {
			return true
		}
	}
	return false
}

// String renders the object as Class{Field: value, ...} in field order.
func (o *Object) String() string {
	var b strings.Builder
	b.WriteString(o.Class.Name)
	b.WriteByte('{')
	names := make([]string, 0, len(o.Values))
	for _, f := range o.Class.Fields() {
		if _, ok := o.Values[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	if len(names) < len(o.Values) {
		// Values set by a custom materializer may not be schema fields.
		names = names[:0]
		for k := range o.Values {
			names = append(names, k)
		}
		sort.Strings(names)
	}
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", name, o.Values[name])
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the object as its field values plus a "$class" member.
func (o *Object) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Values)+1)
	for k, v := range o.Values {
		m[k] = v
	}
	m["$class"] = o.Class.Name
	return json.Marshal(m)
}

// ListOf converts the result of ToList to a typed slice.
//
//	items, err := q.ToList(ctx)
//	objs, err := engine.ListOf[*engine.Object](items)
func ListOf[T any](items []any) ([]T, error) {
	out := make([]T, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		v, ok := it.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("element %d is %T, not %T", i, it, zero)
		}
		out[i] = v
	}
	return out, nil
}
