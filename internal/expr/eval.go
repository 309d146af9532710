package expr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/sooq/internal/ir"
)

// Record exposes named members of a host object to the evaluator.
type Record interface {
	Member(name string) (any, bool)
}

// Typed reports membership in a mapped class for `is` tests and casts.
type Typed interface {
	IsA(class string) bool
}

// Env binds lambda parameters and pre-computed node values during evaluation.
// Envs are immutable; Bind and WithValues return extended copies.
type Env struct {
	parent *Env
	params map[*Param]any
	values map[Node]any
}

// NewEnv returns an empty environment.
func NewEnv() *Env { return &Env{} }

// Bind returns an environment where p evaluates to v.
func (e *Env) Bind(p *Param, v any) *Env {
	return &Env{parent: e, params: map[*Param]any{p: v}}
}

// WithValues returns an environment where each node in values evaluates to
// the mapped value without evaluating its subtree. Client-side projection
// uses it to substitute fetched columns.
func (e *Env) WithValues(values map[Node]any) *Env {
	return &Env{parent: e, values: values}
}

func (e *Env) param(p *Param) (any, bool) {
	for k := e; k != nil; k = k.parent {
		if v, ok := k.params[p]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) value(n Node) (any, bool) {
	for k := e; k != nil; k = k.parent {
		if v, ok := k.values[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// closure is the value of a lambda.
type closure struct {
	lambda *Lambda
	env    *Env
}

func (c *closure) call(args ...any) (any, error) {
	if len(args) != len(c.lambda.Params) {
		return nil, fmt.Errorf("lambda %s takes %d arguments, got %d", c.lambda, len(c.lambda.Params), len(args))
	}
	env := c.env
	for i, p := range c.lambda.Params {
		env = env.Bind(p, args[i])
	}
	return Eval(c.lambda.Body, env)
}

// Eval computes the host value of n.
func Eval(n Node, env *Env) (any, error) {
	if env == nil {
		env = NewEnv()
	}
	if v, ok := env.value(n); ok {
		return v, nil
	}

	switch x := n.(type) {
	case *Const:
		return x.Value, nil
	case *Param:
		v, ok := env.param(x)
		if !ok {
			return nil, fmt.Errorf("unbound parameter %s", x.Name)
		}
		return v, nil
	case *Source:
		return nil, ir.Unsupported(x.String(), "query source %s cannot be evaluated on the client", x.Class)
	case *Member:
		recv, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		return member(recv, x.Name, x)
	case *Call:
		return evalCall(x, env)
	case *Lambda:
		return &closure{lambda: x, env: env}, nil
	case *Binary:
		return evalBinary(x, env)
	case *Unary:
		v, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		return evalUnary(x, v)
	case *Cond:
		t, err := Eval(x.Test, env)
		if err != nil {
			return nil, err
		}
		b, ok := t.(bool)
		if !ok {
			return nil, fmt.Errorf("condition %s is %T, not bool", x.Test, t)
		}
		if b {
			return Eval(x.Then, env)
		}
		return Eval(x.Else, env)
	case *New:
		return evalNew(x, env)
	case *NewArray:
		out := make([]any, len(x.Elems))
		for i, e := range x.Elems {
			v, err := Eval(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *TypeIs:
		v, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		t, ok := v.(Typed)
		return ok && t.IsA(x.Class), nil
	case *Func:
		args, err := evalAll(x.Args, env)
		if err != nil {
			return nil, err
		}
		return x.Fn(args...)
	case *Throw:
		return nil, fmt.Errorf("%s", x.Message)
	}
	return nil, ir.Unsupported(fmt.Sprintf("%T", n), "cannot evaluate %T", n)
}

func evalAll(nodes []Node, env *Env) ([]any, error) {
	out := make([]any, len(nodes))
	for i, a := range nodes {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func member(recv any, name string, at Node) (any, error) {
	switch v := recv.(type) {
	case nil:
		return nil, fmt.Errorf("null reference evaluating %s", at)
	case Record:
		if m, ok := v.Member(name); ok {
			return m, nil
		}
	case map[string]any:
		if m, ok := v[name]; ok {
			return m, nil
		}
	case string:
		if name == "Length" {
			return int64(utf8.RuneCountInString(v)), nil
		}
	case time.Time:
		switch name {
		case "Year":
			return int64(v.Year()), nil
		case "Month":
			return int64(v.Month()), nil
		case "Day":
			return int64(v.Day()), nil
		case "Hour":
			return int64(v.Hour()), nil
		case "Minute":
			return int64(v.Minute()), nil
		case "Second":
			return int64(v.Second()), nil
		case "Date":
			y, m, d := v.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, v.Location()), nil
		}
	}

	rv := reflect.ValueOf(recv)
	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("null reference evaluating %s", at)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	case reflect.Slice, reflect.Array:
		if name == "Length" || name == "Count" {
			return int64(rv.Len()), nil
		}
	}
	return nil, ir.SchemaResolution(fmt.Sprintf("%T", recv), name)
}

func evalUnary(x *Unary, v any) (any, error) {
	switch x.Op {
	case OpNot:
		if v == nil {
			return nil, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operator ! on %T", v)
		}
		return !b, nil
	case OpNegate:
		if v == nil {
			return nil, nil
		}
		if n, ok := toInt(v); ok {
			return -n, nil
		}
		if f, ok := toFloat(v); ok {
			return -f, nil
		}
		return nil, fmt.Errorf("operator - on %T", v)
	}
	return convertTo(x.Type, v)
}

func convertTo(typ string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case "int", "long":
		if n, ok := toInt(v); ok {
			return n, nil
		}
		if f, ok := toFloat(v); ok {
			return int64(f), nil
		}
	case "double", "decimal", "float":
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case "string":
		return fmt.Sprint(v), nil
	case "bool":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		if t, ok := v.(Typed); ok && !t.IsA(typ) {
			return nil, fmt.Errorf("invalid cast of %v to %s", v, typ)
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, typ)
}

func evalBinary(x *Binary, env *Env) (any, error) {
	a, err := Eval(x.X, env)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case OpAndAlso, OpOrElse:
		ab, ok := a.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s on %T", x.Op, a)
		}
		if ab == (x.Op == OpOrElse) {
			return ab, nil
		}
		b, err := Eval(x.Y, env)
		if err != nil {
			return nil, err
		}
		bb, ok := b.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s on %T", x.Op, b)
		}
		return bb, nil
	case OpCoalesce:
		if a != nil {
			return a, nil
		}
		return Eval(x.Y, env)
	}

	b, err := Eval(x.Y, env)
	if err != nil {
		return nil, err
	}
	return Apply(x.Op, a, b)
}

// Apply computes a non-short-circuit binary operator over host values.
// Arithmetic and ordering over null yield null and false, respectively.
func Apply(op BinaryOp, a, b any) (any, error) {
	switch op {
	case OpEq:
		return Equal(a, b), nil
	case OpNe:
		return !Equal(a, b), nil
	case OpLt, OpLe, OpGt, OpGe:
		if a == nil || b == nil {
			return false, nil
		}
		c, err := Compare(a, b)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		}
		return c >= 0, nil
	}

	if op == OpAdd {
		sa, aStr := a.(string)
		sb, bStr := b.(string)
		if aStr || bStr {
			if !aStr && a != nil {
				sa = fmt.Sprint(a)
			}
			if !bStr && b != nil {
				sb = fmt.Sprint(b)
			}
			return sa + sb, nil
		}
	}
	if a == nil || b == nil {
		return nil, nil
	}

	if ia, ok := toInt(a); ok {
		if ib, ok := toInt(b); ok {
			switch op {
			case OpAdd:
				return ia + ib, nil
			case OpSub:
				return ia - ib, nil
			case OpMul:
				return ia * ib, nil
			case OpDiv, OpMod:
				if ib == 0 {
					return nil, fmt.Errorf("integer division by zero")
				}
				if op == OpDiv {
					return ia / ib, nil
				}
				return ia % ib, nil
			}
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, fmt.Errorf("operator %s on %T and %T", op, a, b)
	}
	switch op {
	case OpAdd:
		return fa + fb, nil
	case OpSub:
		return fa - fb, nil
	case OpMul:
		return fa * fb, nil
	case OpDiv:
		return fa / fb, nil
	case OpMod:
		return math.Mod(fa, fb), nil
	}
	return nil, fmt.Errorf("operator %s is not arithmetic", op)
}

// Equal compares host values the way query predicates do: numbers by value,
// identifiable objects by class root and primary key.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ia, ok := a.(ir.Identifiable); ok {
		if ib, ok := b.(ir.Identifiable); ok {
			return Equal(ia.PrimaryKeyValue(), ib.PrimaryKeyValue())
		}
		return Equal(ia.PrimaryKeyValue(), b)
	}
	if ib, ok := b.(ir.Identifiable); ok {
		return Equal(a, ib.PrimaryKeyValue())
	}
	if ia, ok := toInt(a); ok {
		if ib, ok := toInt(b); ok {
			return ia == ib
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two non-null host values.
func Compare(a, b any) (int, error) {
	if ia, ok := toInt(a); ok {
		if ib, ok := toInt(b); ok {
			return cmp3(ia < ib, ia > ib), nil
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp3(fa < fb, fa > fb), nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp3(!x && y, x && !y), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case ir.Int:
		return int64(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case ir.Float:
		return float64(f), true
	}
	return 0, false
}

func evalNew(x *New, env *Env) (any, error) {
	args, err := evalAll(x.Args, env)
	if err != nil {
		return nil, err
	}
	if x.Type == nil || x.Type.Kind() != reflect.Struct {
		m := make(map[string]any, len(args))
		for i, name := range x.Members {
			m[name] = args[i]
		}
		return m, nil
	}

	out := reflect.New(x.Type).Elem()
	for i, name := range x.Members {
		f := out.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			return nil, fmt.Errorf("%s has no settable field %s", x.Type, name)
		}
		if args[i] == nil {
			continue
		}
		v := reflect.ValueOf(args[i])
		switch {
		case v.Type().AssignableTo(f.Type()):
			f.Set(v)
		case v.Type().ConvertibleTo(f.Type()):
			f.Set(v.Convert(f.Type()))
		default:
			return nil, fmt.Errorf("cannot assign %T to %s.%s", args[i], x.Type, name)
		}
	}
	return out.Interface(), nil
}

func evalCall(x *Call, env *Env) (any, error) {
	if x.Recv == nil {
		args, err := evalAll(x.Args, env)
		if err != nil {
			return nil, err
		}
		return callStatic(x, args)
	}

	recv, err := Eval(x.Recv, env)
	if err != nil {
		return nil, err
	}
	args, err := evalAll(x.Args, env)
	if err != nil {
		return nil, err
	}

	switch x.Method.Name {
	case "ToString":
		if recv == nil {
			return "", nil
		}
		return fmt.Sprint(recv), nil
	case "Equals":
		if len(args) == 1 {
			return Equal(recv, args[0]), nil
		}
	}

	if s, ok := recv.(string); ok {
		return callString(x, s, args)
	}
	if seq, ok := sequence(recv); ok {
		return callSequence(x, seq, args)
	}
	if recv == nil {
		return nil, fmt.Errorf("null reference evaluating %s", x)
	}
	return nil, ir.Unsupported(x.String(), "method %s is not supported on %T", x.Method.Name, recv)
}

func callStatic(x *Call, args []any) (any, error) {
	switch x.Method.Type {
	case "String":
		switch x.Method.Name {
		case "IsNullOrEmpty":
			if len(args) == 1 {
				s, _ := args[0].(string)
				return s == "", nil
			}
		case "Concat":
			var b strings.Builder
			for _, a := range args {
				if a != nil {
					b.WriteString(fmt.Sprint(a))
				}
			}
			return b.String(), nil
		}
	case "Math":
		return callMath(x, args)
	}
	return nil, ir.Unsupported(x.String(), "static method %s is not supported", x.Method)
}

var mathUnary = map[string]func(float64) float64{
	"Acos":    math.Acos,
	"Asin":    math.Asin,
	"Atan":    math.Atan,
	"Cos":     math.Cos,
	"Sin":     math.Sin,
	"Tan":     math.Tan,
	"Exp":     math.Exp,
	"Floor":   math.Floor,
	"Ceiling": math.Ceil,
	"Sqrt":    math.Sqrt,
}

func callMath(x *Call, args []any) (any, error) {
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}
	name := x.Method.Name
	if fn, ok := mathUnary[name]; ok && len(args) == 1 {
		f, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("Math.%s on %T", name, args[0])
		}
		return fn(f), nil
	}
	switch name {
	case "Abs":
		if n, ok := toInt(args[0]); ok {
			if n < 0 {
				return -n, nil
			}
			return n, nil
		}
		f, _ := toFloat(args[0])
		return math.Abs(f), nil
	case "Sign":
		f, _ := toFloat(args[0])
		return int64(cmp3(f < 0, f > 0)), nil
	case "Pow":
		if len(args) == 2 {
			a, _ := toFloat(args[0])
			b, _ := toFloat(args[1])
			return math.Pow(a, b), nil
		}
	case "Log":
		a, _ := toFloat(args[0])
		if len(args) == 2 {
			b, _ := toFloat(args[1])
			return math.Log(a) / math.Log(b), nil
		}
		return math.Log(a), nil
	case "Round":
		f, _ := toFloat(args[0])
		if len(args) == 2 {
			d, _ := toInt(args[1])
			scale := math.Pow(10, float64(d))
			return math.Round(f*scale) / scale, nil
		}
		return math.Round(f), nil
	}
	return nil, ir.Unsupported(x.String(), "Math.%s with %d arguments is not supported", name, len(args))
}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

func callString(x *Call, s string, args []any) (any, error) {
	str := func(i int) (string, error) {
		if i >= len(args) {
			return "", fmt.Errorf("%s: missing argument %d", x.Method.Name, i)
		}
		v, ok := args[i].(string)
		if !ok {
			return "", fmt.Errorf("%s: argument %d is %T, not string", x.Method.Name, i, args[i])
		}
		return v, nil
	}
	num := func(i int) (int, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("%s: missing argument %d", x.Method.Name, i)
		}
		n, ok := toInt(args[i])
		if !ok {
			return 0, fmt.Errorf("%s: argument %d is %T, not an integer", x.Method.Name, i, args[i])
		}
		return int(n), nil
	}

	switch x.Method.Name {
	case "ToUpper":
		return upper.String(s), nil
	case "ToLower":
		return lower.String(s), nil
	case "Trim":
		return strings.TrimSpace(s), nil
	case "StartsWith", "EndsWith", "Contains", "Like":
		arg, err := str(0)
		if err != nil {
			return nil, err
		}
		switch x.Method.Name {
		case "StartsWith":
			return strings.HasPrefix(s, arg), nil
		case "EndsWith":
			return strings.HasSuffix(s, arg), nil
		case "Contains":
			return strings.Contains(s, arg), nil
		}
		return Like(s, arg), nil
	case "Replace":
		from, err := str(0)
		if err != nil {
			return nil, err
		}
		to, err := str(1)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, from, to), nil
	case "Substring", "Remove":
		runes := []rune(s)
		start, err := num(0)
		if err != nil {
			return nil, err
		}
		count := len(runes) - start
		if len(args) > 1 {
			if count, err = num(1); err != nil {
				return nil, err
			}
		}
		if start < 0 || count < 0 || start+count > len(runes) {
			return nil, fmt.Errorf("%s(%d, %d) out of range for length %d", x.Method.Name, start, count, len(runes))
		}
		if x.Method.Name == "Substring" {
			return string(runes[start : start+count]), nil
		}
		return string(runes[:start]) + string(runes[start+count:]), nil
	}
	return nil, ir.Unsupported(x.String(), "string method %s is not supported", x.Method.Name)
}

// Like matches s against a SQL LIKE pattern with % and _ wildcards.
func Like(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	var match func(i, j int) bool
	match = func(i, j int) bool {
		for j < len(pr) {
			switch pr[j] {
			case '%':
				for k := i; k <= len(sr); k++ {
					if match(k, j+1) {
						return true
					}
				}
				return false
			case '_':
				if i >= len(sr) {
					return false
				}
			default:
				if i >= len(sr) || sr[i] != pr[j] {
					return false
				}
			}
			i++
			j++
		}
		return i == len(sr)
	}
	return match(0, 0)
}

func sequence(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if _, ok := v.(string); ok || v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func callSequence(x *Call, seq []any, args []any) (any, error) {
	fn := func(i int) (*closure, error) {
		if i >= len(args) {
			return nil, nil
		}
		c, ok := args[i].(*closure)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %T, not a lambda", x.Method.Name, i, args[i])
		}
		return c, nil
	}
	pred := func(c *closure, v any) (bool, error) {
		if c == nil {
			return true, nil
		}
		r, err := c.call(v)
		if err != nil {
			return false, err
		}
		b, _ := r.(bool)
		return b, nil
	}
	filter := func(c *closure) ([]any, error) {
		if c == nil {
			return seq, nil
		}
		var out []any
		for _, v := range seq {
			ok, err := pred(c, v)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, v)
			}
		}
		return out, nil
	}
	project := func(c *closure) ([]any, error) {
		if c == nil {
			return seq, nil
		}
		out := make([]any, len(seq))
		for i, v := range seq {
			r, err := c.call(v)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	name := x.Method.Name
	switch name {
	case "Contains":
		if len(args) == 1 {
			for _, v := range seq {
				if Equal(v, args[0]) {
					return true, nil
				}
			}
			return false, nil
		}
	case "ToList", "ToArray", "AsEnumerable", "AsQueryable":
		return seq, nil
	case "Count", "LongCount", "Any", "Where", "First", "FirstOrDefault", "Last", "LastOrDefault", "Single", "SingleOrDefault":
		c, err := fn(0)
		if err != nil {
			return nil, err
		}
		hits, err := filter(c)
		if err != nil {
			return nil, err
		}
		switch name {
		case "Count", "LongCount":
			return int64(len(hits)), nil
		case "Any":
			return len(hits) > 0, nil
		case "Where":
			return hits, nil
		case "Single", "SingleOrDefault":
			if len(hits) > 1 {
				return nil, ir.Cardinality("sequence contains more than one element")
			}
		}
		if len(hits) == 0 {
			if strings.HasSuffix(name, "OrDefault") {
				return nil, nil
			}
			return nil, ir.Cardinality("sequence contains no elements")
		}
		if strings.HasPrefix(name, "Last") {
			return hits[len(hits)-1], nil
		}
		return hits[0], nil
	case "All":
		c, err := fn(0)
		if err != nil || c == nil {
			return nil, fmt.Errorf("All requires a predicate")
		}
		for _, v := range seq {
			ok, err := pred(c, v)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case "Select":
		c, err := fn(0)
		if err != nil {
			return nil, err
		}
		return project(c)
	case "Sum", "Min", "Max", "Average":
		c, err := fn(0)
		if err != nil {
			return nil, err
		}
		vals, err := project(c)
		if err != nil {
			return nil, err
		}
		return aggregate(name, vals)
	case "Take", "Skip":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s requires a count", name)
		}
		n, ok := toInt(args[0])
		if !ok {
			return nil, fmt.Errorf("%s requires an integer", name)
		}
		n = max(0, min(n, int64(len(seq))))
		if name == "Take" {
			return seq[:n], nil
		}
		return seq[n:], nil
	case "Reverse":
		out := make([]any, len(seq))
		for i, v := range seq {
			out[len(seq)-1-i] = v
		}
		return out, nil
	case "Distinct":
		var out []any
	next:
		for _, v := range seq {
			for _, seen := range out {
				if Equal(seen, v) {
					continue next
				}
			}
			out = append(out, v)
		}
		return out, nil
	case "OrderBy", "OrderByDescending":
		c, err := fn(0)
		if err != nil {
			return nil, err
		}
		keys, err := project(c)
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(seq))
		for i := range idx {
			idx[i] = i
		}
		var cmpErr error
		sort.SliceStable(idx, func(i, j int) bool {
			r, err := Compare(keys[idx[i]], keys[idx[j]])
			if err != nil {
				cmpErr = err
			}
			if name == "OrderByDescending" {
				return r > 0
			}
			return r < 0
		})
		if cmpErr != nil {
			return nil, cmpErr
		}
		out := make([]any, len(seq))
		for i, k := range idx {
			out[i] = seq[k]
		}
		return out, nil
	}
	return nil, ir.Unsupported(x.String(), "sequence method %s is not supported", name)
}

func aggregate(name string, vals []any) (any, error) {
	var nonNull []any
	for _, v := range vals {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		if name == "Sum" {
			return int64(0), nil
		}
		return nil, ir.EmptyAggregate(name)
	}

	switch name {
	case "Min", "Max":
		best := nonNull[0]
		for _, v := range nonNull[1:] {
			c, err := Compare(v, best)
			if err != nil {
				return nil, err
			}
			if (name == "Min" && c < 0) || (name == "Max" && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	var acc any = int64(0)
	for _, v := range nonNull {
		var err error
		if acc, err = Apply(OpAdd, acc, v); err != nil {
			return nil, err
		}
	}
	if name == "Sum" {
		return acc, nil
	}
	f, _ := toFloat(acc)
	return f / float64(len(nonNull)), nil
}
