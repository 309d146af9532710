package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/ir"
)

func isClass(name string) bool {
	switch name {
	case "Contact", "Vehicle", "Bike":
		return true
	}
	return false
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "where chain",
			src:  `Contact.Where(c => c.Name == "Mary Manager")`,
			want: `Contact.Where(c => (c.Name == "Mary Manager"))`,
		},
		{
			name: "paging",
			src:  `Contact.OrderBy(c => c.ContactId).Skip(3).Take(2)`,
			want: `Contact.OrderBy(c => c.ContactId).Skip(3).Take(2)`,
		},
		{
			name: "precedence",
			src:  `Contact.Where(c => c.A + 2 * 3 > 7 && !c.Active || c.B == null)`,
			want: `Contact.Where(c => ((((c.A + (2 * 3)) > 7) && !c.Active) || (c.B == null)))`,
		},
		{
			name: "generic call and is",
			src:  `Vehicle.OfType<Bike>().Where(v => v is Bike)`,
			want: `Vehicle.OfType<Bike>().Where(v => (v is Bike))`,
		},
		{
			name: "anonymous object with inferred names",
			src:  `Contact.Select(c => new { c.Name, Code = c.Type.Code })`,
			want: `Contact.Select(c => new { Name = c.Name, Code = c.Type.Code })`,
		},
		{
			name: "array and static call",
			src:  `Contact.Where(c => new[] { 1, 2 }.Contains(c.ContactId) && Math.Abs(c.X) < 2.5)`,
			want: `Contact.Where(c => (new[] { 1, 2 }.Contains(c.ContactId) && (Math.Abs(c.X) < 2.5)))`,
		},
		{
			name: "conditional coalesce cast",
			src:  `Contact.Select(c => c.Active ? (double)c.Salary : c.Bonus ?? -1)`,
			want: `Contact.Select(c => (c.Active ? (double)c.Salary : (c.Bonus ?? -1)))`,
		},
		{
			name: "nested lambda sees outer parameter",
			src:  `Contact.Where(c => Contact.Any(d => d.Manager == c))`,
			want: `Contact.Where(c => Contact.Any(d => (d.Manager == c)))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.src, ParseOptions{IsClass: isClass})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseBindsParamsByIdentity(t *testing.T) {
	n, err := Parse(`Contact.Where(c => Contact.Any(d => d.Manager == c))`, ParseOptions{IsClass: isClass})
	require.NoError(t, err)

	outer := n.(*Call).Args[0].(*Lambda)
	inner := outer.Body.(*Call).Args[0].(*Lambda)
	eq := inner.Body.(*Binary)
	assert.Same(t, outer.Params[0], eq.Y)
	assert.Same(t, inner.Params[0], eq.X.(*Member).X)
}

func TestParseVars(t *testing.T) {
	n, err := Parse(`Contact.Where(c => c.Name == name)`, ParseOptions{
		IsClass: isClass,
		Vars:    map[string]any{"name": "Ed Employee"},
	})
	require.NoError(t, err)
	eq := n.(*Call).Args[0].(*Lambda).Body.(*Binary)
	assert.Equal(t, "Ed Employee", eq.Y.(*Const).Value)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`Contact.Where(c => c.Name == )`, "unexpected"},
		{`Nope.Where(c => true)`, `unknown identifier "Nope"`},
		{`Contact.Where(c => c.Name == "open`, "unterminated string"},
		{`Contact.Select(c => new { 1 + 2 })`, "needs a name"},
		{`Contact.Where(c => c.X) extra`, "unexpected"},
		{`Contact # 1`, "unexpected character"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src, ParseOptions{IsClass: isClass})
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"42", int64(42)},
		{"42L", int64(42)},
		{"1.5", 1.5},
		{"2m", 2.0},
		{"1e3", 1000.0},
		{"-7", int64(-7)},
	}
	for _, tt := range tests {
		n, err := Parse(tt.src, ParseOptions{})
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, n.(*Const).Value, tt.src)
	}
}

type contact struct {
	Name   string
	Salary float64
	Tags   []string
}

func (c contact) Upper() string { return c.Name + "!" }

type person struct {
	Name string
	Age  int64
}

func TestEval(t *testing.T) {
	c := P("c")
	row := contact{Name: "Mary Manager", Salary: 123, Tags: []string{"a", "b"}}
	env := NewEnv().Bind(c, row)

	tests := []struct {
		name string
		n    Node
		want any
	}{
		{"member", M(c, "Name"), "Mary Manager"},
		{"method as member", M(c, "Upper"), "Mary Manager!"},
		{"string length", M(c, "Name", "Length"), int64(12)},
		{"slice count", M(c, "Tags", "Count"), int64(2)},
		{"int arithmetic", Add(C(2), Mul(C(3), C(int32(4)))), int64(14)},
		{"mixed arithmetic", Div(C(7), C(2.0)), 3.5},
		{"integer division", Div(C(7), C(2)), int64(3)},
		{"string concat", Add(C("n="), C(3)), "n=3"},
		{"null arithmetic", Add(C(nil), C(3)), nil},
		{"comparison", Gt(M(c, "Salary"), C(100)), true},
		{"null ordering", Lt(C(nil), C(1)), false},
		{"equality numeric kinds", Eq(C(int32(3)), C(3.0)), true},
		{"coalesce", Coalesce(C(nil), C("x")), "x"},
		{"short circuit", Or(C(true), &Throw{Message: "boom"}), true},
		{"cond", If(C(false), C(1), C(2)), 2},
		{"not", Not(C(false)), true},
		{"negate", Neg(C(2.5)), -2.5},
		{"convert", Convert(C(3), "double"), 3.0},
		{"convert truncates", Convert(C(3.9), "int"), int64(3)},
		{"upper", CallM(C("straße"), "ToUpper"), "STRASSE"},
		{"lower", CallM(C("ÀB"), "ToLower"), "àb"},
		{"substring", CallM(C("Manager"), "Substring", C(1), C(3)), "ana"},
		{"remove", CallM(C("Manager"), "Remove", C(3)), "Man"},
		{"replace", CallM(C("a-b"), "Replace", C("-"), C("+")), "a+b"},
		{"starts", CallM(C("Mary"), "StartsWith", C("Ma")), true},
		{"like", CallM(C("Mary"), "Like", C("M_r%")), true},
		{"is null or empty", Static("String", "IsNullOrEmpty", C("")), true},
		{"concat", Static("String", "Concat", C("a"), C(nil), C(1)), "a1"},
		{"abs int", Static("Math", "Abs", C(-4)), int64(4)},
		{"pow", Static("Math", "Pow", C(2), C(10)), 1024.0},
		{"round digits", Static("Math", "Round", C(2.345), C(1)), 2.3},
		{"sign", Static("Math", "Sign", C(-0.5)), int64(-1)},
		{"array", Array(C(1), C("x")), []any{1, "x"}},
		{"contains", CallM(Array(C(1), C(2)), "Contains", C(int64(2))), true},
		{"anonymous object", Object(F("N", M(c, "Name"))), map[string]any{"N": "Mary Manager"}},
		{"struct", Struct(person{}, F("Name", C("Ed")), F("Age", C(30))), person{Name: "Ed", Age: 30}},
		{"to string", CallM(C(12), "ToString"), "12"},
		{"host func", Host("double", func(args ...any) (any, error) { return args[0].(int) * 2, nil }, C(21)), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.n, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalSequenceOperators(t *testing.T) {
	x := P("x")
	nums := C([]int{5, 3, 8, 1})
	tests := []struct {
		name string
		n    Node
		want any
	}{
		{"count", CallM(nums, "Count"), int64(4)},
		{"count filtered", CallM(nums, "Count", L(Gt(x, C(2)), x)), int64(3)},
		{"any", CallM(nums, "Any", L(Eq(x, C(8)), x)), true},
		{"all", CallM(nums, "All", L(Gt(x, C(0)), x)), true},
		{"where", CallM(nums, "Where", L(Lt(x, C(4)), x)), []any{3, 1}},
		{"select", CallM(nums, "Select", L(Mul(x, C(2)), x)), []any{int64(10), int64(6), int64(16), int64(2)}},
		{"first", CallM(nums, "First"), 5},
		{"last filtered", CallM(nums, "Last", L(Gt(x, C(4)), x)), 8},
		{"first or default", CallM(nums, "FirstOrDefault", L(Gt(x, C(40)), x)), nil},
		{"sum", CallM(nums, "Sum"), int64(17)},
		{"min", CallM(nums, "Min"), 1},
		{"max", CallM(nums, "Max"), 8},
		{"average", CallM(nums, "Average"), 4.25},
		{"take", CallM(nums, "Take", C(2)), []any{5, 3}},
		{"skip past end", CallM(nums, "Skip", C(9)), []any{}},
		{"order", CallM(nums, "OrderBy", L(x, x)), []any{1, 3, 5, 8}},
		{"order desc", CallM(nums, "OrderByDescending", L(x, x)), []any{8, 5, 3, 1}},
		{"reverse", CallM(nums, "Reverse"), []any{1, 8, 3, 5}},
		{"distinct", CallM(Array(C(1), C(1), C(2)), "Distinct"), []any{1, 2}},
		{"empty sum", CallM(C([]int{}), "Sum"), int64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.n, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	c := P("c")
	tests := []struct {
		name  string
		n     Node
		check func(error) bool
	}{
		{"unbound", M(c, "Name"), func(err error) bool { return err != nil }},
		{"source", Src("Contact"), ir.IsUnsupported},
		{"unknown member", M(C(person{}), "Missing"), ir.IsSchemaResolution},
		{"unknown method", CallM(C("x"), "Frobnicate"), ir.IsUnsupported},
		{"single of many", CallM(C([]int{1, 2}), "Single"), ir.IsCardinality},
		{"min of empty", CallM(C([]int{}), "Min"), ir.IsEmptyAggregate},
		{"throw", &Throw{Message: "nope"}, func(err error) bool { return err.Error() == "nope" }},
		{"division by zero", Div(C(1), C(0)), func(err error) bool { return err != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.n, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestEnvWithValues(t *testing.T) {
	c := P("c")
	name := M(c, "Name")
	body := Add(CallM(name, "ToUpper"), C("!"))

	env := NewEnv().WithValues(map[Node]any{name: "ed"})
	got, err := Eval(body, env)
	require.NoError(t, err)
	assert.Equal(t, "ED!", got)
}

func TestLike(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"Mary", "M%", true},
		{"Mary", "%ry", true},
		{"Mary", "_ary", true},
		{"Mary", "M_", false},
		{"", "%", true},
		{"abc", "a%c%", true},
		{"abc", "abcd", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Like(tt.s, tt.pattern), "%q LIKE %q", tt.s, tt.pattern)
	}
}

func TestWalkAndReferences(t *testing.T) {
	c, d := P("c"), P("d")
	n := CallM(Src("Contact"), "Where", L(Eq(M(c, "Manager"), d), c))

	var kinds []string
	Inspect(n, func(x Node) bool {
		switch x.(type) {
		case *Param:
			kinds = append(kinds, "param")
		case *Member:
			kinds = append(kinds, "member")
		}
		return true
	})
	assert.Equal(t, []string{"param", "member", "param", "param"}, kinds)

	assert.True(t, References(n, d))
	assert.True(t, References(n, c))
	assert.False(t, References(n, P("c")))
	assert.False(t, References(C(1), c))
}

func TestReplace(t *testing.T) {
	c := P("c")
	name := M(c, "Name")
	body := Eq(name, C("x"))

	out := Replace(body, func(n Node) Node {
		if n == name {
			return C("y")
		}
		return nil
	})
	assert.Equal(t, `("y" == "x")`, out.String())
	assert.Equal(t, `(c.Name == "x")`, body.String())

	same := Replace(body, func(Node) Node { return nil })
	assert.Same(t, body, same)
}

func TestFn(t *testing.T) {
	l := Fn("c", func(c Node) Node { return Eq(M(c, "Name"), C("Mary")) })
	require.Len(t, l.Params, 1)
	assert.Equal(t, `c => (c.Name == "Mary")`, l.String())
}
