package translate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/testutil"
	"github.com/roach88/sooq/internal/translate"
)

type contactRef struct{ id int64 }

func (c contactRef) ClassName() string    { return "Contact" }
func (c contactRef) PrimaryKeyValue() any { return c.id }

func parse(t *testing.T, src string, vars map[string]any) expr.Node {
	t.Helper()
	s := testutil.Schema(t)
	n, err := expr.Parse(src, expr.ParseOptions{
		Vars: vars,
		IsClass: func(name string) bool {
			_, ok := s.Class(name)
			return ok
		},
	})
	require.NoError(t, err, src)
	return n
}

func plan(t *testing.T, src string, vars map[string]any) (*translate.Plan, error) {
	t.Helper()
	return translate.New(testutil.Schema(t)).Translate(parse(t, src, vars))
}

func mustPlan(t *testing.T, src string, vars map[string]any) *translate.Plan {
	t.Helper()
	p, err := plan(t, src, vars)
	require.NoError(t, err, src)
	return p
}

func path(segments ...string) *queryir.Path { return queryir.NewPath(segments...) }

func TestTranslate_WhereCount(t *testing.T) {
	p := mustPlan(t, `Contact.Where(c => c.Name == "Mary Manager").Count()`, nil)

	assert.Equal(t, translate.ScalarCount, p.Shape)
	assert.Equal(t, []string{"Contact"}, p.Query.From)
	assert.Equal(t, &queryir.Relational{
		Op:    queryir.OpEq,
		Left:  path("t0", "Name"),
		Right: queryir.Lit(ir.NewString("Mary Manager")),
	}, p.Query.Where)
	require.Len(t, p.Query.Select, 1)
	assert.True(t, queryir.ContainsAggregate(p.Query.Select[0]))
}

func TestTranslate_ConstantFolding(t *testing.T) {
	p := mustPlan(t, `Contact.Where(c => c.Salary > limit * 2)`, map[string]any{"limit": 100})

	rel, ok := p.Query.Where.(*queryir.Relational)
	require.True(t, ok)
	assert.Equal(t, queryir.OpGt, rel.Op)
	assert.Equal(t, queryir.Lit(ir.Int(200)), rel.Right)
}

func TestTranslate_NullAndIdentity(t *testing.T) {
	t.Run("equals null", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Manager == null)`, nil)
		assert.Equal(t, &queryir.IsNull{X: path("t0", "Manager")}, p.Query.Where)
	})
	t.Run("not equals null", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => null != c.Hired)`, nil)
		assert.Equal(t, &queryir.IsNull{X: path("t0", "Hired"), Negated: true}, p.Query.Where)
	})
	t.Run("object constant compares keys", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Manager == boss)`, map[string]any{"boss": contactRef{id: 1}})
		assert.Equal(t, &queryir.Relational{
			Op:    queryir.OpEq,
			Left:  path("t0", "Manager"),
			Right: queryir.Lit(ir.Int(1)),
		}, p.Query.Where)
	})
	t.Run("boolean column as predicate", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => !c.Active)`, nil)
		_, ok := p.Query.Where.(*queryir.Not)
		assert.True(t, ok, "got %#v", p.Query.Where)
	})
}

func TestTranslate_RowWindow(t *testing.T) {
	tests := []struct {
		src    string
		offset int64
		limit  int64
	}{
		{`Contact.Skip(3).Take(2)`, 3, 2},
		{`Contact.Take(5).Take(2)`, 0, 2},
		{`Contact.Take(2).Take(5)`, 0, 2},
		{`Contact.Skip(2).Skip(3)`, 5, -1},
		{`Contact.Take(2).Skip(5)`, 5, 0},
		{`Contact.Take(5).Skip(2)`, 2, 3},
		{`Contact.Take(-4)`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p := mustPlan(t, tt.src, nil)
			assert.Equal(t, tt.offset, p.Query.Offset)
			assert.Equal(t, tt.limit, p.Query.Limit)
		})
	}
}

func TestTranslate_ChainState(t *testing.T) {
	tests := []string{
		`Contact.Take(3).Where(c => c.Active)`,
		`Contact.Skip(1).OrderBy(c => c.Name)`,
		`Contact.Take(3).GroupBy(c => c.Type)`,
		`Contact.Take(3).Reverse()`,
		`Contact.Take(3).Distinct()`,
		`Contact.ThenBy(c => c.Name)`,
		`Contact.Select(c => c.Name).Select(n => n)`,
		`Contact.Where(c => c.Active).Union(Contact.Take(1))`,
		`Contact.Union(Role)`,
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := plan(t, src, nil)
			require.Error(t, err)
			assert.True(t, ir.IsChainState(err), "got %v", err)
		})
	}
}

func TestTranslate_SchemaResolution(t *testing.T) {
	_, err := plan(t, `Contact.Where(c => c.Nickname == "x")`, nil)
	require.Error(t, err)
	assert.True(t, ir.IsSchemaResolution(err), "got %v", err)

	_, err = translate.New(testutil.Schema(t)).Source("Person")
	require.Error(t, err)
	assert.True(t, ir.IsSchemaResolution(err), "got %v", err)
}

func TestTranslate_Unsupported(t *testing.T) {
	tests := []string{
		`Contact.Max()`,
		`Contact.GroupBy(c => c.Type.Code).ToList()`,
		`Contact.Where(c => c.Name.Contains("50%"))`,
		`Contact.Take(c => 1)`,
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := plan(t, src, nil)
			require.Error(t, err)
			assert.True(t, ir.IsUnsupported(err), "got %v", err)
		})
	}
}

func TestTranslate_Terminals(t *testing.T) {
	tests := []struct {
		src   string
		shape translate.Shape
		limit int64
	}{
		{`Contact.ToList()`, translate.Rows, -1},
		{`Contact.OrderBy(c => c.Name).First()`, translate.FirstRow, 1},
		{`Contact.FirstOrDefault(c => c.Active)`, translate.FirstRow, 1},
		{`Contact.Single(c => c.ContactId == 1)`, translate.SingleRow, 2},
		{`Contact.Last()`, translate.FirstRow, 1},
		{`Contact.Take(3).Last()`, translate.LastRow, 3},
		{`Contact.ElementAt(2)`, translate.FirstRow, 1},
		{`Contact.Any()`, translate.Exists, 1},
		{`Contact.All(c => c.Active)`, translate.Exists, 1},
		{`Contact.Sum(c => c.Salary)`, translate.AggregateValue, -1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p := mustPlan(t, tt.src, nil)
			assert.Equal(t, tt.shape, p.Shape)
			assert.Equal(t, tt.limit, p.Query.Limit)
		})
	}
}

func TestTranslate_LastReversesOrder(t *testing.T) {
	t.Run("primary key fallback", func(t *testing.T) {
		p := mustPlan(t, `Contact.Last()`, nil)
		assert.Equal(t, []queryir.Expr{path("t0")}, p.Query.OrderBy)
		assert.Equal(t, []bool{true}, p.Query.OrderDesc)
	})
	t.Run("explicit order flips", func(t *testing.T) {
		p := mustPlan(t, `Contact.OrderBy(c => c.Name).ThenByDescending(c => c.ContactId).Last()`, nil)
		assert.Equal(t, []bool{true, false}, p.Query.OrderDesc)
	})
	t.Run("reverse", func(t *testing.T) {
		p := mustPlan(t, `Contact.Reverse()`, nil)
		assert.Equal(t, []bool{true}, p.Query.OrderDesc)
	})
}

func TestTranslate_ElementAtSkips(t *testing.T) {
	p := mustPlan(t, `Contact.OrderBy(c => c.ContactId).ElementAt(4)`, nil)
	assert.Equal(t, int64(4), p.Query.Offset)
	assert.Equal(t, int64(1), p.Query.Limit)
}

func TestTranslate_FilteredTerminalAfterWindowWraps(t *testing.T) {
	p := mustPlan(t, `Contact.Take(3).Count(c => c.Active)`, nil)

	require.Equal(t, translate.ScalarCount, p.Shape)
	assert.Equal(t, int64(-1), p.Query.Limit)
	and, ok := p.Query.Where.(*queryir.And)
	require.True(t, ok, "got %#v", p.Query.Where)
	in, ok := and.Operands[0].(*queryir.In)
	require.True(t, ok)
	require.NotNil(t, in.Query)
	assert.Equal(t, int64(3), in.Query.Limit)
}

func TestTranslate_Aggregates(t *testing.T) {
	t.Run("sum of nullable column", func(t *testing.T) {
		p := mustPlan(t, `Contact.Sum(c => c.Salary)`, nil)
		assert.Equal(t, "SUM", p.Aggregate)
		assert.Equal(t, ir.KindFloat, p.Kind)
		assert.True(t, p.Nullable)
		assert.Len(t, p.Query.Select, 2)
	})
	t.Run("average is float", func(t *testing.T) {
		p := mustPlan(t, `Contact.Average(c => c.ContactId)`, nil)
		assert.Equal(t, "AVG", p.Aggregate)
		assert.Equal(t, ir.KindFloat, p.Kind)
		assert.False(t, p.Nullable)
	})
	t.Run("min over projection", func(t *testing.T) {
		p := mustPlan(t, `Contact.Select(c => c.ContactId).Min()`, nil)
		assert.Equal(t, "MIN", p.Aggregate)
		assert.Equal(t, ir.KindInt, p.Kind)
	})
}

func TestTranslate_GroupBy(t *testing.T) {
	p := mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Select(g => new { g.Key, Count = g.Count() })`, nil)

	require.NotNil(t, p.Projection)
	assert.Equal(t, []queryir.Expr{path("t0", "Type", "Code")}, p.Query.GroupBy)
	assert.Equal(t, p.Query.GroupBy, p.Query.OrderBy)
	assert.Equal(t, []string{"Key", "Count"}, p.Query.SelectAliases)

	v, err := p.Projection.Build([]any{"Customer", int64(4)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Key": "Customer", "Count": int64(4)}, v)
}

func TestTranslate_GroupHaving(t *testing.T) {
	p := mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Where(g => g.Count() > 1).Select(g => g.Key)`, nil)

	rel, ok := p.Query.Having.(*queryir.Relational)
	require.True(t, ok, "got %#v", p.Query.Having)
	assert.Equal(t, queryir.OpGt, rel.Op)
	assert.Nil(t, p.Query.Where)
}

func TestTranslate_ProjectedGroupSelector(t *testing.T) {
	direct := mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Select(g => g.Max(x => x.Salary))`, nil)
	composed := mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Select(g => g.Select(x => x.Salary).Max(v => v))`, nil)
	assert.Equal(t, direct.Query.Select, composed.Query.Select)

	direct = mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Select(g => g.Count(x => x.Salary > 200))`, nil)
	composed = mustPlan(t, `Contact.GroupBy(c => c.Type.Code).Select(g => g.Select(x => x.Salary).Count(v => v > 200))`, nil)
	assert.Equal(t, direct.Query.Select, composed.Query.Select)
}

func TestTranslate_ProjectionTail(t *testing.T) {
	c := expr.P("c")
	shout := expr.Host("shout", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)) + "!", nil
	}, expr.M(c, "Name"))
	q := expr.CallM(expr.Src("Contact"), "Select", expr.L(shout, c))

	p, err := translate.New(testutil.Schema(t)).Translate(q)
	require.NoError(t, err)
	require.NotNil(t, p.Projection)
	assert.Equal(t, []queryir.Expr{path("t0", "Name")}, p.Query.Select)

	v, err := p.Projection.Build([]any{"mary"})
	require.NoError(t, err)
	assert.Equal(t, "MARY!", v)
}

func TestTranslate_ProjectionObjects(t *testing.T) {
	p := mustPlan(t, `Contact.Select(c => new { c.Name, Boss = c.Manager })`, nil)

	require.Len(t, p.Query.Select, 2)
	assert.Equal(t, path("t0", "Name"), p.Query.Select[0])
	assert.Equal(t, &queryir.Asterisk{Path: path("t0", "Manager")}, p.Query.Select[1])
	items := p.Projection.Items()
	require.Len(t, items, 2)
	assert.Nil(t, items[0].Class)
	require.NotNil(t, items[1].Class)
	assert.Equal(t, "Contact", items[1].Class.Name)
	assert.True(t, items[1].Nullable)
}

func TestTranslate_Collections(t *testing.T) {
	t.Run("any", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Subordinates.Any())`, nil)
		ct, ok := p.Query.Where.(*queryir.Contains)
		require.True(t, ok, "got %#v", p.Query.Where)
		assert.Equal(t, "Subordinates", ct.Collection)
		assert.Equal(t, path("t0"), ct.Path)
	})
	t.Run("count", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Subordinates.Count(s => s.Active) > 1)`, nil)
		rel, ok := p.Query.Where.(*queryir.Relational)
		require.True(t, ok)
		co, ok := rel.Left.(*queryir.CountOf)
		require.True(t, ok)
		assert.NotNil(t, co.Where)
	})
	t.Run("many to many contains", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Roles.Contains(r))`, map[string]any{"r": 2})
		ct, ok := p.Query.Where.(*queryir.Contains)
		require.True(t, ok)
		assert.Equal(t, "Roles", ct.Collection)
		assert.Equal(t, queryir.Lit(ir.Int(2)), ct.Needle)
	})
	t.Run("all negates", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Vehicles.All(v => v.Name != ""))`, nil)
		_, ok := p.Query.Where.(*queryir.Not)
		assert.True(t, ok, "got %#v", p.Query.Where)
	})
}

func TestTranslate_HostSequences(t *testing.T) {
	t.Run("contains", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => ids.Contains(c.ContactId))`, map[string]any{"ids": []int64{1, 50}})
		in, ok := p.Query.Where.(*queryir.In)
		require.True(t, ok)
		assert.Len(t, in.List, 2)
	})
	t.Run("empty is false", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => ids.Contains(c.ContactId))`, map[string]any{"ids": []int64{}})
		assert.True(t, queryir.IsFalse(p.Query.Where))
	})
}

func TestTranslate_SetOperations(t *testing.T) {
	t.Run("union", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Active).Union(Contact.Where(c => c.Name == "Bob"))`, nil)
		or, ok := p.Query.Where.(*queryir.Or)
		require.True(t, ok, "got %#v", p.Query.Where)
		assert.Len(t, or.Operands, 2)
	})
	t.Run("except", func(t *testing.T) {
		p := mustPlan(t, `Contact.Where(c => c.Active).Except(Contact.Where(c => c.Name == "Bob"))`, nil)
		and, ok := p.Query.Where.(*queryir.And)
		require.True(t, ok)
		not, ok := and.Operands[1].(*queryir.Not)
		require.True(t, ok)
		in, ok := not.X.(*queryir.In)
		require.True(t, ok, "got %#v", not.X)
		assert.Equal(t, path(p.Query.FromAliases[0]), in.Needle)
		require.NotNil(t, in.Query)
		assert.NotEqual(t, p.Query.FromAliases, in.Query.FromAliases)
	})
}

func TestTranslate_OfType(t *testing.T) {
	p := mustPlan(t, `Vehicle.OfType<Bike>()`, nil)
	assert.Equal(t, []string{"Bike"}, p.Query.From)
	assert.Equal(t, "Bike", p.Class.Name)

	p = mustPlan(t, `Vehicle.OfType<Vehicle>()`, nil)
	assert.Equal(t, []string{"Vehicle"}, p.Query.From)

	p = mustPlan(t, `Vehicle.OfType<Role>()`, nil)
	assert.True(t, queryir.IsFalse(p.Query.Where))
}

func TestTranslate_ByKey(t *testing.T) {
	p, err := translate.New(testutil.Schema(t)).ByKey("Contact")
	require.NoError(t, err)

	assert.Equal(t, translate.FirstRow, p.Shape)
	assert.Equal(t, &queryir.Relational{
		Op:    queryir.OpEq,
		Left:  path("t0"),
		Right: &queryir.Parameter{Ordinal: 0, Kind: ir.KindInt},
	}, p.Query.Where)
}

func TestTranslate_IncrementalChain(t *testing.T) {
	tr := translate.New(testutil.Schema(t))
	c, err := tr.Source("Contact")
	require.NoError(t, err)

	where := parse(t, `Contact.Where(c => c.Active)`, nil).(*expr.Call)
	filtered, err := c.Apply(where)
	require.NoError(t, err)

	count := expr.CallM(nil, "Count")
	p, err := filtered.Terminal(count)
	require.NoError(t, err)
	assert.Equal(t, translate.ScalarCount, p.Shape)

	// The original chain is unchanged.
	all, err := c.List()
	require.NoError(t, err)
	assert.Nil(t, all.Query.Where)
}

func TestTranslate_ConvertsOnEveryDialect(t *testing.T) {
	queries := []string{
		`Contact.Where(c => c.Type.Code == "Customer").OrderBy(c => c.Name).ToList()`,
		`Contact.Where(c => c.Subordinates.Any()).Count()`,
		`Contact.Where(c => c.Roles.Any(r => r.Name == "Admin")).Select(c => c.Name)`,
		`Contact.GroupBy(c => c.Type.Code).Select(g => new { g.Key, Count = g.Count() })`,
		`Contact.OrderBy(c => c.ContactId).Skip(3).Take(2)`,
		`Contact.Where(c => c.Name.StartsWith("M") && c.Salary > 10)`,
		`Vehicle.OfType<Bike>().Where(b => b.TwoWheels)`,
	}
	s := testutil.Schema(t)
	for _, src := range queries {
		p := mustPlan(t, src, nil)
		for _, d := range []*dialect.Dialect{dialect.SQLite, dialect.Postgres, dialect.MySQL, dialect.MSSQL, dialect.Oracle} {
			t.Run(d.Name+"/"+src, func(t *testing.T) {
				_, err := querysql.Convert(p.Query, s, d)
				require.NoError(t, err)
			})
		}
	}
}
