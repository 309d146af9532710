package querysql

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/queryir"
	"github.com/roach88/sooq/internal/schema"
)

// Result is a converted query: the statement plus a description of every
// column it returns.
type Result struct {
	Statement *Statement
	Columns   []Column
}

// Column describes one result column.
type Column struct {
	// Item is the index of the select item that produced the column. An
	// expanded object contributes one column per field, all with the same Item.
	Item int

	// Name is the select alias, the field name of an expanded object, or ""
	// for an unnamed expression.
	Name string

	Kind ir.Kind

	// Field and Class are set for the columns of an expanded object.
	Field *schema.Field
	Class *schema.Class
}

// Convert lowers a query object model query into SQL for dialect d.
//
// Processing order is select list, group by, having, order by, where and
// finally from: every clause may add joins, so the from clause is rendered
// last. Tokens are still emitted in the order the dialect expects.
func Convert(q *queryir.Query, s *schema.Schema, d *dialect.Dialect) (*Result, error) {
	if res := queryir.Validate(q); !res.Valid {
		return nil, res.Err()
	}
	c := &converter{schema: s, dialect: d, aliases: newAliasState(q)}
	body, cols, err := c.query(q, false, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Statement: &Statement{Segments: body.segs}, Columns: cols}, nil
}

// converter renders one query level. Nested subqueries use child converters
// linked through parent; all levels share the alias allocator.
type converter struct {
	schema  *schema.Schema
	dialect *dialect.Dialect
	parent  *converter
	aliases *aliasState
	from    []*fromItem
}

func (c *converter) child() *converter {
	return &converter{schema: c.schema, dialect: c.dialect, parent: c, aliases: c.aliases}
}

// aliasState hands out t0, t1, ... skipping aliases chosen by the caller.
type aliasState struct {
	next int
	used map[string]bool
}

func newAliasState(q *queryir.Query) *aliasState {
	a := &aliasState{used: map[string]bool{}}
	a.reserve(q)
	return a
}

// reserve marks every caller-supplied alias in q and its subqueries.
func (a *aliasState) reserve(q *queryir.Query) {
	if q == nil {
		return
	}
	for _, alias := range q.FromAliases {
		a.used[alias] = true
	}
	queryir.WalkQuery(q, func(e queryir.Expr) bool {
		switch x := e.(type) {
		case *queryir.Subquery:
			a.reserve(x.Query)
			return false
		case *queryir.Exists:
			a.reserve(x.Query)
			return false
		case *queryir.In:
			a.reserve(x.Query)
		case *queryir.Contains:
			if x.Alias != "" {
				a.used[x.Alias] = true
			}
		case *queryir.CountOf:
			if x.Alias != "" {
				a.used[x.Alias] = true
			}
		}
		return true
	})
}

func (a *aliasState) fresh() string {
	for {
		name := "t" + strconv.Itoa(a.next)
		a.next++
		if !a.used[name] {
			a.used[name] = true
			return name
		}
	}
}

// fromItem is one FROM entry with the joins its paths required.
type fromItem struct {
	class *schema.Class
	alias string
	joins []*join
	memo  map[string]string // resolved path prefix -> table alias
}

// join links a table to an already present alias on one column each side.
type join struct {
	table       string
	alias       string
	outer       bool
	leftAlias   string
	leftColumn  string
	rightColumn string
}

// clauses are the rendered parts of one query level.
type clauses struct {
	distinct bool
	items    []*sqlBuf
	names    []string
	from     *sqlBuf
	where    []*sqlBuf
	groupBy  []*sqlBuf
	having   *sqlBuf
	order    []*sqlBuf
	offset   int64
	limit    int64
}

// extraFunc contributes additional WHERE conditions once the from items of
// a level are registered.
type extraFunc func(c *converter) ([]*sqlBuf, error)

// query renders q at this converter's level. Subqueries (sub) select the
// primary key when their select list is empty and drop ORDER BY unless
// they are row limited.
func (c *converter) query(q *queryir.Query, sub bool, extra extraFunc) (*sqlBuf, []Column, error) {
	for i, name := range q.From {
		cls, err := c.schema.Lookup(name)
		if err != nil {
			return nil, nil, err
		}
		alias := ""
		if i < len(q.FromAliases) {
			alias = q.FromAliases[i]
		}
		if alias == "" {
			alias = c.aliases.fresh()
		}
		c.from = append(c.from, &fromItem{class: cls, alias: alias, memo: map[string]string{}})
	}

	p := &clauses{distinct: q.Distinct, offset: q.Offset, limit: q.Limit}

	items, names, cols, err := c.selectList(q, sub)
	if err != nil {
		return nil, nil, err
	}
	p.items, p.names = items, c.fitAliases(names)

	for _, e := range q.GroupBy {
		g, err := c.scalar(e)
		if err != nil {
			return nil, nil, err
		}
		p.groupBy = append(p.groupBy, g)
	}

	if q.Having != nil {
		h := &sqlBuf{}
		if err := c.writeCond(h, q.Having); err != nil {
			return nil, nil, err
		}
		p.having = h
	}

	for i, e := range q.OrderBy {
		o, err := c.scalar(e)
		if err != nil {
			return nil, nil, err
		}
		if q.OrderDesc[i] {
			o.text(" DESC")
		}
		p.order = append(p.order, o)
	}

	if p.limit == 0 {
		p.where = append(p.where, &sqlBuf{segs: []Segment{{Kind: TextSegment, Text: falseSQL}}})
		p.offset, p.limit = 0, -1
	}
	if err := c.whereConds(p, q.Where); err != nil {
		return nil, nil, err
	}
	if extra != nil {
		more, err := extra(c)
		if err != nil {
			return nil, nil, err
		}
		p.where = append(p.where, more...)
	}
	p.where = append(p.where, c.restrictions()...)

	from, legacy := c.fromClause()
	p.from = from
	p.where = append(p.where, legacy...)

	body, err := c.assemble(p, sub)
	if err != nil {
		return nil, nil, err
	}
	return body, cols, nil
}

// whereConds renders the filter, splitting a top-level conjunction so each
// operand stands alone in the WHERE list.
func (c *converter) whereConds(p *clauses, where queryir.BoolExpr) error {
	if where == nil || queryir.IsTrue(where) {
		return nil
	}
	operands := []queryir.BoolExpr{where}
	if and, ok := where.(*queryir.And); ok {
		operands = and.Operands
	}
	for _, o := range operands {
		b := &sqlBuf{}
		if err := c.writeCond(b, o); err != nil {
			return err
		}
		p.where = append(p.where, b)
	}
	return nil
}

// selectList renders the select items, expanding objects into their fields.
func (c *converter) selectList(q *queryir.Query, sub bool) ([]*sqlBuf, []string, []Column, error) {
	var items []*sqlBuf
	var names []string
	var cols []Column

	if len(q.Select) == 0 {
		root := c.from[0]
		obj := &objectRef{item: root, class: root.class, alias: root.alias, key: root.alias}
		if sub {
			key, err := c.keyColumn(obj)
			if err != nil {
				return nil, nil, nil, err
			}
			kf, _ := obj.class.KeyField()
			b := &sqlBuf{}
			b.text(key)
			return []*sqlBuf{b}, []string{""}, []Column{{Name: kf.Name, Kind: kf.Kind}}, nil
		}
		return c.expandObject(obj, 0)
	}

	for i, e := range q.Select {
		if a, ok := e.(*queryir.Asterisk); ok {
			r, err := c.resolve(a.Path, true)
			if err != nil {
				return nil, nil, nil, err
			}
			if r.obj == nil {
				return nil, nil, nil, ir.Unsupported(a.Path.String(), "%s is not an object", a.Path)
			}
			ei, en, ec, err := c.expandObject(r.obj, i)
			if err != nil {
				return nil, nil, nil, err
			}
			items, names, cols = append(items, ei...), append(names, en...), append(cols, ec...)
			continue
		}

		name := ""
		if i < len(q.SelectAliases) {
			name = q.SelectAliases[i]
		}
		col := Column{Item: i, Name: name}

		b := &sqlBuf{}
		if s, ok := e.(*queryir.Subquery); ok {
			sb, sc, err := c.subquery(s.Query)
			if err != nil {
				return nil, nil, nil, err
			}
			b.text("(")
			b.append(sb)
			b.text(")")
			if len(sc) == 1 {
				col.Kind = sc[0].Kind
			}
		} else {
			if err := c.writeScalar(b, e); err != nil {
				return nil, nil, nil, err
			}
			col.Kind = c.kindOf(e)
		}
		items = append(items, b)
		names = append(names, name)
		cols = append(cols, col)
	}
	return items, names, cols, nil
}

// expandObject selects every field of obj's class.
func (c *converter) expandObject(obj *objectRef, item int) ([]*sqlBuf, []string, []Column, error) {
	var items []*sqlBuf
	var names []string
	var cols []Column
	for _, f := range obj.class.Fields() {
		ta, err := c.tableAlias(obj, f.Table())
		if err != nil {
			return nil, nil, nil, err
		}
		b := &sqlBuf{}
		b.text(c.column(ta, f.Column))
		items = append(items, b)
		names = append(names, "")
		cols = append(cols, Column{Item: item, Name: f.Name, Kind: f.Kind, Field: f, Class: obj.class})
	}
	return items, names, cols, nil
}

// subquery renders q one level down.
func (c *converter) subquery(q *queryir.Query) (*sqlBuf, []Column, error) {
	return c.child().query(q, true, nil)
}

// restrictions returns the discriminator conditions of hierarchy members.
// Root classes see every row of their table and need none.
func (c *converter) restrictions() []*sqlBuf {
	var out []*sqlBuf
	for _, it := range c.from {
		sel := it.class.Selector()
		if sel == nil || it.class.Parent() == nil {
			continue
		}
		b := &sqlBuf{}
		values := it.class.SelectorValues()
		switch len(values) {
		case 0:
			b.text(falseSQL)
		case 1:
			b.text(c.column(it.alias, sel.Column) + " = ")
			c.writeLiteral(b, values[0])
		default:
			b.text(c.column(it.alias, sel.Column) + " IN (")
			for i, v := range values {
				if i > 0 {
					b.text(", ")
				}
				c.writeLiteral(b, v)
			}
			b.text(")")
		}
		out = append(out, b)
	}
	return out
}

// fromClause renders the from items and their joins. Dialects with legacy
// outer joins list joined tables after a comma and return the join
// conditions for the WHERE clause.
func (c *converter) fromClause() (*sqlBuf, []*sqlBuf) {
	d := c.dialect
	b := &sqlBuf{}
	var legacy []*sqlBuf
	for i, it := range c.from {
		if i > 0 {
			b.text(", ")
		}
		b.text(d.QuoteIdent(it.class.PrimaryTable().Name) + " " + it.alias)
		for _, j := range it.joins {
			right := c.column(j.alias, j.rightColumn)
			left := c.column(j.leftAlias, j.leftColumn)
			if d.LegacyOuterJoin {
				b.text(", " + d.QuoteIdent(j.table) + " " + j.alias)
				cond := &sqlBuf{}
				if j.outer {
					cond.text(right + "(+) = " + left)
				} else {
					cond.text(right + " = " + left)
				}
				legacy = append(legacy, cond)
				continue
			}
			kw := " INNER JOIN "
			if j.outer {
				kw = " LEFT OUTER JOIN "
			}
			b.text(kw + d.QuoteIdent(j.table) + " " + j.alias + " ON (" + right + " = " + left + ")")
		}
	}
	return b, legacy
}

// assemble emits the clauses in token order and applies the row window the
// way the dialect supports it.
func (c *converter) assemble(p *clauses, sub bool) (*sqlBuf, error) {
	d := c.dialect
	windowed := p.offset > 0 || p.limit >= 0
	if !windowed {
		return c.plain(p, !sub, -1), nil
	}

	switch d.RowLimit {
	case dialect.LimitOffset:
		b := c.plain(p, true, -1)
		if p.limit >= 0 {
			b.text(" LIMIT " + strconv.FormatInt(p.limit, 10))
		} else if d.NoLimit != "" {
			b.text(" LIMIT " + d.NoLimit)
		}
		if p.offset > 0 {
			b.text(" OFFSET " + strconv.FormatInt(p.offset, 10))
		}
		return b, nil

	case dialect.LimitComma:
		b := c.plain(p, true, -1)
		count := d.NoLimit
		if p.limit >= 0 {
			count = strconv.FormatInt(p.limit, 10)
		}
		if p.offset > 0 {
			b.text(" LIMIT " + strconv.FormatInt(p.offset, 10) + ", " + count)
		} else {
			b.text(" LIMIT " + count)
		}
		return b, nil

	case dialect.OffsetFetch:
		if len(p.order) == 0 {
			key, err := c.defaultOrder()
			if err != nil {
				return nil, err
			}
			p.order = []*sqlBuf{key}
		}
		b := c.plain(p, true, -1)
		b.text(" OFFSET " + strconv.FormatInt(p.offset, 10) + " ROWS")
		if p.limit >= 0 {
			b.text(" FETCH NEXT " + strconv.FormatInt(p.limit, 10) + " ROWS ONLY")
		}
		return b, nil

	case dialect.TopRowNumber:
		if p.offset == 0 {
			return c.plain(p, true, p.limit), nil
		}
		return c.rowNumber(p, sub)
	}
	return c.rowNumber(p, sub)
}

// fitAliases shortens select aliases longer than the dialect's identifier
// limit. A shortened alias ends in _n and stays distinct from every other
// alias of the list, ignoring case.
func (c *converter) fitAliases(names []string) []string {
	limit := c.dialect.MaxIdentLength
	if limit <= 0 {
		return names
	}
	taken := map[string]bool{}
	long := false
	for _, n := range names {
		if len(n) > limit {
			long = true
			continue
		}
		taken[strings.ToUpper(n)] = true
	}
	if !long {
		return names
	}
	out := make([]string, len(names))
	next := 1
	for i, n := range names {
		if len(n) <= limit {
			out[i] = n
			continue
		}
		for {
			suffix := "_" + strconv.Itoa(next)
			next++
			cut := max(limit-len(suffix), 0)
			for cut > 0 && !utf8.RuneStart(n[cut]) {
				cut--
			}
			cand := n[:cut] + suffix
			if !taken[strings.ToUpper(cand)] {
				taken[strings.ToUpper(cand)] = true
				out[i] = cand
				break
			}
		}
	}
	return out
}

// plain renders SELECT ... FROM ... WHERE ... GROUP BY ... HAVING ... ORDER BY.
func (c *converter) plain(p *clauses, withOrder bool, top int64) *sqlBuf {
	b := &sqlBuf{}
	b.text("SELECT ")
	if p.distinct {
		b.text("DISTINCT ")
	}
	if top >= 0 {
		b.text("TOP " + strconv.FormatInt(top, 10) + " ")
	}
	for i, item := range p.items {
		if i > 0 {
			b.text(", ")
		}
		b.append(item)
		if p.names[i] != "" {
			b.text(" AS " + c.dialect.QuoteIdent(p.names[i]))
		}
	}
	c.tail(b, p, withOrder)
	return b
}

// tail renders FROM through ORDER BY.
func (c *converter) tail(b *sqlBuf, p *clauses, withOrder bool) {
	b.text(" FROM ")
	b.append(p.from)
	if len(p.where) > 0 {
		b.text(" WHERE ")
		b.join(p.where, " AND ")
	}
	if len(p.groupBy) > 0 {
		b.text(" GROUP BY ")
		b.join(p.groupBy, ", ")
	}
	if p.having != nil {
		b.text(" HAVING ")
		b.append(p.having)
	}
	if withOrder && len(p.order) > 0 {
		b.text(" ORDER BY ")
		b.join(p.order, ", ")
	}
}

// rowNumber wraps the query in a derived table numbered by ROW_NUMBER()
// and filters on the number.
//
//	SELECT q.c0, q.c1 FROM (SELECT ..., ROW_NUMBER() OVER (ORDER BY ...) AS row_num FROM ...) q
//	WHERE q.row_num > 3 AND q.row_num <= 5 ORDER BY q.row_num
func (c *converter) rowNumber(p *clauses, sub bool) (*sqlBuf, error) {
	if p.distinct {
		return nil, ir.Unsupported("Distinct", "DISTINCT with a row window is not supported by dialect %s", c.dialect.Name)
	}
	order := p.order
	if len(order) == 0 {
		key, err := c.defaultOrder()
		if err != nil {
			return nil, err
		}
		order = []*sqlBuf{key}
	}

	inner := &sqlBuf{}
	inner.text("SELECT ")
	for i, item := range p.items {
		inner.append(item)
		inner.text(" AS c" + strconv.Itoa(i) + ", ")
	}
	inner.text("ROW_NUMBER() OVER (ORDER BY ")
	inner.join(order, ", ")
	inner.text(") AS row_num")
	c.tail(inner, p, false)

	b := &sqlBuf{}
	b.text("SELECT ")
	for i := range p.items {
		if i > 0 {
			b.text(", ")
		}
		b.text("q.c" + strconv.Itoa(i))
		if p.names[i] != "" {
			b.text(" AS " + c.dialect.QuoteIdent(p.names[i]))
		}
	}
	b.text(" FROM (")
	b.append(inner)
	b.text(") q WHERE q.row_num > " + strconv.FormatInt(p.offset, 10))
	if p.limit >= 0 {
		b.text(" AND q.row_num <= " + strconv.FormatInt(saturatingAdd(p.offset, p.limit), 10))
	}
	if !sub {
		b.text(" ORDER BY q.row_num")
	}
	return b, nil
}

// defaultOrder orders by the primary key of the first from item.
func (c *converter) defaultOrder() (*sqlBuf, error) {
	root := c.from[0]
	key, err := c.keyColumn(&objectRef{item: root, class: root.class, alias: root.alias, key: root.alias})
	if err != nil {
		return nil, err
	}
	b := &sqlBuf{}
	b.text(key)
	return b, nil
}

func saturatingAdd(a, b int64) int64 {
	if s := a + b; s >= a {
		return s
	}
	return 1<<63 - 1
}

const (
	trueSQL  = "1 = 1"
	falseSQL = "1 = 0"
)

// column renders alias.column.
func (c *converter) column(alias, column string) string {
	return alias + "." + c.dialect.QuoteIdent(column)
}

// String renders the result's statement in wire format, followed by one
// line per column. Used for golden files.
func (r *Result) String() string {
	var b strings.Builder
	b.WriteString(r.Statement.String())
	for _, col := range r.Columns {
		b.WriteString("\n-- ")
		b.WriteString(strconv.Itoa(col.Item))
		b.WriteString(" ")
		if col.Class != nil {
			b.WriteString(col.Class.Name + ".")
		}
		if col.Name != "" {
			b.WriteString(col.Name)
		} else {
			b.WriteString("?")
		}
		b.WriteString(" ")
		b.WriteString(col.Kind.String())
	}
	return b.String()
}
