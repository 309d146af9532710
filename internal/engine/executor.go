package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/schema"
	"github.com/roach88/sooq/internal/translate"
)

// execute converts plan for the session's dialect and runs it.
func (s *Session) execute(ctx context.Context, plan *translate.Plan) (any, error) {
	res, err := querysql.Convert(plan.Query, s.schema, s.Dialect())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, plan, res)
}

// run binds params into the converted statement, fetches the rows and
// shapes them into the plan's result.
//
// Result by shape:
//   - Rows: []any of elements
//   - FirstRow, LastRow, SingleRow: one element, or the default for the
//     OrDefault operations
//   - CountRows, ScalarCount: int64
//   - Exists: bool
//   - AggregateValue: the aggregate converted to the plan's kind
func (s *Session) run(ctx context.Context, plan *translate.Plan, res *querysql.Result, params ...any) (any, error) {
	rows, err := s.fetch(ctx, res, params)
	if err != nil {
		return nil, err
	}

	switch plan.Shape {
	case translate.ScalarCount:
		if len(rows) == 0 {
			return int64(0), nil
		}
		return ir.Convert(ir.KindInt, rows[0][0])
	case translate.CountRows:
		return int64(len(rows)), nil
	case translate.Exists:
		return (len(rows) > 0) != plan.Negate, nil
	case translate.AggregateValue:
		return aggregateResult(plan, rows)
	}

	switch plan.Shape {
	case translate.Rows:
		out := make([]any, 0, len(rows))
		for _, r := range rows {
			v, err := s.element(plan, res, r)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case translate.SingleRow:
		if len(rows) > 1 {
			return nil, ir.Cardinality("sequence contains more than one element")
		}
	case translate.LastRow:
		if len(rows) > 0 {
			rows = rows[len(rows)-1:]
		}
	}
	if len(rows) == 0 {
		if plan.Op.OrDefault() {
			return defaultElement(plan), nil
		}
		return nil, ir.Cardinality("sequence contains no elements")
	}
	return s.element(plan, res, rows[0])
}

// fetch runs the statement and returns every row, each value converted
// to its column's kind.
func (s *Session) fetch(ctx context.Context, res *querysql.Result, params []any) ([][]any, error) {
	d := s.Dialect()
	text, args, err := res.Statement.Bind(d, params...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rs, err := s.store.Query(ctx, text, args...)
	if err != nil {
		return nil, &ExecError{SQL: text, Err: err}
	}
	defer rs.Close()

	out, err := scanAll(rs, res.Columns)
	if err != nil {
		return nil, &ExecError{SQL: text, Err: err}
	}
	s.logger.Debug("executed statement",
		"fingerprint", res.Statement.Fingerprint()[:16],
		"sql", text,
		"args", args,
		"rows", len(out),
		"elapsed", time.Since(start),
	)
	return out, nil
}

func scanAll(rs *sql.Rows, cols []querysql.Column) ([][]any, error) {
	names, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	if len(names) < len(cols) {
		return nil, fmt.Errorf("statement returned %d columns, expected %d", len(names), len(cols))
	}

	var out [][]any
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rs.Next() {
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for i, col := range cols {
			v, err := ir.Convert(col.Kind, raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %d (%s): %w", i, col.Name, err)
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// element builds one result element from a row: a projection over its
// select items, or a mapped object.
func (s *Session) element(plan *translate.Plan, res *querysql.Result, row []any) (any, error) {
	if plan.Projection == nil {
		return s.object(plan.Class, res.Columns, row, 0)
	}
	meta := plan.Projection.Items()
	items := make([]any, len(meta))
	for i, it := range meta {
		if it.Class != nil {
			obj, err := s.object(it.Class, res.Columns, row, i)
			if err != nil {
				return nil, err
			}
			items[i] = obj
			continue
		}
		for j, col := range res.Columns {
			if col.Item == i {
				items[i] = row[j]
				break
			}
		}
	}
	return plan.Projection.Build(items)
}

// object materializes the columns of select item item as an object of
// class or one of its subclasses. A missing key (an absent reference)
// yields nil.
func (s *Session) object(class *schema.Class, cols []querysql.Column, row []any, item int) (any, error) {
	values := make(map[string]any)
	for i, col := range cols {
		if col.Item == item && col.Field != nil {
			values[col.Field.Name] = row[i]
		}
	}
	if kf, err := class.KeyField(); err == nil && values[kf.Name] == nil {
		return nil, nil
	}
	concrete := class
	if sel := class.Selector(); sel != nil {
		if v, ok := values[sel.Name]; ok && v != nil {
			concrete = class.ClassForSelector(v)
		}
	}
	return s.materialize(concrete, values)
}

// aggregateResult reads [aggregate, COUNT(*)]. An empty source yields 0
// for SUM, nil for a nullable selector, and an error otherwise.
func aggregateResult(plan *translate.Plan, rows [][]any) (any, error) {
	var agg any
	var n int64
	if len(rows) > 0 {
		agg = rows[0][0]
		if c, err := ir.Convert(ir.KindInt, rows[0][1]); err == nil && c != nil {
			n = c.(int64)
		}
	}
	if n == 0 {
		switch {
		case plan.Aggregate == "SUM":
			return ir.Zero(plan.Kind), nil
		case plan.Nullable:
			return nil, nil
		}
		return nil, ir.EmptyAggregate(plan.Aggregate)
	}
	if agg == nil {
		if plan.Aggregate == "SUM" {
			return ir.Zero(plan.Kind), nil
		}
		return nil, nil
	}
	return ir.Convert(plan.Kind, agg)
}

// defaultElement is what FirstOrDefault and friends return for an empty
// source: the zero value of a scalar projection, nil otherwise.
func defaultElement(plan *translate.Plan) any {
	if plan.Projection == nil {
		return nil
	}
	items := plan.Projection.Items()
	if len(items) != 1 || items[0].Class != nil || items[0].Nullable {
		return nil
	}
	if v, err := plan.Projection.Build([]any{ir.Zero(items[0].Kind)}); err == nil {
		return v
	}
	return nil
}
