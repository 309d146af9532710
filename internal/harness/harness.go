package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/sooq/internal/compiler"
	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/engine"
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/schema"
	"github.com/roach88/sooq/internal/store"
	"github.com/roach88/sooq/internal/testutil"
	"github.com/roach88/sooq/internal/translate"
)

// Harness runs the steps of one scenario against one database.
type Harness struct {
	session    *engine.Session
	schema     *schema.Schema
	translator *translate.Translator
	dialect    *dialect.Dialect
	logger     *slog.Logger
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine and migration logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory SQLite database for isolation.
// Query errors are step outcomes, not run errors: Run fails only when the
// database or the mapping cannot be set up.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the mapping and apply the migrations
// 3. Run every step: parse, record SQL, execute, normalize the result
// 4. Evaluate each step's assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	d := dialect.SQLite
	if scenario.Dialect != "" {
		var err error
		if d, err = dialect.Get(scenario.Dialect); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	sch, err := loadSchema(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:", store.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	fsys, dir := migrations(scenario)
	if err := st.Migrate(ctx, fsys, dir); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		session:    engine.New(st, sch, engine.WithLogger(o.logger)),
		schema:     sch,
		translator: translate.New(sch),
		dialect:    d,
		logger:     o.logger,
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		sr := h.runStep(ctx, scenario, step)
		result.Steps = append(result.Steps, sr)
		for _, msg := range EvaluateAssertions(sr, step.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func loadSchema(s *Scenario) (*schema.Schema, error) {
	if s.Schema != "" {
		return compiler.Load(s.Schema)
	}
	doc, err := compiler.ParseYAML(testutil.SchemaYAML())
	if err != nil {
		return nil, err
	}
	return compiler.Compile(doc)
}

func migrations(s *Scenario) (fs.FS, string) {
	if s.Migrations != "" {
		return os.DirFS(s.Migrations), "."
	}
	return testutil.Fixtures(), testutil.MigrationsDir
}

// runStep parses, translates and executes one step. Failures are recorded
// in the StepResult.
func (h *Harness) runStep(ctx context.Context, s *Scenario, step Step) StepResult {
	sr := StepResult{Name: step.Name, Query: step.Query}

	vars := make(map[string]any, len(s.Vars)+len(step.Vars))
	maps.Copy(vars, s.Vars)
	maps.Copy(vars, step.Vars)
	for k, v := range vars {
		vars[k] = normalize(v)
	}

	n, err := engine.ParseQuery(h.schema, step.Query, vars)
	if err != nil {
		sr.fail(err)
		return sr
	}
	if sql, err := h.explain(n); err == nil {
		sr.SQL = sql
	}

	start := time.Now()
	v, err := h.session.Execute(ctx, n)
	if err != nil {
		sr.fail(err)
	} else {
		sr.Value = normalize(v)
	}

	h.logger.Info("step completed",
		"step", step.Name,
		"failed", sr.Failed(),
		"elapsed", time.Since(start),
	)
	return sr
}

// explain renders the statement for the scenario's dialect.
func (h *Harness) explain(n expr.Node) (string, error) {
	plan, err := h.translator.Translate(n)
	if err != nil {
		return "", err
	}
	res, err := querysql.Convert(plan.Query, h.schema, h.dialect)
	if err != nil {
		return "", err
	}
	return res.Statement.String(), nil
}

func (r *StepResult) fail(err error) {
	r.Error = err.Error()
	var ie *ir.Error
	if errors.As(err, &ie) {
		r.ErrorCode = string(ie.Code)
	}
}

// normalize converts a query result (or a YAML value) to plain data:
// objects become maps with a "$class" member, integers become int64,
// times become RFC 3339 strings and GUIDs their string form.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *engine.Object:
		m := make(map[string]any, len(x.Values)+1)
		for k, val := range x.Values {
			m[k] = normalize(val)
		}
		m["$class"] = x.ClassName()
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case uuid.UUID:
		return x.String()
	}
	return v
}
