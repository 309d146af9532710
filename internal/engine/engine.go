package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/schema"
	"github.com/roach88/sooq/internal/store"
	"github.com/roach88/sooq/internal/translate"
)

// Materializer builds the host value of one fetched object. values maps
// field names to converted column values; class is the most derived class
// the discriminator selects.
type Materializer func(class *schema.Class, values map[string]any) (any, error)

// Session runs queries over one schema against one store.
//
// Thread-safety model:
//   - Query(), Run(), Execute(), Load(): safe from any goroutine
//   - Query values are immutable; each builder call returns a new Query
//
// INVARIANTS:
//   - Translation never touches the database; errors in a chain surface at
//     the terminal call before any statement runs
//   - The statement cache holds converted statements only, never rows
type Session struct {
	store      *store.Store
	schema     *schema.Schema
	translator *translate.Translator
	logger     *slog.Logger

	materialize Materializer
	cache       *stmtCache
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for executed statements and cache activity.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMaterializer replaces the default *Object materialization.
func WithMaterializer(m Materializer) Option {
	return func(s *Session) {
		s.materialize = m
	}
}

// WithStatementCache enables or disables caching of load-by-key
// statements. Enabled by default.
func WithStatementCache(enabled bool) Option {
	return func(s *Session) {
		if enabled {
			s.cache = newStmtCache()
		} else {
			s.cache = nil
		}
	}
}

// New creates a Session over st for the mapping sch.
func New(st *store.Store, sch *schema.Schema, opts ...Option) *Session {
	s := &Session{
		store:       st,
		schema:      sch,
		translator:  translate.New(sch),
		logger:      slog.Default(),
		materialize: newObject,
		cache:       newStmtCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the session's mapping.
func (s *Session) Schema() *schema.Schema { return s.schema }

// Dialect returns the dialect of the session's store.
func (s *Session) Dialect() *dialect.Dialect { return s.store.Dialect() }

// Query starts a query over every object of class.
func (s *Session) Query(class string) *Query {
	chain, err := s.translator.Source(class)
	return &Query{s: s, node: expr.Src(class), chain: chain, err: err}
}

// Run parses and executes a textual query such as
// `Contact.Where(c => c.Active).Count()`. vars supplies the values of free
// identifiers.
func (s *Session) Run(ctx context.Context, src string, vars map[string]any) (any, error) {
	n, err := ParseQuery(s.schema, src, vars)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, n)
}

// Execute translates and runs a query expression.
func (s *Session) Execute(ctx context.Context, n expr.Node) (any, error) {
	plan, err := s.translator.Translate(n)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, plan)
}

// Load fetches the object of class with primary key pk, or nil when there
// is none. The statement is converted once per class and reused.
func (s *Session) Load(ctx context.Context, class string, pk any) (any, error) {
	lp, err := s.loadPlan(class)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, lp.plan, lp.result, pk)
}

// ParseQuery parses src with the classes of sch as query sources.
func ParseQuery(sch *schema.Schema, src string, vars map[string]any) (expr.Node, error) {
	n, err := expr.Parse(src, expr.ParseOptions{
		Vars: vars,
		IsClass: func(name string) bool {
			_, ok := sch.Class(name)
			return ok
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return n, nil
}
