package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/engine"
	"github.com/roach88/sooq/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Vars       []string
	Migrations string
}

// RunResult is the output of the run command.
type RunResult struct {
	Query string `json:"query"`
	Value any    `json:"value"`
}

// Text renders lists one element per line followed by a row count.
func (r RunResult) Text() string {
	list, ok := r.Value.([]any)
	if !ok {
		return fmt.Sprintln(r.Value)
	}
	var b strings.Builder
	for _, v := range list {
		fmt.Fprintln(&b, v)
	}
	fmt.Fprintf(&b, "(%d rows)\n", len(list))
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Execute a query against a database",
		Long: `Execute a lambda query against the configured data source and print
the result: a list, one element, a count, a boolean or an aggregate.

With --migrations, the goose migrations in the given directory are applied
first (sqlite, postgres, mysql and mssql only).

Example:
  sooq run --schema contacts.yaml --dsn contacts.db 'Contact.Count(c => c.Active)'
  sooq run --dsn :memory: --migrations ./migrations 'Contact.First()'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "query variable name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Migrations, "migrations", "", "goose migrations directory to apply before running")
	return cmd
}

func runQuery(opts *RunOptions, src string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := contextOf(cmd)

	d, err := opts.dialect()
	if err != nil {
		return f.Fail("invalid dialect", err)
	}
	vars, err := parseVars(opts.Vars)
	if err != nil {
		return f.Fail("invalid variables", err)
	}
	if opts.Config.DSN == "" {
		msg := "no data source: set --dsn, SOOQ_DSN or dsn in the config file"
		_ = f.Error(ErrCodeCommand, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	sch, err := opts.loadSchema(f)
	if err != nil {
		return err
	}

	opts.Logger.Info("opening database", "dialect", d.Name)
	st, err := store.OpenDialect(d, opts.Config.DSN, store.WithLogger(opts.Logger))
	if err != nil {
		return f.Fail("failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.Migrations != "" {
		if _, err := os.Stat(opts.Migrations); err != nil {
			return f.Fail("migrations directory not found", err)
		}
		if err := st.Migrate(ctx, os.DirFS(opts.Migrations), "."); err != nil {
			return f.Fail("failed to apply migrations", err)
		}
	}

	s := engine.New(st, sch, engine.WithLogger(opts.Logger))
	v, err := s.Run(ctx, src, vars)
	if err != nil {
		return f.Fail("query failed", err)
	}
	return f.Success(RunResult{Query: src, Value: v})
}
