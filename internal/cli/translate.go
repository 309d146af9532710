package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/engine"
	"github.com/roach88/sooq/internal/querysql"
	"github.com/roach88/sooq/internal/translate"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Vars []string
}

// TranslateResult is the output of the translate command.
type TranslateResult struct {
	Dialect     string   `json:"dialect"`
	Shape       string   `json:"shape"`
	SQL         string   `json:"sql"`
	Args        []any    `json:"args,omitempty"`
	Wire        string   `json:"wire"`
	Fingerprint string   `json:"fingerprint"`
	Columns     []string `json:"columns"`
}

// Text renders the statement followed by comment lines.
func (r TranslateResult) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.SQL)
	fmt.Fprintf(&b, "-- dialect: %s\n", r.Dialect)
	fmt.Fprintf(&b, "-- shape: %s\n", r.Shape)
	if len(r.Args) > 0 {
		fmt.Fprintf(&b, "-- args: %v\n", r.Args)
	}
	fmt.Fprintf(&b, "-- columns: %s\n", strings.Join(r.Columns, ", "))
	fmt.Fprintf(&b, "-- wire: %s\n", r.Wire)
	fmt.Fprintf(&b, "-- fingerprint: %s\n", r.Fingerprint)
	return b.String()
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <query>",
		Short: "Print the SQL for a query without running it",
		Long: `Translate a lambda query into SQL for the configured dialect.

Prints the executable SQL with its bound arguments, the result shape, the
selected columns and the statement in placeholder wire format.

Example:
  sooq translate --schema contacts.yaml 'Contact.Where(c => c.Name.StartsWith("C")).ToList()'
  sooq translate --dialect mssql --var n=3 'Contact.OrderBy(c => c.Name).Take(n).ToList()'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "query variable name=value (repeatable)")
	return cmd
}

func runTranslate(opts *TranslateOptions, src string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	d, err := opts.dialect()
	if err != nil {
		return f.Fail("invalid dialect", err)
	}
	vars, err := parseVars(opts.Vars)
	if err != nil {
		return f.Fail("invalid variables", err)
	}
	sch, err := opts.loadSchema(f)
	if err != nil {
		return err
	}

	n, err := engine.ParseQuery(sch, src, vars)
	if err != nil {
		return f.Fail("failed to parse query", err)
	}
	plan, err := translate.New(sch).Translate(n)
	if err != nil {
		return f.Fail("failed to translate query", err)
	}
	res, err := querysql.Convert(plan.Query, sch, d)
	if err != nil {
		return f.Fail("failed to convert query", err)
	}
	text, args, err := res.Statement.Bind(d)
	if err != nil {
		return f.Fail("failed to bind statement", err)
	}
	opts.Logger.Debug("translated query", "query", src, "dialect", d.Name, "shape", plan.Shape.String())

	columns := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		columns[i] = c.Name
	}
	return f.Success(TranslateResult{
		Dialect:     d.Name,
		Shape:       plan.Shape.String(),
		SQL:         text,
		Args:        args,
		Wire:        res.Statement.String(),
		Fingerprint: res.Statement.Fingerprint(),
		Columns:     columns,
	})
}
