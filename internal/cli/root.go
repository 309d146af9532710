package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/compiler"
	"github.com/roach88/sooq/internal/config"
	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/schema"
)

// RootOptions holds global flags for all commands, and the configuration
// resolved from them before any command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	SchemaPath string
	Dialect    string
	DSN        string
	LogLevel   string

	// Config is the merged configuration: file, then environment, then
	// explicitly set flags.
	Config *config.Config

	// Logger writes to stderr at the configured level.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sooq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sooq",
		Short: "sooq - query translation for mapped classes",
		Long: `Translate LINQ-style lambda queries over a class mapping into SQL for
several dialects, and run them against a database.

Example:
  sooq translate --schema contacts.yaml 'Contact.Where(c => c.Active).Count()'
  sooq run --schema contacts.yaml --dsn contacts.db 'Contact.OrderBy(c => c.Name).ToList()'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (forces debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultPath+" when present)")
	flags.StringVar(&opts.SchemaPath, "schema", "", "mapping document (.yaml or .cue)")
	flags.StringVar(&opts.Dialect, "dialect", "", "SQL dialect ("+strings.Join(dialect.Names(), "|")+")")
	flags.StringVar(&opts.DSN, "dsn", "", "data source name for run")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewDialectsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the configuration, applies explicitly set flags on top
// and installs the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.SchemaPath = o.SchemaPath
	}
	if flags.Changed("dialect") {
		cfg.Dialect = o.Dialect
	}
	if flags.Changed("dsn") {
		cfg.DSN = o.DSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("format") {
		cfg.Format = o.Format
	}
	if !isValidFormat(cfg.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", cfg.Format, ValidFormats))
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Format = cfg.Format
	o.Config = cfg

	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// dialect resolves the configured dialect.
func (o *RootOptions) dialect() (*dialect.Dialect, error) {
	return dialect.Get(o.Config.Dialect)
}

// loadSchema compiles the configured mapping document.
func (o *RootOptions) loadSchema(f *OutputFormatter) (*schema.Schema, error) {
	path := o.Config.SchemaPath
	if path == "" {
		msg := "no mapping document: set --schema, " + config.EnvSchema + " or schema in the config file"
		_ = f.Error(ErrCodeCommand, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	f.VerboseLog("Loading mapping %s", path)
	sch, err := compiler.Load(path)
	if err != nil {
		return nil, f.Fail("failed to load mapping", err)
	}
	return sch, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// contextOf returns the command's context, or Background when unset.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseVars decodes repeated name=value flags. Values are typed: integers,
// floats and booleans are recognized, null is nil, and everything else
// (or a quoted value) is a string.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", p)
		}
		vars[name] = varValue(raw)
	}
	return vars, nil
}

func varValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	if raw == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
