package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/ir"
	"github.com/roach88/sooq/internal/schema"
)

// SchemaSummary describes a compiled mapping.
type SchemaSummary struct {
	Path      string            `json:"path"`
	Classes   []ClassSummary    `json:"classes"`
	Relations []RelationSummary `json:"relations,omitempty"`
}

// ClassSummary describes one mapped class.
type ClassSummary struct {
	Name          string         `json:"name"`
	Parent        string         `json:"parent,omitempty"`
	Abstract      bool           `json:"abstract,omitempty"`
	Tables        []string       `json:"tables"`
	Key           []string       `json:"key"`
	Selector      string         `json:"selector,omitempty"`
	SelectorValue string         `json:"selector_value,omitempty"`
	Fields        []FieldSummary `json:"fields"`
	Collections   []string       `json:"collections,omitempty"`
}

// FieldSummary describes one field.
type FieldSummary struct {
	Name       string `json:"name"`
	Table      string `json:"table"`
	Column     string `json:"column"`
	Kind       string `json:"kind"`
	Nullable   bool   `json:"nullable,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	References string `json:"references,omitempty"`
}

// RelationSummary describes a many-to-many link table.
type RelationSummary struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Text renders one block per class.
func (s SchemaSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d classes, %d relations\n", s.Path, len(s.Classes), len(s.Relations))
	for _, c := range s.Classes {
		fmt.Fprintf(&b, "\n%s", c.Name)
		if c.Parent != "" {
			fmt.Fprintf(&b, " : %s", c.Parent)
		}
		if c.Abstract {
			b.WriteString(" (abstract)")
		}
		if c.Selector != "" {
			fmt.Fprintf(&b, " [%s", c.Selector)
			if c.SelectorValue != "" {
				fmt.Fprintf(&b, " = %s", c.SelectorValue)
			}
			b.WriteString("]")
		}
		fmt.Fprintf(&b, "\n  tables: %s\n", strings.Join(c.Tables, ", "))

		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, f := range c.Fields {
			var flags []string
			if f.PrimaryKey {
				flags = append(flags, "pk")
			}
			if f.Nullable {
				flags = append(flags, "null")
			}
			if f.References != "" {
				flags = append(flags, "-> "+f.References)
			}
			fmt.Fprintf(tw, "  %s\t%s.%s\t%s\t%s\n", f.Name, f.Table, f.Column, f.Kind, strings.Join(flags, " "))
		}
		tw.Flush()
		if len(c.Collections) > 0 {
			fmt.Fprintf(&b, "  collections: %s\n", strings.Join(c.Collections, ", "))
		}
	}
	if len(s.Relations) > 0 {
		b.WriteString("\nrelations:\n")
		for _, r := range s.Relations {
			fmt.Fprintf(&b, "  %s (%s: %s, %s)\n", r.Name, r.Table, r.Left, r.Right)
		}
	}
	return b.String()
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [path]",
		Short: "Compile, validate and summarize a mapping document",
		Long: `Compile a YAML or CUE mapping document, report every validation error,
and summarize the resolved classes, tables, fields and relations.

The path defaults to the configured mapping (--schema, SOOQ_SCHEMA).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.Config.SchemaPath = args[0]
			}
			return runSchema(rootOpts, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	sch, err := opts.loadSchema(f)
	if err != nil {
		return err
	}
	return f.Success(summarize(opts.Config.SchemaPath, sch))
}

func summarize(path string, sch *schema.Schema) SchemaSummary {
	out := SchemaSummary{Path: path, Classes: []ClassSummary{}}
	for _, c := range sch.Classes() {
		cs := ClassSummary{Name: c.Name, Abstract: c.Abstract}
		if p := c.Parent(); p != nil {
			cs.Parent = p.Name
		}
		for _, t := range c.Tables() {
			cs.Tables = append(cs.Tables, t.Name)
		}
		for _, f := range c.PrimaryKey() {
			cs.Key = append(cs.Key, f.Name)
		}
		if sel := c.Selector(); sel != nil {
			cs.Selector = sel.Name
		}
		if c.SubclassSelectorValue != nil {
			cs.SelectorValue = ir.FormatValue(c.SubclassSelectorValue)
		}
		for _, f := range c.Fields() {
			cs.Fields = append(cs.Fields, FieldSummary{
				Name:       f.Name,
				Table:      f.Table().Name,
				Column:     f.Column,
				Kind:       f.Kind.String(),
				Nullable:   f.Nullable,
				PrimaryKey: f.PrimaryKey,
				References: f.References,
			})
		}
		for _, col := range c.OwnCollections {
			cs.Collections = append(cs.Collections, fmt.Sprintf("%s (%s)", col.Name, col.Class))
		}
		out.Classes = append(out.Classes, cs)
	}
	for _, r := range sch.Relations() {
		out.Relations = append(out.Relations, RelationSummary{
			Name:  r.Name,
			Table: r.Table,
			Left:  r.Left.Column + " -> " + r.Left.Class,
			Right: r.Right.Column + " -> " + r.Right.Class,
		})
	}
	return out
}
