package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/store"
)

// DialectInfo describes one registered dialect.
type DialectInfo struct {
	Name                string `json:"name"`
	Driver              string `json:"driver"`
	RowLimit            string `json:"row_limit"`
	Placeholder         string `json:"placeholder"`
	Quote               string `json:"quote"`
	MaxIdentLength      int    `json:"max_ident_length"`
	LegacyOuterJoin     bool   `json:"legacy_outer_join"`
	AverageRequiresCast bool   `json:"average_requires_cast"`
	Concat              string `json:"concat"`
	Migrations          bool   `json:"migrations"`
}

// DialectList is the output of the dialects command.
type DialectList []DialectInfo

// Text renders the list as an aligned table.
func (l DialectList) Text() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDRIVER\tROW LIMIT\tPARAM\tQUOTE\tMAX IDENT\tCONCAT\tMIGRATIONS")
	for _, d := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			d.Name, d.Driver, d.RowLimit, d.Placeholder, d.Quote, d.MaxIdentLength, d.Concat, yesNo(d.Migrations))
	}
	tw.Flush()
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dialects",
		Short:         "List the supported SQL dialects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			list, err := listDialects()
			if err != nil {
				return f.Fail("failed to list dialects", err)
			}
			return f.Success(list)
		},
	}
}

func listDialects() (DialectList, error) {
	var out DialectList
	for _, name := range dialect.Names() {
		d, err := dialect.Get(name)
		if err != nil {
			return nil, err
		}
		param, err := d.Rebind("?")
		if err != nil {
			return nil, err
		}
		concat := d.ConcatOperator
		if concat == "" {
			concat = "CONCAT()"
		}
		out = append(out, DialectInfo{
			Name:                d.Name,
			Driver:              d.DriverName,
			RowLimit:            d.RowLimit.String(),
			Placeholder:         param,
			Quote:               string([]byte{d.IdentQuoteOpen, d.IdentQuoteClose}),
			MaxIdentLength:      d.MaxIdentLength,
			LegacyOuterJoin:     d.LegacyOuterJoin,
			AverageRequiresCast: d.AverageRequiresCast,
			Concat:              concat,
			Migrations:          store.SupportsMigrations(d),
		})
	}
	return out, nil
}
