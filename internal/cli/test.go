package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sooq/internal/harness"
)

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Errors []string `json:"errors,omitempty"`
}

// TestSummary is the output of the test command.
type TestSummary struct {
	Dir       string            `json:"dir"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
}

// Text renders one line per scenario followed by the totals.
func (s TestSummary) Text() string {
	var b strings.Builder
	for _, sc := range s.Scenarios {
		status := "PASS"
		if !sc.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s (%d steps)\n", status, sc.Name, sc.Steps)
		for _, e := range sc.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed\n", s.Passed, s.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML query scenarios",
		Long: `Run every *.yaml scenario in a directory against an in-memory SQLite
database and check each step's assertions.

Exits 1 when any scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(rootOpts, args[0], cmd)
		},
	}
}

func runTests(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := contextOf(cmd)

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		_ = f.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to load scenarios", err)
	}

	summary := TestSummary{Dir: dir, Scenarios: []ScenarioOutcome{}}
	for _, s := range scenarios {
		f.VerboseLog("running scenario %s", s.Name)
		res, err := harness.Run(ctx, s, harness.WithLogger(opts.Logger))
		if err != nil {
			_ = f.Error(ErrCodeScenario, fmt.Sprintf("scenario %s: %v", s.Name, err), nil)
			return WrapExitError(ExitFailure, "scenario setup failed", err)
		}
		summary.Scenarios = append(summary.Scenarios, ScenarioOutcome{
			Name:   s.Name,
			Pass:   res.Pass,
			Steps:  len(res.Steps),
			Errors: res.Errors,
		})
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if err := f.Success(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}
