package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of queries run against one database, each with
// assertions on its result, its error or its SQL.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a mapping document (.yaml or .cue). Empty means the
	// built-in Contact fixture mapping. Relative paths are resolved against
	// the scenario file's directory.
	Schema string `yaml:"schema,omitempty"`

	// Migrations is a goose directory applied to a fresh database. Empty
	// means the built-in fixture migrations.
	Migrations string `yaml:"migrations,omitempty"`

	// Dialect selects the SQL recorded for each step. The queries always
	// execute on SQLite. Default: sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	// Vars are free identifiers visible to every step.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step is one query and its assertions.
type Step struct {
	// Name identifies the step in results and failure messages.
	Name string `yaml:"name"`

	// Query is a lambda chain such as Contact.Where(c => c.Active).Count().
	Query string `yaml:"query"`

	// Vars extend (and override) the scenario's vars.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Assertions validate the step's outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the outcome of a step.
type Assertion struct {
	// Type specifies the assertion type:
	// - "result_equals": the result equals Value
	// - "result_count": the result is a list of Count elements
	// - "result_contains": the result (or an element of it) has the Fields
	// - "error_code": the step failed with taxonomy code Code
	// - "sql_contains": the recorded SQL contains Text
	Type string `yaml:"type"`

	// Value is the expected result (result_equals).
	Value any `yaml:"value,omitempty"`

	// Count is the expected list length (result_count).
	Count int `yaml:"count,omitempty"`

	// Fields are expected member values, subset match (result_contains).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Code is the expected error code, e.g. CARDINALITY (error_code).
	Code string `yaml:"code,omitempty"`

	// Text is an expected SQL fragment (sql_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertResultEquals   = "result_equals"
	AssertResultCount    = "result_count"
	AssertResultContains = "result_contains"
	AssertErrorCode      = "error_code"
	AssertSQLContains    = "sql_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Schema and migration paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(base, scenario.Schema)
	}
	if scenario.Migrations != "" && !filepath.IsAbs(scenario.Migrations) {
		scenario.Migrations = filepath.Join(base, scenario.Migrations)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Schema != "" {
		if _, err := os.Stat(s.Schema); err != nil {
			return fmt.Errorf("schema file not found: %s", s.Schema)
		}
	}
	if s.Migrations != "" {
		if _, err := os.Stat(s.Migrations); err != nil {
			return fmt.Errorf("migrations directory not found: %s", s.Migrations)
		}
	}

	seen := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate name %q", i, step.Name)
		}
		seen[step.Name] = true
		if step.Query == "" {
			return fmt.Errorf("steps[%d]: query is required", i)
		}
		if len(step.Assertions) == 0 {
			return fmt.Errorf("steps[%d]: assertions list is required and must be non-empty", i)
		}
		for j := range step.Assertions {
			if err := validateAssertion(i, j, &step.Assertions[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(step, index int, a *Assertion) error {
	where := fmt.Sprintf("steps[%d].assertions[%d]", step, index)
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", where)
	}

	switch a.Type {
	case AssertResultEquals:
	case AssertResultCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for result_count", where)
		}
	case AssertResultContains:
		if len(a.Fields) == 0 {
			return fmt.Errorf("%s: fields is required for result_contains", where)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("%s: code is required for error_code", where)
		}
	case AssertSQLContains:
		if a.Text == "" {
			return fmt.Errorf("%s: text is required for sql_contains", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}
