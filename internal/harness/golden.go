package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run: each step's normalized
// value or error code. SQL text is left out so that converter changes do
// not churn result snapshots; sql_contains assertions cover it.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Steps    []SnapshotStep `json:"steps"`
}

// SnapshotStep is one step of a Snapshot.
type SnapshotStep struct {
	Name      string `json:"name"`
	Value     any    `json:"value,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{Scenario: name, Steps: make([]SnapshotStep, len(result.Steps))}
	for i, sr := range result.Steps {
		s.Steps[i] = SnapshotStep{Name: sr.Name, Value: sr.Value, ErrorCode: sr.ErrorCode}
	}
	return s
}

// Marshal renders the snapshot as indented JSON with sorted map keys.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
