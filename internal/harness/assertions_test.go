package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAssertions(t *testing.T) {
	list := StepResult{
		Name: "names",
		SQL:  "SELECT t0.name FROM Contact t0 LIMIT 2",
		Value: []any{
			map[string]any{"$class": "Contact", "ContactId": int64(1), "Name": "Mary Manager"},
			map[string]any{"$class": "Contact", "ContactId": int64(2), "Name": "Ed Employee"},
		},
	}
	scalar := StepResult{Name: "sum", Value: 702.0}
	failed := StepResult{Name: "single", Error: "CARDINALITY: sequence contains more than one element", ErrorCode: "CARDINALITY"}

	tests := []struct {
		name   string
		result StepResult
		a      Assertion
		pass   bool
	}{
		{"equals number across int and float", scalar, Assertion{Type: AssertResultEquals, Value: 702}, true},
		{"equals number mismatch", scalar, Assertion{Type: AssertResultEquals, Value: 703}, false},
		{"equals list", StepResult{Value: []any{"a", int64(2)}}, Assertion{Type: AssertResultEquals, Value: []any{"a", 2}}, true},
		{"equals list length mismatch", StepResult{Value: []any{"a"}}, Assertion{Type: AssertResultEquals, Value: []any{"a", "b"}}, false},
		{"equals nil", StepResult{}, Assertion{Type: AssertResultEquals}, true},
		{"count", list, Assertion{Type: AssertResultCount, Count: 2}, true},
		{"count mismatch", list, Assertion{Type: AssertResultCount, Count: 3}, false},
		{"count of scalar", scalar, Assertion{Type: AssertResultCount, Count: 1}, false},
		{"contains element", list, Assertion{Type: AssertResultContains, Fields: map[string]any{"ContactId": 2, "$class": "Contact"}}, true},
		{"contains no element", list, Assertion{Type: AssertResultContains, Fields: map[string]any{"ContactId": 3}}, false},
		{"contains single map", StepResult{Value: map[string]any{"Key": "Customer", "Count": int64(4)}}, Assertion{Type: AssertResultContains, Fields: map[string]any{"Count": 4}}, true},
		{"sql contains", list, Assertion{Type: AssertSQLContains, Text: "LIMIT 2"}, true},
		{"sql missing", list, Assertion{Type: AssertSQLContains, Text: "OFFSET"}, false},
		{"error code", failed, Assertion{Type: AssertErrorCode, Code: "CARDINALITY"}, true},
		{"wrong error code", failed, Assertion{Type: AssertErrorCode, Code: "CHAIN_STATE"}, false},
		{"expected error but succeeded", scalar, Assertion{Type: AssertErrorCode, Code: "CARDINALITY"}, false},
		{"unexpected error", failed, Assertion{Type: AssertResultEquals, Value: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(tt.result, []Assertion{tt.a})
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				assert.Len(t, errs, 1)
			}
		})
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Step: "count", Type: AssertResultEquals, Expected: "7", Actual: "6", SQL: "SELECT COUNT(*) FROM Contact t0"}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: result_equals (step count)")
	assert.Contains(t, msg, "Expected: 7")
	assert.Contains(t, msg, "Actual: 6")
	assert.Contains(t, msg, "SQL: SELECT COUNT(*)")
}

func TestNormalize(t *testing.T) {
	got := normalize(map[string]any{
		"n":    3,
		"list": []any{int32(1), float32(1.5)},
	})
	assert.Equal(t, map[string]any{
		"n":    int64(3),
		"list": []any{int64(1), 1.5},
	}, got)
}
