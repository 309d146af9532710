package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     string // Step name
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Recorded SQL for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (step %s)\n", e.Type, e.Step)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "  SQL: %s\n", e.SQL)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against a step result and
// returns the failure messages. An unexpected query error fails every
// assertion other than error_code.
func EvaluateAssertions(sr StepResult, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(sr, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(sr StepResult, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Step: sr.Name, Type: a.Type, Expected: expected, Actual: actual, SQL: sr.SQL}
	}

	if a.Type == AssertErrorCode {
		if !sr.Failed() {
			return fail("error "+a.Code, fmt.Sprintf("result %v", sr.Value))
		}
		if sr.ErrorCode != a.Code {
			return fail("error "+a.Code, fmt.Sprintf("error %s: %s", sr.ErrorCode, sr.Error))
		}
		return nil
	}
	if a.Type == AssertSQLContains {
		if !strings.Contains(sr.SQL, a.Text) {
			return fail(fmt.Sprintf("SQL containing %q", a.Text), fmt.Sprintf("%q", sr.SQL))
		}
		return nil
	}
	if sr.Failed() {
		return fail(a.Type, "error: "+sr.Error)
	}

	switch a.Type {
	case AssertResultEquals:
		want := normalize(a.Value)
		if !valuesEqual(want, sr.Value) {
			return fail(fmt.Sprintf("%v", want), fmt.Sprintf("%v", sr.Value))
		}
	case AssertResultCount:
		list, ok := sr.Value.([]any)
		if !ok {
			return fail(fmt.Sprintf("list of %d", a.Count), fmt.Sprintf("%T", sr.Value))
		}
		if len(list) != a.Count {
			return fail(fmt.Sprintf("%d elements", a.Count), fmt.Sprintf("%d elements", len(list)))
		}
	case AssertResultContains:
		if !containsFields(sr.Value, normalize(a.Fields).(map[string]any)) {
			return fail(fmt.Sprintf("element with %s", formatFields(a.Fields)), fmt.Sprintf("%v", sr.Value))
		}
	}
	return nil
}

// containsFields reports whether v, or an element of v when v is a list,
// is a map holding every expected field (subset match).
func containsFields(v any, want map[string]any) bool {
	if list, ok := v.([]any); ok {
		for _, e := range list {
			if containsFields(e, want) {
				return true
			}
		}
		return false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for k, expected := range want {
		actual, ok := m[k]
		if !ok || !valuesEqual(expected, actual) {
			return false
		}
	}
	return true
}

// valuesEqual compares normalized values. Numbers compare by value, so a
// YAML 702 matches a float 702.0.
func valuesEqual(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			if w, ok := y[k]; !ok || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// formatFields renders fields sorted by key for stable messages.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, ", ")
}
