package harness

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name  string `json:"name"`
	Query string `json:"query"`

	// SQL is the converted statement in wire format for the scenario's
	// dialect. Empty when translation failed.
	SQL string `json:"sql,omitempty"`

	// Value is the normalized query result: objects become maps, integers
	// int64, times RFC 3339 strings.
	Value any `json:"value"`

	// ErrorCode is the taxonomy code of a failed step ("" for errors
	// outside the taxonomy).
	ErrorCode string `json:"error_code,omitempty"`

	// Error is the message of a failed step.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the step's query returned an error.
func (r *StepResult) Failed() bool { return r.Error != "" }

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion of every step holds.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Step returns the result of the named step.
func (r *Result) Step(name string) (*StepResult, bool) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], true
		}
	}
	return nil, false
}
