package engine

import (
	"errors"
	"fmt"
)

// ExecError reports a statement the database rejected or whose rows could
// not be read.
//
// Translation errors never take this form: they carry the ir taxonomy
// (ir.IsUnsupported, ir.IsChainState, ...) and are raised before any
// statement runs. Cardinality and empty-aggregate failures are ir errors
// too, since they describe the result, not the database.
type ExecError struct {
	// SQL is the bound statement text.
	SQL string

	// Err is the driver or scan error.
	Err error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.SQL, e.Err)
}

// Unwrap returns the driver error.
func (e *ExecError) Unwrap() error { return e.Err }

// IsExecError reports whether err is or wraps an ExecError.
// Uses errors.As to handle wrapped errors.
func IsExecError(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}
