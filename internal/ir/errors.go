package ir

import (
	"errors"
	"fmt"
)

// Error represents a translation or execution failure in the query pipeline.
//
// Errors are local, deterministic, and non-retryable:
//   - Unsupported construct: an expression or method has no translation rule
//   - Schema resolution: a class, field, or collection is not in the mapping
//   - Chain state: an operation is invalid given the accumulated query
//   - Cardinality: Single found zero or several rows
//   - Empty aggregate: Min/Max/Average over zero rows
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the textual description of the offending expression, method,
	// or type (empty when not applicable).
	Node string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeUnsupported indicates a construct with no translation rule.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_CONSTRUCT"

	// ErrCodeSchemaResolution indicates a name missing from schema metadata.
	ErrCodeSchemaResolution ErrorCode = "SCHEMA_RESOLUTION"

	// ErrCodeChainState indicates an operation invalid for the accumulated chain.
	ErrCodeChainState ErrorCode = "CHAIN_STATE"

	// ErrCodeCardinality indicates Single matched zero or multiple rows.
	ErrCodeCardinality ErrorCode = "CARDINALITY"

	// ErrCodeEmptyAggregate indicates Min/Max/Average over an empty sequence.
	ErrCodeEmptyAggregate ErrorCode = "EMPTY_AGGREGATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unsupported creates an UNSUPPORTED_CONSTRUCT error for the described node.
func Unsupported(node string, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeUnsupported,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
	}
}

// SchemaResolution creates a SCHEMA_RESOLUTION error naming the container
// type and the member that could not be resolved.
func SchemaResolution(container, member string) *Error {
	return &Error{
		Code:    ErrCodeSchemaResolution,
		Message: fmt.Sprintf("%q has no member %q", container, member),
		Node:    container + "." + member,
		Details: map[string]string{"container": container, "member": member},
	}
}

// UnknownClass creates a SCHEMA_RESOLUTION error for a class name.
func UnknownClass(name string) *Error {
	return &Error{
		Code:    ErrCodeSchemaResolution,
		Message: fmt.Sprintf("class %q is not mapped", name),
		Node:    name,
		Details: map[string]string{"class": name},
	}
}

// ChainState creates a CHAIN_STATE error for the named operation.
func ChainState(op string, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeChainState,
		Message: fmt.Sprintf(format, args...),
		Node:    op,
	}
}

// Cardinality creates a CARDINALITY error.
func Cardinality(message string) *Error {
	return &Error{Code: ErrCodeCardinality, Message: message}
}

// EmptyAggregate creates an EMPTY_AGGREGATE error for the named aggregate.
func EmptyAggregate(fn string) *Error {
	return &Error{
		Code:    ErrCodeEmptyAggregate,
		Message: "sequence contains no elements",
		Node:    fn,
	}
}

// CodeOf returns the ErrorCode of err, or "" when err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnsupported returns true if err is an UNSUPPORTED_CONSTRUCT error.
func IsUnsupported(err error) bool {
	return CodeOf(err) == ErrCodeUnsupported
}

// IsSchemaResolution returns true if err is a SCHEMA_RESOLUTION error.
func IsSchemaResolution(err error) bool {
	return CodeOf(err) == ErrCodeSchemaResolution
}

// IsChainState returns true if err is a CHAIN_STATE error.
func IsChainState(err error) bool {
	return CodeOf(err) == ErrCodeChainState
}

// IsCardinality returns true if err is a CARDINALITY error.
func IsCardinality(err error) bool {
	return CodeOf(err) == ErrCodeCardinality
}

// IsEmptyAggregate returns true if err is an EMPTY_AGGREGATE error.
func IsEmptyAggregate(err error) bool {
	return CodeOf(err) == ErrCodeEmptyAggregate
}
