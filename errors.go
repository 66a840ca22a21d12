package funcall

import (
	"errors"
)

// Stage sentinels for the invocation pipeline. Every failed invocation
// surfaces as a *FunctionCallError wrapping exactly one of these; use
// errors.Is to branch on the cause.
var (
	ErrNotFound          = errors.New("function not found")
	ErrInvalidJSON       = errors.New("arguments are not valid JSON")
	ErrSchemaMismatch    = errors.New("arguments do not match the schema")
	ErrSignatureMismatch = errors.New("arguments do not match the function signature")
	ErrInvocationFailed  = errors.New("function call failed")
)

// FunctionCallError is the single error type crossing the invocation
// boundary. Its message is the stage sentinel's fixed vocabulary plus a
// terse detail safe to feed back to the LLM for self-correction; internal
// failures (panics, the callable's own errors) are logged in full and never
// leak their detail here.
type FunctionCallError struct {
	stage  error
	detail string
}

func newCallError(stage error, detail string) *FunctionCallError {
	return &FunctionCallError{stage: stage, detail: detail}
}

func (e *FunctionCallError) Error() string {
	if e.detail == "" {
		return e.stage.Error()
	}
	return e.stage.Error() + ": " + e.detail
}

// Unwrap exposes the stage sentinel for errors.Is.
func (e *FunctionCallError) Unwrap() error { return e.stage }

// IsFunctionCallError reports whether err is or wraps a *FunctionCallError.
func IsFunctionCallError(err error) bool {
	var fce *FunctionCallError
	return errors.As(err, &fce)
}
