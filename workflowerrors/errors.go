// Package workflowerrors provides the stable error kinds the workflow
// surfaces to callers (spec §7), preserving cause chains the way
// toolregistry/toolerrors.ToolError does upstream so retries and nested
// failures keep their full diagnostic context across errors.Is/As.
package workflowerrors

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-visible error classification.
type Kind string

const (
	KindPlanningError         Kind = "planning_error"
	KindToolNotFound          Kind = "tool_not_found"
	KindToolTimeout           Kind = "tool_timeout"
	KindToolFailed            Kind = "tool_failed"
	KindParamSynthesisFailure Kind = "param_synthesis_failure"
	KindValidationFailed      Kind = "validation_failed"
	KindThreadNotFound        Kind = "thread_not_found"
	KindDuplicateTool         Kind = "duplicate_tool"
)

// Error is a structured workflow failure. Cause links to an underlying
// workflowerrors.Error (when the underlying error already carries one) or
// wraps an arbitrary error, enabling errors.Is/errors.As chains across
// retries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf formats a message and constructs an Error with the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that chains cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is supports errors.Is(err, workflowerrors.New(kind, "")) by comparing kinds
// only, so callers can test `errors.Is(err, workflowerrors.KindErr(KindToolTimeout))`.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindErr returns a zero-message Error usable as an errors.Is target to
// match any error of the given kind.
func KindErr(kind Kind) *Error { return &Error{Kind: kind} }

// As reports whether err (or any error in its chain) is a *Error, and if so
// returns it along with true.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a workflowerrors.Error,
// otherwise the empty Kind.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
