package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode categorizes validation errors.
type ErrorCode string

const (
	// ErrCodeUnresolved indicates a Named type, global or label that cannot be found.
	ErrCodeUnresolved ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeTypeMismatch indicates two types failed to unify.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeKindViolation indicates an lvalue where an rvalue was required, or the reverse.
	ErrCodeKindViolation ErrorCode = "KIND_VIOLATION"

	// ErrCodeStackMismatch indicates a live stack that disagrees with a declared stack shape.
	ErrCodeStackMismatch ErrorCode = "STACK_MISMATCH"

	// ErrCodeUnsupported indicates a construct the validator does not handle yet.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeMalformed indicates a structural defect: duplicate labels, bad
	// nesting ordinals, stack underflow, out of range indices.
	ErrCodeMalformed ErrorCode = "MALFORMED"
)

// ErrUnsupported matches every error with ErrCodeUnsupported under errors.Is.
var ErrUnsupported = errors.New("not yet supported")

// Error is a validation failure.
//
// Function and Location are filled in by the function driver; errors raised
// while unifying types carry only Code, Message, Expected and Actual.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Function is the path of the function being checked.
	Function string

	// Location is the index path of the offending block item, outermost first.
	Location []int

	// Expected and Actual describe the two sides of a mismatch, if any.
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&sb, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	if e.Function != "" {
		fmt.Fprintf(&sb, " [fn=%s", e.Function)
		if len(e.Location) > 0 {
			fmt.Fprintf(&sb, ", at=%s", e.Where())
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Where formats Location as dotted item indices, e.g. "4.1.0".
func (e *Error) Where() string {
	parts := make([]string, len(e.Location))
	for i, n := range e.Location {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Is reports whether target is ErrUnsupported and e is an unsupported construct.
func (e *Error) Is(target error) bool {
	return target == ErrUnsupported && e.Code == ErrCodeUnsupported
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func mismatch(code ErrorCode, msg string, expected, actual fmt.Stringer) *Error {
	return &Error{Code: code, Message: msg, Expected: str(expected), Actual: str(actual)}
}

func str(s fmt.Stringer) string {
	if s == nil {
		return "<nil>"
	}
	return s.String()
}

func unsupported(format string, args ...any) *Error {
	return newError(ErrCodeUnsupported, format, args...)
}

func malformed(format string, args ...any) *Error {
	return newError(ErrCodeMalformed, format, args...)
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsTypeMismatch returns true if err is a type unification failure.
func IsTypeMismatch(err error) bool { return CodeOf(err) == ErrCodeTypeMismatch }

// IsKindViolation returns true if err is an lvalue/rvalue discipline failure.
func IsKindViolation(err error) bool { return CodeOf(err) == ErrCodeKindViolation }

// IsStackMismatch returns true if err is a stack shape failure.
func IsStackMismatch(err error) bool { return CodeOf(err) == ErrCodeStackMismatch }

// IsUnresolved returns true if err is an unresolved reference.
func IsUnresolved(err error) bool { return CodeOf(err) == ErrCodeUnresolved }

// IsMalformed returns true if err is a structural defect.
func IsMalformed(err error) bool { return CodeOf(err) == ErrCodeMalformed }
