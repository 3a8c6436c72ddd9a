package aft

import (
	"errors"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies an error when it crosses a process boundary (raft
// results, rpc replies).
type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: operation executed successfully
	RetCInternalError                       // 1: operation failed due to an internal error
	RetCUnsupportedOperation                // 2: receiver does not implement the operation
	RetCInvalidOperation                    // 3: operation is malformed (e.g. illegal type)
	RetCValidationFailed                    // 4: operation was rejected by validation
	RetCTimeout                             // 5: operation did not complete in time
	RetCTestFailed                          // 6: node or entry test did not hold
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCValidationFailed:
		return "ValidationFailed"
	case RetCTimeout:
		return "Timeout"
	case RetCTestFailed:
		return "TestFailed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message. It is the form errors take after
// crossing a process boundary.
type Error struct {
	Code   RetCode `json:"code" yaml:"code"`                         // The return code
	Msg    string  `json:"msg" yaml:"msg"`                           // The error message
	Reason string  `json:"reason,omitempty" yaml:"reason,omitempty"` // text of the specific sentinel, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("AFTError (code %s): %s", e.Code, e.Msg)
}

// Is lets errors.Is match an *Error against the sentinel of its code and
// against the specific sentinel named by Reason.
func (e *Error) Is(target error) bool {
	if e.Reason != "" && target != nil && sentinels[e.Reason] == target {
		return true
	}
	switch e.Code {
	case RetCValidationFailed:
		return target == ErrValidation
	case RetCUnsupportedOperation:
		return target == ErrUnsupported
	case RetCTimeout:
		return target == ErrTimeout
	case RetCInvalidOperation:
		return target == ErrIllegalType
	case RetCTestFailed:
		return target == ErrTestFailed
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf maps err to the return code it travels as.
func CodeOf(err error) RetCode {
	var e *Error
	switch {
	case err == nil:
		return RetCSuccess
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, ErrValidation):
		return RetCValidationFailed
	case errors.Is(err, ErrIllegalType):
		return RetCInvalidOperation
	case errors.Is(err, ErrUnsupported):
		return RetCUnsupportedOperation
	case errors.Is(err, ErrTimeout):
		return RetCTimeout
	case errors.Is(err, ErrTestFailed):
		return RetCTestFailed
	default:
		return RetCInternalError
	}
}

// ToError converts any error into an *Error, keeping an existing one as is.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	out := NewError(CodeOf(err), err.Error())
	for _, s := range sentinelList {
		if s != ErrValidation && errors.Is(err, s) {
			out.Reason = s.Error()
			break
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Sentinels
// --------------------------------------------------------------------------

var (
	// ErrIllegalType is returned when a node type was never registered.
	ErrIllegalType = errors.New("illegal type for sandbox")
	// ErrValidation is the parent of every validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownToken is returned for references to tokens that do not exist.
	ErrUnknownToken = errors.New("unknown token")
	// ErrUnknownEntry is returned for references to entries that do not exist.
	ErrUnknownEntry = errors.New("unknown entry")
	// ErrUnknownGroup is returned for nodes assigned to a group that was
	// never created.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrPortOutOfRange is returned for port nodes whose index is beyond
	// the configured maximum.
	ErrPortOutOfRange = errors.New("port index out of range")
	// ErrNotContainer is returned when an entry names a parent that cannot
	// own entries.
	ErrNotContainer = errors.New("parent is not a container")
	// ErrTypeChanged is returned when an existing token is replaced by a
	// node of another type.
	ErrTypeChanged = errors.New("token replaced by a node of another type")
	// ErrOutOfOrderRemove is returned when a remove would leave entries
	// without their container or referring to a removed node.
	ErrOutOfOrderRemove = errors.New("out of order remove")
	// ErrUnsupported is returned by receivers that do not implement an
	// operation kind.
	ErrUnsupported = errors.New("operation not supported")
	// ErrTimeout is returned when a wait elapsed before completion.
	ErrTimeout = errors.New("operation timed out")
	// ErrTestFailed is recorded by node and entry tests that do not hold.
	ErrTestFailed = errors.New("test failed")
)

var sentinelList = []error{
	ErrIllegalType, ErrValidation, ErrUnknownToken, ErrUnknownEntry, ErrUnknownGroup, ErrPortOutOfRange,
	ErrNotContainer, ErrTypeChanged, ErrOutOfOrderRemove, ErrUnsupported, ErrTimeout, ErrTestFailed,
}

var sentinels = func() map[string]error {
	m := make(map[string]error, len(sentinelList))
	for _, s := range sentinelList {
		m[s.Error()] = s
	}
	return m
}()

// ValidationError describes why an insert or remove was rejected.
type ValidationError struct {
	Token       NodeToken // offending node, TokenNone if not node related
	Reason      error     // specific sentinel, e.g. ErrUnknownToken
	Diagnostics string    // text written to the diagnostic sink
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrValidation.Error())
	if e.Token != TokenNone {
		fmt.Fprintf(&sb, " for token %d", e.Token)
	}
	if e.Reason != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Reason.Error())
	}
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		sb.WriteString(" (")
		sb.WriteString(strings.ReplaceAll(d, "\n", "; "))
		sb.WriteString(")")
	}
	return sb.String()
}

// Unwrap exposes both ErrValidation and the specific reason.
func (e *ValidationError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Reason}
}

func invalid(token NodeToken, reason error, diag string) *ValidationError {
	return &ValidationError{Token: token, Reason: reason, Diagnostics: diag}
}
