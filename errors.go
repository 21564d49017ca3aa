package toolflow

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CodeDuplicateTool is returned when a tool name is registered twice.
	CodeDuplicateTool = "DUPLICATE_TOOL"
	// CodeToolNotFound is returned when dispatch targets an unknown tool.
	CodeToolNotFound = "TOOL_NOT_FOUND"
	// CodeValidation is returned when a request fails validation.
	CodeValidation = "VALIDATION"
	// CodeHandler is returned for business-logic failures inside a handler.
	CodeHandler = "HANDLER"
	// CodeTimeout is returned when a tool invocation exceeds its deadline.
	CodeTimeout = "TIMEOUT"
	// CodeRecursionLimit is returned when nested pipeline dispatches exceed
	// the configured call depth.
	CodeRecursionLimit = "RECURSION_LIMIT"
)

// Error is a structured dispatch error that flows across the registry,
// middleware chain, and pipeline engine without losing its machine-readable
// code.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return CodeHandler
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError creates a structured error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a structured error wrapping a cause. An empty message
// falls back to the cause's message.
func WrapError(code, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails attaches key/value context to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e == nil || len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// ErrDuplicateTool reports a second registration under an existing name.
func ErrDuplicateTool(name string) *Error {
	return &Error{
		Code:    CodeDuplicateTool,
		Message: fmt.Sprintf("tool already registered: %s", name),
		Details: map[string]any{"tool": name},
	}
}

// ErrToolNotFound reports a dispatch against an unregistered name.
func ErrToolNotFound(name string) *Error {
	return &Error{
		Code:    CodeToolNotFound,
		Message: fmt.Sprintf("tool not found: %s", name),
		Details: map[string]any{"tool": name},
	}
}

// ErrValidation reports a caller-supplied request that failed validation.
func ErrValidation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// ErrHandler reports a business-logic failure inside a handler.
func ErrHandler(message string) *Error {
	return &Error{Code: CodeHandler, Message: message}
}

// ErrTimeout reports an invocation that exceeded its deadline.
func ErrTimeout(tool string) *Error {
	return &Error{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("tool timed out: %s", tool),
		Details: map[string]any{"tool": tool},
	}
}

// ErrRecursionLimit reports nested dispatches past the allowed depth.
func ErrRecursionLimit(tool string, depth int) *Error {
	return &Error{
		Code:    CodeRecursionLimit,
		Message: fmt.Sprintf("dispatch depth %d exceeded at tool: %s", depth, tool),
		Details: map[string]any{"tool": tool, "depth": depth},
	}
}

// CodeOf returns the structured code of err, or CodeHandler when err is not
// a *Error. Handler failures that arrive as plain Go errors are classified
// as business-logic failures.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e != nil && strings.TrimSpace(e.Code) != "" {
		return e.Code
	}
	return CodeHandler
}

// IsCallerError reports whether the error code identifies a caller-caused
// failure. The transport layer uses this to pick protocol-level codes.
func IsCallerError(err error) bool {
	switch CodeOf(err) {
	case CodeToolNotFound, CodeValidation, CodeDuplicateTool, CodeRecursionLimit:
		return true
	default:
		return false
	}
}

// asError coerces any error into a *Error, wrapping plain errors as
// handler failures so every failure leaving the dispatcher carries a code.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e
	}
	return WrapError(CodeHandler, err.Error(), err)
}
