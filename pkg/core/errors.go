// Package core holds the shared types of the harness: error taxonomy,
// geometry and platform identifiers. Every other package depends on core;
// core depends on nothing but the standard library.
package core

import (
	"fmt"
)

// ErrorCategory classifies a failure for retry and reporting decisions.
type ErrorCategory int

const (
	CategoryNone          ErrorCategory = iota
	CategoryNotFound                    // no element/event matched within budget
	CategoryMisconfig                   // invalid argument combination, never retried
	CategoryProtocol                    // the underlying automation call itself failed
	CategoryPartialMatch                // found by name but payload/field requirements unmet
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryNotFound:
		return "not_found"
	case CategoryMisconfig:
		return "misconfiguration"
	case CategoryProtocol:
		return "protocol"
	case CategoryPartialMatch:
		return "partial_match"
	default:
		return "unknown"
	}
}

// HarnessError is a structured error with category, machine-readable code and
// diagnostic details. Details carry the full context required for debugging a
// failed search (queries tried, scrolls performed, events scanned).
type HarnessError struct {
	Category ErrorCategory
	Code     string // element_not_found, event_deadline, invalid_scroll_capacity, ...
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface.
func (e *HarnessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// Is matches two harness errors by code, so callers can test against the
// predefined sentinels with errors.Is.
func (e *HarnessError) Is(target error) bool {
	t, ok := target.(*HarnessError)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *HarnessError) WithCause(cause error) *HarnessError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message.
func (e *HarnessError) WithMessage(format string, args ...interface{}) *HarnessError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithDetails returns a copy of the error with additional details merged in.
func (e *HarnessError) WithDetails(details map[string]interface{}) *HarnessError {
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := *e
	c.Details = merged
	return &c
}

// Predefined errors. Callers derive concrete failures from these with
// WithMessage/WithDetails/WithCause so that errors.Is keeps working.
var (
	ErrElementNotFound = &HarnessError{
		Category: CategoryNotFound,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementNotVisible = &HarnessError{
		Category: CategoryNotFound,
		Code:     "element_not_visible",
		Message:  "element found but not visible",
	}
	ErrOrdinalOutOfRange = &HarnessError{
		Category: CategoryNotFound,
		Code:     "ordinal_out_of_range",
		Message:  "fewer elements matched than the requested ordinal",
	}
	ErrEventDeadline = &HarnessError{
		Category: CategoryNotFound,
		Code:     "event_deadline",
		Message:  "no matching event arrived before the deadline",
	}
	ErrNoMatchingItem = &HarnessError{
		Category: CategoryPartialMatch,
		Code:     "no_matching_item",
		Message:  "event arrived but no item matched the pattern",
	}
	ErrItemMissingName = &HarnessError{
		Category: CategoryPartialMatch,
		Code:     "item_missing_name",
		Message:  "matched item has no name field",
	}
	ErrPayloadMismatch = &HarnessError{
		Category: CategoryPartialMatch,
		Code:     "payload_mismatch",
		Message:  "event found by name but payload did not satisfy the pattern",
	}
	ErrInvalidScrollCapacity = &HarnessError{
		Category: CategoryMisconfig,
		Code:     "invalid_scroll_capacity",
		Message:  "scroll capacity must be in (0, 1]",
	}
	ErrInvalidOption = &HarnessError{
		Category: CategoryMisconfig,
		Code:     "invalid_option",
		Message:  "invalid option combination",
	}
	ErrProtocol = &HarnessError{
		Category: CategoryProtocol,
		Code:     "protocol_failure",
		Message:  "automation protocol call failed",
	}
)
