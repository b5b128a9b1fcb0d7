package economy

import (
	"errors"
	"fmt"
)

// Code identifies a business-rule rejection.
type Code string

const (
	CodeCityClosed        Code = "city_closed"
	CodeWrongLocation     Code = "wrong_location"
	CodeCargoFull         Code = "cargo_full"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeUnsoldHere        Code = "unsold_here"
	CodeItemNotFound      Code = "item_not_found"
	CodeInvalidSlot       Code = "invalid_slot"
	CodeEmptySlot         Code = "empty_slot"
)

// PolicyError is an expected rejection. State is unchanged when one is
// returned. Two PolicyErrors match under errors.Is when their codes match, so
// callers compare against the Err* sentinels.
type PolicyError struct {
	Code    Code
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	return ok && t.Code == e.Code
}

var (
	ErrCityClosed        = &PolicyError{Code: CodeCityClosed, Message: "city is closed"}
	ErrWrongLocation     = &PolicyError{Code: CodeWrongLocation, Message: "wrong location"}
	ErrCargoFull         = &PolicyError{Code: CodeCargoFull, Message: "cargo is full"}
	ErrInsufficientFunds = &PolicyError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrUnsoldHere        = &PolicyError{Code: CodeUnsoldHere, Message: "item is not bought here"}
	ErrItemNotFound      = &PolicyError{Code: CodeItemNotFound, Message: "item not found"}
	ErrInvalidSlot       = &PolicyError{Code: CodeInvalidSlot, Message: "invalid cargo space"}
	ErrEmptySlot         = &PolicyError{Code: CodeEmptySlot, Message: "cargo space is empty"}
)

func reject(base *PolicyError, format string, args ...any) error {
	return &PolicyError{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// ErrValidation matches every *ValidationError under errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed administrative input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrCityNotFound   = errors.New("city not found")
)

func notFound(base error, key string) error {
	return fmt.Errorf("%w: %q", base, key)
}
