package shared

import (
	"errors"
	"fmt"
)

// Category buckets kernel errors for transport mapping and logging.
type Category string

const (
	// CategoryValidation covers malformed or impossible input.
	CategoryValidation Category = "validation"
	// CategoryConflict covers operations illegal for the current state.
	CategoryConflict Category = "conflict"
	// CategoryPolicy covers operations blocked by tenant configuration.
	CategoryPolicy Category = "policy"
	// CategoryInvariant covers broken bookkeeping guarantees.
	CategoryInvariant Category = "invariant"
)

// Error is a coded error shared across kernel modules. Sentinel values are
// declared in the package owning the failing operation; two errors match
// when their codes match, so wrapped copies still satisfy errors.Is.
type Error struct {
	Code     string
	Category Category
	Message  string
}

// NewError constructs a coded error.
func NewError(code string, category Category, message string) *Error {
	return &Error{Code: code, Category: category, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Invalidf builds a validation error from a format string.
func Invalidf(format string, args ...any) *Error {
	return &Error{Code: "VALIDATION", Category: CategoryValidation, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the kernel error code, or "" for uncoded errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CategoryOf extracts the error category; uncoded errors report as invariant.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInvariant
}

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
