package model

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched (via errors.Is) by every rejected-input error:
// empty series, malformed observations, out-of-range horizon.
var ErrInvalidInput = errors.New("invalid input")

// ErrSeriesNotFound is returned by a SeriesSource that holds no bars for a symbol.
var ErrSeriesNotFound = errors.New("series not found")

// InputError describes why caller-supplied input was rejected.
// No partial computation is attempted once one is returned.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports a match against ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInputError builds an InputError with a formatted reason.
func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
