package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a bad-input failure. It is always fatal to the request
// and never retried or degraded.
type ValidationError struct {
	Message string
	Invalid []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewInvalidConnectors builds the validation error for connector names
// outside the allow list. The message names each offender.
func NewInvalidConnectors(invalid []string) *ValidationError {
	return &ValidationError{
		Message: fmt.Sprintf("Invalid connectors: %s", strings.Join(invalid, ", ")),
		Invalid: invalid,
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AggregationError is a failure in the transform phase itself, not
// attributable to any one provider. Fatal to the request.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }
