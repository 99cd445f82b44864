package results

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for result operations.
var (
	ErrNotFound        = errors.New("result not found")
	ErrValidation      = errors.New("invalid analysis result")
	ErrUnknownDocument = errors.New("document does not exist")
	ErrStorage         = errors.New("result storage unavailable")
)

// ValidationError rejects a malformed or conflicting analysis result.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var errConflictingRedelivery = &ValidationError{
	Field:  "document_id",
	Reason: "already has a result with different content",
}

// MapHTTPStatus maps result domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
