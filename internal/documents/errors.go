package documents

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for document operations.
var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already registered under a different task")
	ErrUnknownTask     = errors.New("task or project does not exist")
	ErrInvalidDocument = errors.New("invalid document")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, reason)
}

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrUnknownTask) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrInvalidDocument) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
