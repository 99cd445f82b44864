package clusters

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for cluster operations.
var (
	ErrNotFound        = errors.New("cluster not found")
	ErrDuplicate       = errors.New("cluster already exists")
	ErrConflict        = errors.New("concurrent cluster update")
	ErrInvalidCluster  = errors.New("invalid cluster")
	ErrProjectMismatch = errors.New("clusters belong to different projects")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCluster, reason)
}

// MapHTTPStatus maps cluster domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCluster), errors.Is(err, ErrProjectMismatch):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
