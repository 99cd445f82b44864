package stats

import (
	"errors"
	"net/http"
)

// Domain errors for the stats view.
var (
	ErrNotFound       = errors.New("project not found")
	ErrExportDisabled = errors.New("snapshot storage is not configured")
)

// MapHTTPStatus maps stats errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExportDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var (
	errInvalidProjectID = errors.New("project id must be a uuid")
	errInvalidLimit     = errors.New("limit must be a positive integer")
)
