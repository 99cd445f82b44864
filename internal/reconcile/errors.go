package reconcile

import (
	"errors"
	"net/http"
)

// ErrNoReport is returned before the first pass has completed.
var ErrNoReport = errors.New("no reconciliation pass has completed")

// MapHTTPStatus maps reconcile errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNoReport) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
