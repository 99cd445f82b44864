package frequency

import (
	"errors"
	"net/http"
)

// ErrUnknownProject is returned when terms are written for a project that
// no longer exists.
var ErrUnknownProject = errors.New("project does not exist")

// MapHTTPStatus maps frequency errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrUnknownProject) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
