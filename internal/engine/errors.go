package engine

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
)

var errInvalidID = errors.New("id must be a uuid")

// MapHTTPStatus maps errors from any system the engine drives to an HTTP
// status code.
func MapHTTPStatus(err error) int {
	mappers := []func(error) int{
		results.MapHTTPStatus,
		clusters.MapHTTPStatus,
		documents.MapHTTPStatus,
		frequency.MapHTTPStatus,
	}
	for _, m := range mappers {
		if status := m(err); status != http.StatusInternalServerError {
			return status
		}
	}
	return http.StatusInternalServerError
}
