package routes

import (
	"net/http"

	"github.com/JaimeStill/pulse/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler, optionally described
// by an OpenAPI operation.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}
