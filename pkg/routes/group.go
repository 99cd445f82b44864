package routes

import (
	"net/http"
	"slices"

	"github.com/JaimeStill/pulse/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
type Group struct {
	Prefix   string
	Tags     []string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}

// Describe adds every documented route to spec under basePath. Routes
// without an OpenAPI operation are skipped. Group tags apply to operations
// that declare none of their own.
func Describe(spec *openapi.Spec, basePath string, groups ...Group) {
	for _, group := range groups {
		describeGroup(spec, basePath, nil, group)
	}
}

func describeGroup(spec *openapi.Spec, prefix string, tags []string, group Group) {
	fullPrefix := prefix + group.Prefix
	if len(group.Tags) > 0 {
		tags = group.Tags
	}

	for _, route := range group.Routes {
		if route.OpenAPI == nil {
			continue
		}
		op := *route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = slices.Clone(tags)
		}
		spec.AddOperation(route.Method, fullPrefix+route.Pattern, &op)
	}

	for _, child := range group.Children {
		describeGroup(spec, fullPrefix, tags, child)
	}
}
