package clusters

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler provides HTTP endpoints for the cluster catalog. Deletion and
// merging are served by the engine because they touch results.
type Handler struct {
	sys         System
	logger      *slog.Logger
	maxBodySize int64
}

// NewHandler creates a Handler with the given system, logger, and body limit.
func NewHandler(sys System, logger *slog.Logger, maxBodySize int64) *Handler {
	return &Handler{
		sys:         sys,
		logger:      logger.With("handler", "clusters"),
		maxBodySize: maxBodySize,
	}
}

// Routes returns the route group definition for cluster endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/clusters",
		Tags:   []string{"Clusters"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: createOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: findOp},
		},
	}
}

// Create registers a cluster emitted by the clustering step.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := handlers.DecodeJSON(w, r, h.maxBodySize, &cmd); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, handlers.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	c, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, c)
}

// Find returns a single cluster with its current counters.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, invalid("id must be a uuid"))
		return
	}

	c, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

var createOp = &openapi.Operation{
	Summary:     "Create cluster",
	RequestBody: openapi.RequestBodyJSON("CreateCluster", true),
	Responses: map[int]*openapi.Response{
		201: openapi.ResponseJSON("Created cluster", "Cluster"),
		400: openapi.ResponseRef("BadRequest"),
		409: openapi.ResponseRef("Conflict"),
		422: openapi.ResponseRef("Unprocessable"),
	},
}

var findOp = &openapi.Operation{
	Summary:    "Find cluster",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Cluster id")},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Cluster", "Cluster"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

// Schemas returns the component schemas referenced by cluster operations.
func Schemas() map[string]*openapi.Schema {
	uuidSchema := openapi.UUID()
	timeSchema := openapi.DateTime()
	keywords := openapi.StringArray()
	avg := openapi.Number(-1, 1)
	avg.Description = "Null when the cluster is empty"

	return map[string]*openapi.Schema{
		"Cluster": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            uuidSchema,
				"project_id":    uuidSchema,
				"name":          {Type: "string"},
				"description":   {Type: "string"},
				"keywords":      keywords,
				"size":          {Type: "integer"},
				"avg_sentiment": avg,
				"version":       {Type: "integer"},
				"created_at":    timeSchema,
				"updated_at":    timeSchema,
			},
		},
		"CreateCluster": {
			Type:     "object",
			Required: []string{"project_id"},
			Properties: map[string]*openapi.Schema{
				"id":          uuidSchema,
				"project_id":  uuidSchema,
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"keywords":    keywords,
			},
		},
	}
}
