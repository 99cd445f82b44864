package results

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler serves read access to stored results. Writes go through the
// engine so aggregates stay in step.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a results Handler.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "results"),
	}
}

// Routes returns the route group definition for result lookups.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/results",
		Tags:   []string{"Results"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{documentId}", Handler: h.Find, OpenAPI: findOp},
		},
	}
}

// Find returns the result recorded for a document.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("documentId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	res, err := h.store.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}

var findOp = &openapi.Operation{
	Summary:    "Find analysis result",
	Parameters: []*openapi.Parameter{openapi.PathParam("documentId", "Document id")},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Analysis result", "Result"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		503: openapi.ResponseRef("Unavailable"),
	},
}

// Schemas returns the component schemas referenced by result operations.
func Schemas() map[string]*openapi.Schema {
	uuidSchema := openapi.UUID()
	terms := openapi.StringArray()
	label := &openapi.Schema{Type: "string", Enum: []any{"negative", "neutral", "positive"}}

	return map[string]*openapi.Schema{
		"Result": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id":     uuidSchema,
				"project_id":      uuidSchema,
				"sentiment_score": openapi.Number(-1, 1),
				"sentiment_label": label,
				"keywords":        terms,
				"topics":          terms,
				"cluster_id":      {Type: "string", Format: "uuid", Description: "Null when unclustered"},
				"pain_points":     terms,
				"confidence":      openapi.Number(0, 1),
				"analyzed_at":     openapi.DateTime(),
				"updated_at":      openapi.DateTime(),
			},
		},
		"RecordResult": {
			Type:     "object",
			Required: []string{"document_id", "sentiment_score", "sentiment_label", "confidence"},
			Properties: map[string]*openapi.Schema{
				"document_id":     uuidSchema,
				"sentiment_score": openapi.Number(-1, 1),
				"sentiment_label": label,
				"keywords":        terms,
				"topics":          terms,
				"cluster_id":      uuidSchema,
				"pain_points":     terms,
				"confidence":      openapi.Number(0, 1),
				"analyzed_at":     openapi.DateTime(),
			},
		},
		"Reassignment": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"result":              openapi.SchemaRef("Result"),
				"previous_cluster_id": uuidSchema,
			},
		},
	}
}
