package frequency

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler exposes on-demand term recomputation. Rankings are read through
// the stats view.
type Handler struct {
	analyzer *Analyzer
	logger   *slog.Logger
}

// NewHandler creates a frequency Handler.
func NewHandler(analyzer *Analyzer, logger *slog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		logger:   logger.With("handler", "frequency"),
	}
}

// Routes returns the route group definition for frequency endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/projects",
		Tags:   []string{"Terms"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/terms/refresh", Handler: h.Refresh, OpenAPI: refreshOp},
		},
	}
}

// Refresh recomputes a project's term table and returns it.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	terms, err := h.analyzer.Refresh(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, terms)
}

var refreshOp = &openapi.Operation{
	Summary:     "Recompute project terms",
	Description: "Rebuilds the project's term table from its stored results.",
	Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Project id")},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Recomputed terms", "TermList"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

// Schemas returns the component schemas referenced by term operations.
func Schemas() map[string]*openapi.Schema {
	term := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"project_id":     {Type: "string", Format: "uuid"},
			"term":           {Type: "string"},
			"frequency":      {Type: "integer"},
			"document_count": {Type: "integer"},
			"tf_idf":         {Type: "number"},
			"category":       {Type: "string", Example: "pain_point"},
			"updated_at":     {Type: "string", Format: "date-time"},
		},
	}

	return map[string]*openapi.Schema{
		"Term":     term,
		"TermList": openapi.ArrayOf(openapi.SchemaRef("Term")),
	}
}
