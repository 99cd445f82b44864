package stats

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler serves project-level aggregates to dashboards and report generation.
type Handler struct {
	view   *View
	logger *slog.Logger
}

// ExportResponse reports where a snapshot was written.
type ExportResponse struct {
	Key      string    `json:"key"`
	Snapshot *Snapshot `json:"snapshot"`
}

// NewHandler creates a stats Handler.
func NewHandler(view *View, logger *slog.Logger) *Handler {
	return &Handler{
		view:   view,
		logger: logger.With("handler", "stats"),
	}
}

// Routes returns the route group definition for project aggregates.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/projects",
		Tags:   []string{"Stats"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/stats", Handler: h.ProjectStats, OpenAPI: statsOp},
			{Method: "GET", Pattern: "/{id}/terms", Handler: h.TopTerms, OpenAPI: termsOp},
			{Method: "GET", Pattern: "/{id}/clusters", Handler: h.ListClusters, OpenAPI: clustersOp},
			{Method: "GET", Pattern: "/{id}/summary", Handler: h.Summary, OpenAPI: summaryOp},
			{Method: "POST", Pattern: "/{id}/snapshots", Handler: h.Export, OpenAPI: exportOp},
		},
	}
}

// ProjectStats returns the dashboard rollup for a project.
func (h *Handler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	s, err := h.view.ProjectStats(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// TopTerms returns ranked terms, honoring an optional limit query parameter.
func (h *Handler) TopTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = n
	}

	terms, err := h.view.TopTerms(r.Context(), id, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, terms)
}

// ListClusters returns a project's clusters, largest first.
func (h *Handler) ListClusters(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	cs, err := h.view.ListClusters(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cs)
}

// Summary returns the analysis digest for a project.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	s, err := h.view.Summary(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Export writes a snapshot to blob storage.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	key, snap, err := h.view.Export(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, ExportResponse{Key: key, Snapshot: snap})
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidProjectID)
		return uuid.Nil, false
	}
	return id, true
}

var projectParam = openapi.PathParam("id", "Project id")

var statsOp = &openapi.Operation{
	Summary:    "Project statistics",
	Parameters: []*openapi.Parameter{projectParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Project statistics", "ProjectStats"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var termsOp = &openapi.Operation{
	Summary: "Top terms",
	Parameters: []*openapi.Parameter{
		projectParam,
		openapi.QueryParam("limit", "integer", "Maximum number of terms", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Ranked terms", "RankedTermList"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var clustersOp = &openapi.Operation{
	Summary:    "List project clusters",
	Parameters: []*openapi.Parameter{projectParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Clusters", "ClusterSummaryList"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var summaryOp = &openapi.Operation{
	Summary:    "Project analysis summary",
	Parameters: []*openapi.Parameter{projectParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Summary", "Summary"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var exportOp = &openapi.Operation{
	Summary:     "Export project snapshot",
	Description: "Writes a JSON snapshot of the project aggregates to blob storage.",
	Parameters:  []*openapi.Parameter{projectParam},
	Responses: map[int]*openapi.Response{
		201: openapi.ResponseJSON("Snapshot written", "SnapshotExport"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		503: openapi.ResponseRef("Unavailable"),
	},
}

// Schemas returns the component schemas referenced by stats operations.
func Schemas() map[string]*openapi.Schema {
	uuidSchema := openapi.UUID()
	nullableScore := &openapi.Schema{Type: "number", Description: "Null when no results exist"}
	integer := &openapi.Schema{Type: "integer"}

	return map[string]*openapi.Schema{
		"ProjectStats": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"project_id":    uuidSchema,
				"keywords":      integer,
				"tasks":         integer,
				"documents":     integer,
				"clusters":      integer,
				"reports":       integer,
				"analyzed":      integer,
				"avg_sentiment": nullableScore,
			},
		},
		"RankedTerm": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"rank":           integer,
				"term":           {Type: "string"},
				"frequency":      integer,
				"document_count": integer,
				"tf_idf":         {Type: "number"},
				"category":       {Type: "string"},
			},
		},
		"RankedTermList": openapi.ArrayOf(openapi.SchemaRef("RankedTerm")),
		"ClusterSummary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            uuidSchema,
				"name":          {Type: "string"},
				"keywords":      openapi.StringArray(),
				"size":          integer,
				"avg_sentiment": nullableScore,
			},
		},
		"ClusterSummaryList": openapi.ArrayOf(openapi.SchemaRef("ClusterSummary")),
		"Summary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"project_id":      uuidSchema,
				"analyzed":        integer,
				"avg_sentiment":   nullableScore,
				"min_sentiment":   nullableScore,
				"max_sentiment":   nullableScore,
				"high_confidence": integer,
				"distribution": {
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"negative": integer,
						"neutral":  integer,
						"positive": integer,
					},
				},
				"pain_points": {
					Type: "array",
					Items: &openapi.Schema{
						Type: "object",
						Properties: map[string]*openapi.Schema{
							"phrase": {Type: "string"},
							"count":  integer,
						},
					},
				},
				"terms_by_category": {Type: "object", Description: "Top ranked terms keyed by category"},
			},
		},
		"SnapshotExport": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"key":      {Type: "string", Example: "snapshots/<project>/20260101T000000Z.json"},
				"snapshot": {Type: "object"},
			},
		},
	}
}
