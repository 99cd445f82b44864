package reconcile

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler exposes on-demand reconciliation and the last report.
type Handler struct {
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewHandler creates a reconcile Handler.
func NewHandler(reconciler *Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger.With("handler", "reconcile"),
	}
}

// Routes returns the route group definition for reconcile endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/reconcile",
		Tags:   []string{"Reconcile"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Last, OpenAPI: lastOp},
			{Method: "POST", Pattern: "", Handler: h.Run, OpenAPI: runOp},
			{Method: "POST", Pattern: "/pending", Handler: h.RunPending, OpenAPI: pendingOp},
		},
	}
}

// Run executes a full pass and returns its report.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reconciler.Run(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, rep)
}

// RunPending reconciles deferred clusters and returns the report.
func (h *Handler) RunPending(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reconciler.RunPending(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, rep)
}

// Last returns the most recent report.
func (h *Handler) Last(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reconciler.Last()
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, rep)
}

var runOp = &openapi.Operation{
	Summary:     "Run full reconciliation",
	Description: "Recomputes every cluster counter and term table from stored results.",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Pass report", "ReconcileReport"),
	},
}

var pendingOp = &openapi.Operation{
	Summary: "Reconcile deferred clusters",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Pass report", "ReconcileReport"),
	},
}

var lastOp = &openapi.Operation{
	Summary: "Last reconciliation report",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Pass report", "ReconcileReport"),
		404: openapi.ResponseRef("NotFound"),
	},
}

// Schemas returns the component schemas referenced by reconcile operations.
func Schemas() map[string]*openapi.Schema {
	integer := &openapi.Schema{Type: "integer"}
	timeSchema := &openapi.Schema{Type: "string", Format: "date-time"}

	return map[string]*openapi.Schema{
		"ReconcileReport": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"pass":        {Type: "string", Enum: []any{"full", "pending"}},
				"started_at":  timeSchema,
				"finished_at": timeSchema,
				"projects":    integer,
				"checked":     integer,
				"corrections": {
					Type: "array",
					Items: &openapi.Schema{
						Type: "object",
						Properties: map[string]*openapi.Schema{
							"cluster_id":  {Type: "string", Format: "uuid"},
							"size_before": integer,
							"size_after":  integer,
							"avg_before":  {Type: "number"},
							"avg_after":   {Type: "number"},
						},
					},
				},
				"deferred":        integer,
				"failed":          integer,
				"terms_refreshed": integer,
				"alert":           {Type: "boolean"},
			},
		},
	}
}
