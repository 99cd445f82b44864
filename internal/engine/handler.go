package engine

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler exposes the engine's mutations over HTTP.
type Handler struct {
	engine      *Engine
	logger      *slog.Logger
	maxBodySize int64
}

// ReassignRequest moves a result to ClusterID; null unclusters it.
type ReassignRequest struct {
	ClusterID *uuid.UUID `json:"cluster_id"`
}

// MergeRequest names the cluster that absorbs the source's members.
type MergeRequest struct {
	TargetID uuid.UUID `json:"target_id"`
}

// NewHandler creates an engine Handler.
func NewHandler(e *Engine, logger *slog.Logger, maxBodySize int64) *Handler {
	return &Handler{
		engine:      e,
		logger:      logger.With("handler", "engine"),
		maxBodySize: maxBodySize,
	}
}

// Routes returns the engine's route groups.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/results",
				Tags:   []string{"Results"},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Record, OpenAPI: recordOp},
					{Method: "PUT", Pattern: "/{documentId}/cluster", Handler: h.Reassign, OpenAPI: reassignOp},
				},
			},
			{
				Prefix: "/documents",
				Tags:   []string{"Documents"},
				Routes: []routes.Route{
					{Method: "DELETE", Pattern: "/{id}", Handler: h.RemoveDocument, OpenAPI: removeDocumentOp},
				},
			},
			{
				Prefix: "/projects",
				Tags:   []string{"Projects"},
				Routes: []routes.Route{
					{Method: "DELETE", Pattern: "/{id}", Handler: h.RemoveProject, OpenAPI: removeProjectOp},
				},
			},
			{
				Prefix: "/clusters",
				Tags:   []string{"Clusters"},
				Routes: []routes.Route{
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteCluster, OpenAPI: deleteClusterOp},
					{Method: "POST", Pattern: "/{id}/merge", Handler: h.Merge, OpenAPI: mergeOp},
				},
			},
		},
	}
}

// Record accepts an analysis result event. A first delivery answers 201;
// a redelivery answers 200 with the stored result.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var cmd results.RecordCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	res, inserted, err := h.engine.Record(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	handlers.RespondJSON(w, status, res)
}

func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "documentId")
	if !ok {
		return
	}

	var req ReassignRequest
	if !h.decode(w, r, &req) {
		return
	}

	ra, err := h.engine.Reassign(r.Context(), id, req.ClusterID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ra)
}

func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engine.RemoveDocument(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engine.RemoveProject(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteCluster(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engine.DeleteCluster(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Merge folds the path cluster into the target and returns the target.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req MergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.engine.MergeClusters(r.Context(), id, req.TargetID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := handlers.DecodeJSON(w, r, h.maxBodySize, dst); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, handlers.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		handlers.RespondError(w, h.logger, status, err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

var recordOp = &openapi.Operation{
	Summary:     "Record analysis result",
	Description: "Idempotent per document. A redelivery with identical content returns the stored result.",
	RequestBody: openapi.RequestBodyJSON("RecordResult", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Result already recorded", "Result"),
		201: openapi.ResponseJSON("Result recorded", "Result"),
		400: openapi.ResponseRef("BadRequest"),
		422: openapi.ResponseRef("Unprocessable"),
		503: openapi.ResponseRef("Unavailable"),
	},
}

var reassignOp = &openapi.Operation{
	Summary:     "Reassign result cluster",
	Parameters:  []*openapi.Parameter{openapi.PathParam("documentId", "Document id")},
	RequestBody: openapi.RequestBodyJSON("ReassignRequest", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Reassignment", "Reassignment"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		422: openapi.ResponseRef("Unprocessable"),
	},
}

var removeDocumentOp = &openapi.Operation{
	Summary:    "Remove document",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Document id")},
	Responses: map[int]*openapi.Response{
		204: {Description: "Document and its result removed"},
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var removeProjectOp = &openapi.Operation{
	Summary:    "Remove project",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Project id")},
	Responses: map[int]*openapi.Response{
		204: {Description: "Project and everything it owns removed"},
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var deleteClusterOp = &openapi.Operation{
	Summary:    "Delete cluster",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Cluster id")},
	Responses: map[int]*openapi.Response{
		204: {Description: "Cluster deleted; members unclustered"},
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var mergeOp = &openapi.Operation{
	Summary:     "Merge clusters",
	Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Source cluster id")},
	RequestBody: openapi.RequestBodyJSON("MergeRequest", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Merged target cluster", "Cluster"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		422: openapi.ResponseRef("Unprocessable"),
	},
}

// Schemas returns the request schemas owned by the engine.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"ReassignRequest": {
			Type:     "object",
			Required: []string{"cluster_id"},
			Properties: map[string]*openapi.Schema{
				"cluster_id": {Type: "string", Format: "uuid", Description: "Null unclusters the result"},
			},
		},
		"MergeRequest": {
			Type:     "object",
			Required: []string{"target_id"},
			Properties: map[string]*openapi.Schema{
				"target_id": {Type: "string", Format: "uuid"},
			},
		},
	}
}
