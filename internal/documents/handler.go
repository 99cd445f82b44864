package documents

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/pagination"
	"github.com/JaimeStill/pulse/pkg/routes"
)

// Handler provides HTTP endpoints for document operations.
type Handler struct {
	sys         System
	logger      *slog.Logger
	pagination  pagination.Config
	maxBodySize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and body limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxBodySize int64,
) *Handler {
	return &Handler{
		sys:         sys,
		logger:      logger.With("handler", "documents"),
		pagination:  pagination,
		maxBodySize: maxBodySize,
	}
}

// Routes returns the route group definition for document endpoints.
// Document deletion is served by the engine so results are retracted first.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Tags:   []string{"Documents"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: findOp},
			{Method: "POST", Pattern: "", Handler: h.Register, OpenAPI: registerOp},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: searchOp},
		},
	}
}

// List returns a paginated list of documents with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single document by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, invalid("id must be a uuid"))
		return
	}

	doc, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching documents.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := handlers.DecodeJSON(w, r, h.maxBodySize, &req); err != nil {
		handlers.RespondError(w, h.logger, decodeStatus(err), err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Register records a document-created notification. A new document
// responds 201; a redelivered notification responds 200 with the stored row.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var cmd RegisterCommand
	if err := handlers.DecodeJSON(w, r, h.maxBodySize, &cmd); err != nil {
		handlers.RespondError(w, h.logger, decodeStatus(err), err)
		return
	}

	doc, created, err := h.sys.Register(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	handlers.RespondJSON(w, status, doc)
}

func decodeStatus(err error) int {
	if errors.Is(err, handlers.ErrBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

var listOp = &openapi.Operation{
	Summary: "List documents",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Matches title or source url", false),
		openapi.QueryParam("sort", "string", "Sort fields", false),
		openapi.QueryParam("project_id", "string", "Project filter", false),
		openapi.QueryParam("task_id", "string", "Task filter", false),
		openapi.QueryParam("source_type", "string", "Source type filter", false),
		openapi.QueryParam("title", "string", "Title contains", false),
		openapi.QueryParam("collected_after", "string", "RFC 3339 lower bound", false),
		openapi.QueryParam("collected_before", "string", "RFC 3339 upper bound", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Document page", "DocumentPage"),
	},
}

var findOp = &openapi.Operation{
	Summary:    "Find document",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Document id")},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Document", "Document"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var registerOp = &openapi.Operation{
	Summary:     "Register collected document",
	Description: "Idempotent document-created notification from a collector.",
	RequestBody: openapi.RequestBodyJSON("RegisterDocument", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Already registered", "Document"),
		201: openapi.ResponseJSON("Registered", "Document"),
		400: openapi.ResponseRef("BadRequest"),
		409: openapi.ResponseRef("Conflict"),
		422: openapi.ResponseRef("Unprocessable"),
	},
}

var searchOp = &openapi.Operation{
	Summary:     "Search documents",
	RequestBody: openapi.RequestBodyJSON("DocumentSearch", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Document page", "DocumentPage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

// Schemas returns the component schemas referenced by document operations.
func Schemas() map[string]*openapi.Schema {
	uuidSchema := openapi.UUID()
	timeSchema := openapi.DateTime()

	document := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":           uuidSchema,
			"task_id":      uuidSchema,
			"project_id":   uuidSchema,
			"source_type":  {Type: "string", Example: "reddit"},
			"source_url":   {Type: "string"},
			"title":        {Type: "string"},
			"collected_at": timeSchema,
		},
	}

	return map[string]*openapi.Schema{
		"Document": document,
		"RegisterDocument": {
			Type:       "object",
			Required:   []string{"id", "task_id", "project_id"},
			Properties: document.Properties,
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf(openapi.SchemaRef("Document")),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
				"has_next":    {Type: "boolean"},
			},
		},
		"DocumentSearch": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":             {Type: "integer"},
				"page_size":        {Type: "integer"},
				"search":           {Type: "string"},
				"sort":             {Type: "string"},
				"project_id":       uuidSchema,
				"task_id":          uuidSchema,
				"source_type":      {Type: "string"},
				"title":            {Type: "string"},
				"collected_after":  timeSchema,
				"collected_before": timeSchema,
			},
		},
	}
}
