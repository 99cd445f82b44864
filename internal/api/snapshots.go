package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/JaimeStill/pulse/internal/stats"
	"github.com/JaimeStill/pulse/pkg/handlers"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
	"github.com/JaimeStill/pulse/pkg/storage"
)

// snapshotHandler serves exported project snapshots back out of blob
// storage. Keys are relative to the snapshot prefix.
type snapshotHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newSnapshotHandler(
	store storage.System,
	logger *slog.Logger,
	maxListSize int32,
) *snapshotHandler {
	return &snapshotHandler{
		store:       store,
		logger:      logger.With("handler", "snapshots"),
		maxListSize: maxListSize,
	}
}

func (h *snapshotHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/snapshots",
		Tags:   []string{"Snapshots"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.available(h.list), OpenAPI: listSnapshotsOp},
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.available(h.download), OpenAPI: downloadSnapshotOp},
			{Method: "GET", Pattern: "/{key...}", Handler: h.available(h.find), OpenAPI: findSnapshotOp},
		},
	}
}

// available answers 503 when the process runs without blob storage.
func (h *snapshotHandler) available(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			handlers.RespondError(w, h.logger, storage.MapHTTPStatus(storage.ErrUnavailable), storage.ErrUnavailable)
			return
		}
		next(w, r)
	}
}

func (h *snapshotHandler) list(w http.ResponseWriter, r *http.Request) {
	prefix := stats.SnapshotPrefix
	if project := r.URL.Query().Get("project"); project != "" {
		prefix += project + "/"
	}
	marker := r.URL.Query().Get("marker")

	maxResults, err := storage.ParseMaxResults(
		r.URL.Query().Get("max_results"),
		h.maxListSize,
	)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.store.List(r.Context(), prefix, marker, maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *snapshotHandler) find(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.Find(r.Context(), stats.SnapshotPrefix+r.PathValue("key"))
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *snapshotHandler) download(w http.ResponseWriter, r *http.Request) {
	key := stats.SnapshotPrefix + r.PathValue("key")

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body)
}

var listSnapshotsOp = &openapi.Operation{
	Summary: "List snapshots",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("project", "string", "Restrict to one project id", false),
		openapi.QueryParam("marker", "string", "Continuation marker from a previous page", false),
		openapi.QueryParam("max_results", "integer", "Page size", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Snapshot page", "SnapshotList"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var findSnapshotOp = &openapi.Operation{
	Summary: "Snapshot metadata",
	Parameters: []*openapi.Parameter{
		{Name: "key", In: "path", Required: true, Description: "Key relative to the snapshot prefix", Schema: &openapi.Schema{Type: "string"}},
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Snapshot metadata", "SnapshotMeta"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var downloadSnapshotOp = &openapi.Operation{
	Summary: "Download snapshot",
	Parameters: []*openapi.Parameter{
		{Name: "key", In: "path", Required: true, Description: "Key relative to the snapshot prefix", Schema: &openapi.Schema{Type: "string"}},
	},
	Responses: map[int]*openapi.Response{
		200: {Description: "Snapshot JSON document"},
		404: openapi.ResponseRef("NotFound"),
	},
}

func snapshotSchemas() map[string]*openapi.Schema {
	meta := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"key":            {Type: "string"},
			"content_type":   {Type: "string"},
			"content_length": {Type: "integer"},
			"last_modified":  {Type: "string", Format: "date-time"},
		},
	}
	return map[string]*openapi.Schema{
		"SnapshotMeta": meta,
		"SnapshotList": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"blobs":       openapi.ArrayOf(openapi.SchemaRef("SnapshotMeta")),
				"next_marker": {Type: "string"},
			},
		},
	}
}
