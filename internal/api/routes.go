package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/engine"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/reconcile"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/internal/stats"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	groups := Groups(domain, runtime)

	routes.Register(mux, groups...)

	spec, err := openapi.MarshalJSON(NewSpec(cfg, groups...))
	if err != nil {
		return fmt.Errorf("build openapi document: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	runtime.Logger.Info("routes registered", slog.Int("groups", len(groups)))
	return nil
}

// Groups returns the route groups of every domain handler.
func Groups(domain *Domain, runtime *Runtime) []routes.Group {
	return []routes.Group{
		domain.Documents.Handler(runtime.MaxBodySize).Routes(),
		results.NewHandler(domain.Results, runtime.Logger).Routes(),
		domain.Clusters.Handler(runtime.MaxBodySize).Routes(),
		domain.Engine.Handler(runtime.MaxBodySize).Routes(),
		frequency.NewHandler(domain.Frequency, runtime.Logger).Routes(),
		domain.Stats.Handler().Routes(),
		reconcile.NewHandler(domain.Reconciler, runtime.Logger).Routes(),
		newSnapshotHandler(runtime.Storage, runtime.Logger, runtime.MaxListSize).routes(),
	}
}

// NewSpec describes the given route groups as an OpenAPI document served
// under the configured base path.
func NewSpec(cfg *config.Config, groups ...routes.Group) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	for _, schemas := range []map[string]*openapi.Schema{
		documents.Schemas(),
		results.Schemas(),
		clusters.Schemas(),
		engine.Schemas(),
		frequency.Schemas(),
		stats.Schemas(),
		reconcile.Schemas(),
		snapshotSchemas(),
	} {
		spec.Components.AddSchemas(schemas)
	}

	routes.Describe(spec, "", groups...)
	return spec
}
