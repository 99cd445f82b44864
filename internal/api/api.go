// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/infrastructure"
	"github.com/JaimeStill/pulse/pkg/middleware"
	"github.com/JaimeStill/pulse/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware
// and schedules the domain's background passes on the lifecycle.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime); err != nil {
		return nil, err
	}

	domain.Start(runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Metrics(runtime.Metrics))
	m.Use(middleware.Recover(runtime.Logger))

	return m, nil
}
