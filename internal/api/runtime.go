package api

import (
	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/infrastructure"
	"github.com/JaimeStill/pulse/pkg/pagination"
	"github.com/JaimeStill/pulse/pkg/repository"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination  pagination.Config
	Retrier     repository.Retrier
	Engine      config.EngineConfig
	MaxBodySize int64
	MaxListSize int32
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Metrics:   infra.Metrics,
		},
		Pagination: cfg.API.Pagination,
		Retrier: repository.Retrier{
			Policy:  cfg.Database.RetryPolicy(),
			Timeout: cfg.Database.QueryTimeoutDuration(),
		},
		Engine:      cfg.Engine,
		MaxBodySize: cfg.API.MaxBodySizeBytes(),
		MaxListSize: cfg.Storage.MaxListSize,
	}
}
