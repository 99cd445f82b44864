package api

import (
	"log/slog"

	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/engine"
	"github.com/JaimeStill/pulse/internal/infrastructure"
	"github.com/JaimeStill/pulse/internal/reconcile"
	"github.com/JaimeStill/pulse/internal/stats"
)

// NewMemory assembles a Runtime and Domain over in-memory stores for
// offline tooling. There is no database or blob storage, so snapshot
// export is disabled.
func NewMemory(cfg config.EngineConfig, logger *slog.Logger) (*Runtime, *Domain) {
	m := engine.NewMemory(cfg.ConflictPolicy(), cfg.FrequencyWorkers, logger)

	runtime := &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Logger:  logger,
			Metrics: m.Registry,
		},
		Engine:      cfg,
		MaxBodySize: 1 << 20,
	}

	view := stats.New(
		stats.NewMemoryCounter(m.Documents, m.Clusters, m.Results),
		m.Clusters,
		m.Terms,
		m.Results,
		nil,
		stats.Limits{Default: cfg.DefaultTermLimit, Max: cfg.MaxTermLimit},
		runtime.Logger,
	)

	reconciler := reconcile.New(
		m.Results,
		m.Clusters,
		m.Frequency,
		m.Aggregator,
		reconcile.Options{
			Workers:        cfg.ReconcileWorkers,
			Rate:           cfg.ReconcileRate,
			Tolerance:      cfg.DriftTolerance,
			AlertThreshold: cfg.DriftAlertThreshold,
		},
		m.Registry,
		runtime.Logger,
	)

	return runtime, &Domain{
		Documents:  m.Documents,
		Results:    m.Results,
		Clusters:   m.Clusters,
		Aggregator: m.Aggregator,
		Frequency:  m.Frequency,
		Engine:     m.Engine,
		Stats:      view,
		Reconciler: reconciler,
	}
}
