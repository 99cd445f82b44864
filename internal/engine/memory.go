package engine

import (
	"log/slog"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/metrics"
	"github.com/JaimeStill/pulse/pkg/pagination"
	"github.com/JaimeStill/pulse/pkg/retry"
)

// Memory is a fully wired in-process engine with its backing systems
// exposed, used by tests and offline replay.
type Memory struct {
	Registry   *metrics.Registry
	Documents  *documents.Memory
	Results    *results.Memory
	Clusters   *clusters.Memory
	Terms      *frequency.Memory
	Aggregator *clusters.Aggregator
	Frequency  *frequency.Analyzer
	Engine     *Engine
}

// NewMemory assembles an Engine over in-memory stores.
func NewMemory(policy retry.Policy, workers int, logger *slog.Logger) *Memory {
	m := &Memory{
		Registry:  metrics.New(),
		Documents: documents.NewMemory(logger, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}),
		Clusters:  clusters.NewMemory(logger),
		Terms:     frequency.NewMemory(),
	}

	m.Results = results.NewMemory(m.Documents.ProjectOf, m.Clusters.ProjectOf, logger)
	m.Aggregator = clusters.NewAggregator(m.Clusters, clusters.NewPending(m.Registry), policy, m.Registry, logger)
	m.Frequency = frequency.NewAnalyzer(m.Results, m.Terms, workers, m.Registry, logger)
	m.Engine = New(m.Results, m.Documents, m.Clusters, m.Aggregator, m.Frequency, m.Registry, logger)

	return m
}
