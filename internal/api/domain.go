package api

import (
	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/engine"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/reconcile"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/internal/stats"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents  documents.System
	Results    results.Store
	Clusters   clusters.System
	Aggregator *clusters.Aggregator
	Frequency  *frequency.Analyzer
	Engine     *engine.Engine
	Stats      *stats.View
	Reconciler *reconcile.Reconciler
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()
	cfg := runtime.Engine

	docsSystem := documents.New(db, runtime.Logger, runtime.Pagination)
	resultStore := results.New(db, runtime.Retrier, runtime.Logger)
	clusterSystem := clusters.New(db, runtime.Logger)

	aggregator := clusters.NewAggregator(
		clusterSystem,
		clusters.NewPending(runtime.Metrics),
		cfg.ConflictPolicy(),
		runtime.Metrics,
		runtime.Logger,
	)

	analyzer := frequency.NewAnalyzer(
		resultStore,
		frequency.New(db, runtime.Logger),
		cfg.FrequencyWorkers,
		runtime.Metrics,
		runtime.Logger,
	)

	engineSystem := engine.New(
		resultStore,
		docsSystem,
		clusterSystem,
		aggregator,
		analyzer,
		runtime.Metrics,
		runtime.Logger,
	)

	view := stats.New(
		stats.NewCounter(db, runtime.Logger),
		clusterSystem,
		analyzer.Store(),
		resultStore,
		runtime.Storage,
		stats.Limits{Default: cfg.DefaultTermLimit, Max: cfg.MaxTermLimit},
		runtime.Logger,
	)

	reconciler := reconcile.New(
		resultStore,
		clusterSystem,
		analyzer,
		aggregator,
		reconcile.Options{
			Workers:        cfg.ReconcileWorkers,
			Rate:           cfg.ReconcileRate,
			Tolerance:      cfg.DriftTolerance,
			AlertThreshold: cfg.DriftAlertThreshold,
		},
		runtime.Metrics,
		runtime.Logger,
	)

	return &Domain{
		Documents:  docsSystem,
		Results:    resultStore,
		Clusters:   clusterSystem,
		Aggregator: aggregator,
		Frequency:  analyzer,
		Engine:     engineSystem,
		Stats:      view,
		Reconciler: reconciler,
	}
}

// Start schedules the frequency flush and reconciliation passes.
func (d *Domain) Start(runtime *Runtime) {
	d.Frequency.Start(runtime.Lifecycle, runtime.Engine.FrequencyWindowDuration())
	d.Reconciler.Start(
		runtime.Lifecycle,
		runtime.Engine.ReconcileIntervalDuration(),
		runtime.Engine.PendingIntervalDuration(),
	)
}
