// Package reconcile recomputes derived aggregates from the result store
// and repairs drift left by deferred or lost cluster updates.
package reconcile

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/lifecycle"
	"github.com/JaimeStill/pulse/pkg/metrics"
)

// Results is the slice of the result store the reconciler reads.
type Results interface {
	ProjectIDs(ctx context.Context) ([]uuid.UUID, error)
	ClusterTotal(ctx context.Context, clusterID uuid.UUID) (*results.Total, error)
}

// Catalog enumerates clusters.
type Catalog interface {
	ProjectIDs(ctx context.Context) ([]uuid.UUID, error)
	List(ctx context.Context, projectID uuid.UUID) ([]clusters.Cluster, error)
}

// Terms recomputes a project's frequency table.
type Terms interface {
	Refresh(ctx context.Context, projectID uuid.UUID) ([]frequency.Term, error)
}

// Options tunes pacing and alerting.
type Options struct {
	Workers        int
	Rate           float64
	Tolerance      float64
	AlertThreshold int
}

// Reconciler compares stored cluster counters with exact totals computed
// from the result store and overwrites those that drifted. Each cluster is
// handled by a short, version-checked swap under the aggregator's lock for
// that cluster only, so foreground writes are never blocked for long. A
// writer that slips in between the exact count and the swap leaves the
// cluster queued for the next pass.
type Reconciler struct {
	results    Results
	catalog    Catalog
	terms      Terms
	aggregator *clusters.Aggregator
	opts       Options
	limiter    *rate.Limiter
	logger     *slog.Logger

	running sync.Mutex
	last    atomic.Pointer[Report]

	runs        *metrics.Counter
	corrections *metrics.Counter
	failures    *metrics.Counter
	alerts      *metrics.Counter
	duration    *metrics.Histogram
}

// New creates a Reconciler.
func New(
	res Results,
	catalog Catalog,
	terms Terms,
	aggregator *clusters.Aggregator,
	opts Options,
	reg *metrics.Registry,
	logger *slog.Logger,
) *Reconciler {
	opts.Workers = max(opts.Workers, 1)

	return &Reconciler{
		results:    res,
		catalog:    catalog,
		terms:      terms,
		aggregator: aggregator,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.Rate), opts.Workers),
		logger:     logger.With("system", "reconcile"),

		runs:        reg.Counter("reconcile_runs_total", "Reconciliation passes completed."),
		corrections: reg.Counter("reconcile_corrections_total", "Cluster counters corrected by reconciliation."),
		failures:    reg.Counter("reconcile_failures_total", "Clusters that could not be reconciled."),
		alerts:      reg.Counter("reconcile_alerts_total", "Passes whose corrections exceeded the alert threshold."),
		duration: reg.Histogram("reconcile_duration_seconds", "Reconciliation pass latency.",
			[]float64{0.1, 0.5, 1, 5, 30, 120}),
	}
}

// Last returns the report of the most recent completed pass.
func (r *Reconciler) Last() (*Report, error) {
	if rep := r.last.Load(); rep != nil {
		return rep, nil
	}
	return nil, ErrNoReport
}

// Run reconciles every cluster of every project known to the result store
// or the cluster catalog, then recomputes each project's terms.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	r.running.Lock()
	defer r.running.Unlock()

	rep := &Report{Pass: PassFull, StartedAt: time.Now().UTC(), Corrections: []Correction{}}

	projects, err := r.projects(ctx)
	if err != nil {
		return nil, err
	}
	rep.Projects = len(projects)

	var ids []uuid.UUID
	for _, p := range projects {
		cs, err := r.catalog.List(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			ids = append(ids, c.ID)
		}
	}

	if err := r.reconcile(ctx, ids, rep); err != nil {
		return nil, err
	}

	refreshed, err := r.refreshTerms(ctx, projects)
	if err != nil {
		return nil, err
	}
	rep.Terms = refreshed

	return r.finish(rep), nil
}

// RunPending reconciles only the clusters the aggregator queued after
// exhausting its retries or detecting an impossible removal.
func (r *Reconciler) RunPending(ctx context.Context) (*Report, error) {
	r.running.Lock()
	defer r.running.Unlock()

	rep := &Report{Pass: PassPending, StartedAt: time.Now().UTC(), Corrections: []Correction{}}

	ids := r.aggregator.Pending().Drain()
	if err := r.reconcile(ctx, ids, rep); err != nil {
		for _, id := range ids {
			r.aggregator.Pending().Add(id)
		}
		return nil, err
	}

	return r.finish(rep), nil
}

// Start schedules full passes every interval and pending passes every
// pendingInterval until shutdown.
func (r *Reconciler) Start(lc *lifecycle.Coordinator, interval, pendingInterval time.Duration) {
	r.logger.Info("reconciler scheduled",
		"interval", interval, "pending_interval", pendingInterval,
		"workers", r.opts.Workers, "rate", r.opts.Rate,
	)

	lc.Every(interval, func(ctx context.Context) {
		if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reconcile pass failed", "error", err)
		}
	})

	lc.Every(pendingInterval, func(ctx context.Context) {
		if r.aggregator.Pending().Len() == 0 {
			return
		}
		if _, err := r.RunPending(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("pending reconcile pass failed", "error", err)
		}
	})
}

func (r *Reconciler) projects(ctx context.Context) ([]uuid.UUID, error) {
	fromResults, err := r.results.ProjectIDs(ctx)
	if err != nil {
		return nil, err
	}
	fromClusters, err := r.catalog.ProjectIDs(ctx)
	if err != nil {
		return nil, err
	}

	ids := append(fromResults, fromClusters...)
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})
	return slices.Compact(ids), nil
}

func (r *Reconciler) reconcile(ctx context.Context, ids []uuid.UUID, rep *Report) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, id := range ids {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}

			out, err := r.aggregator.Resync(gctx, id, r.results.ClusterTotal, r.opts.Tolerance)

			mu.Lock()
			defer mu.Unlock()
			rep.Checked++

			switch {
			case errors.Is(err, clusters.ErrNotFound):
				return nil
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				rep.Failed++
				r.failures.Inc()
				r.aggregator.Pending().Add(id)
				r.logger.Error("cluster reconcile failed", "cluster_id", id, "error", err)
				return nil
			case out.Deferred:
				rep.Deferred++
			case out.Corrected:
				rep.Corrections = append(rep.Corrections, Correction{
					ClusterID:  id,
					SizeBefore: out.Before.Size,
					SizeAfter:  out.After.Size,
					AvgBefore:  out.Before.AvgSentiment,
					AvgAfter:   out.After.AvgSentiment,
				})
				r.logger.Warn("cluster drift corrected",
					"cluster_id", id,
					"size_before", out.Before.Size, "size_after", out.After.Size,
					"avg_before", out.Before.AvgSentiment, "avg_after", out.After.AvgSentiment,
				)
			}
			return nil
		})
	}

	return g.Wait()
}

func (r *Reconciler) refreshTerms(ctx context.Context, projects []uuid.UUID) (int, error) {
	var refreshed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, p := range projects {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}
			if _, err := r.terms.Refresh(gctx, p); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Error("term refresh failed", "project_id", p, "error", err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(refreshed.Load()), nil
}

func (r *Reconciler) finish(rep *Report) *Report {
	rep.FinishedAt = time.Now().UTC()

	slices.SortFunc(rep.Corrections, func(a, b Correction) int {
		return cmp.Compare(a.ClusterID.String(), b.ClusterID.String())
	})

	r.runs.Inc()
	r.corrections.Add(uint64(len(rep.Corrections)))
	r.duration.Observe(rep.Duration().Seconds())

	if len(rep.Corrections) > r.opts.AlertThreshold {
		rep.Alert = true
		r.alerts.Inc()
		r.logger.Error("cluster drift exceeds alert threshold",
			"pass", rep.Pass, "corrections", len(rep.Corrections), "threshold", r.opts.AlertThreshold,
		)
	}

	r.logger.Info("reconcile pass complete",
		"pass", rep.Pass,
		"projects", rep.Projects,
		"checked", rep.Checked,
		"corrected", len(rep.Corrections),
		"deferred", rep.Deferred,
		"failed", rep.Failed,
		"terms_refreshed", rep.Terms,
		"duration", rep.Duration(),
	)

	r.last.Store(rep)
	return rep
}
