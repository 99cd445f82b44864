package frequency

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/keylock"
	"github.com/JaimeStill/pulse/pkg/lifecycle"
	"github.com/JaimeStill/pulse/pkg/metrics"
)

// Source supplies the result snapshot a project's terms are computed from.
type Source interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]results.Result, error)
}

// Analyzer batches term recomputation. Ingest marks projects dirty; a
// background loop flushes the dirty set on a fixed window, recomputing each
// project from a fresh snapshot. Recomputing is idempotent, so a project
// flushed twice or refreshed mid-flush converges to the same table.
type Analyzer struct {
	source  Source
	store   Store
	workers int
	logger  *slog.Logger
	locks   *keylock.Map[uuid.UUID]

	mu    sync.Mutex
	dirty map[uuid.UUID]struct{}

	refreshes *metrics.Counter
	failures  *metrics.Counter
	backlog   *metrics.Gauge
	latency   *metrics.Histogram
}

// NewAnalyzer creates an Analyzer that flushes with at most workers
// projects in flight.
func NewAnalyzer(source Source, store Store, workers int, reg *metrics.Registry, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		source:  source,
		store:   store,
		workers: max(workers, 1),
		logger:  logger.With("system", "frequency"),
		locks:   keylock.New[uuid.UUID](),
		dirty:   make(map[uuid.UUID]struct{}),

		refreshes: reg.Counter("frequency_refresh_total", "Project term tables recomputed."),
		failures:  reg.Counter("frequency_refresh_failures_total", "Project term recomputations that failed."),
		backlog:   reg.Gauge("frequency_dirty_projects", "Projects waiting for term recomputation."),
		latency: reg.Histogram("frequency_refresh_seconds", "Term recomputation latency.",
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5}),
	}
}

// Store returns the term store the analyzer writes to.
func (a *Analyzer) Store() Store {
	return a.store
}

// MarkDirty queues a project for the next flush.
func (a *Analyzer) MarkDirty(projectID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty[projectID] = struct{}{}
	a.backlog.Set(int64(len(a.dirty)))
}

// Dirty reports whether a project is waiting for a flush.
func (a *Analyzer) Dirty(projectID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.dirty[projectID]
	return ok
}

// Refresh recomputes a project's terms immediately and returns the new table.
func (a *Analyzer) Refresh(ctx context.Context, projectID uuid.UUID) ([]Term, error) {
	unlock := a.locks.Lock(projectID)
	defer unlock()

	start := time.Now()

	items, err := a.source.ListByProject(ctx, projectID)
	if err != nil {
		a.failures.Inc()
		return nil, err
	}

	terms := Compute(projectID, items, start.UTC())
	if err := a.store.Replace(ctx, projectID, terms); err != nil {
		a.failures.Inc()
		return nil, err
	}

	a.refreshes.Inc()
	a.latency.Observe(time.Since(start).Seconds())
	a.logger.Debug("terms refreshed",
		"project_id", projectID, "results", len(items), "terms", len(terms),
	)
	return terms, nil
}

// Flush recomputes every dirty project. A project that fails stays dirty
// for the next flush unless it no longer exists.
func (a *Analyzer) Flush(ctx context.Context) error {
	projects := a.drain()
	if len(projects) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, id := range projects {
		g.Go(func() error {
			_, err := a.Refresh(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, ErrUnknownProject):
				a.logger.Debug("dropping terms for removed project", "project_id", id)
			default:
				a.MarkDirty(id)
				a.logger.Error("term refresh failed", "project_id", id, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	g.Wait()

	a.logger.Info("frequency flush complete", "projects", len(projects), "failed", len(errs))
	return errors.Join(errs...)
}

// Forget drops a project's terms and any pending recomputation.
func (a *Analyzer) Forget(ctx context.Context, projectID uuid.UUID) error {
	unlock := a.locks.Lock(projectID)
	defer unlock()

	a.mu.Lock()
	delete(a.dirty, projectID)
	a.backlog.Set(int64(len(a.dirty)))
	a.mu.Unlock()

	return a.store.Forget(ctx, projectID)
}

// Start flushes the dirty set every window until shutdown.
func (a *Analyzer) Start(lc *lifecycle.Coordinator, window time.Duration) {
	a.logger.Info("frequency analyzer scheduled", "window", window, "workers", a.workers)
	lc.Every(window, func(ctx context.Context) {
		a.Flush(ctx)
	})
}

func (a *Analyzer) drain() []uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(a.dirty))
	for id := range a.dirty {
		ids = append(ids, id)
	}
	clear(a.dirty)
	a.backlog.Set(0)

	slices.SortFunc(ids, func(x, y uuid.UUID) int {
		return cmp.Compare(x.String(), y.String())
	})
	return ids
}
