package clusters

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/keylock"
	"github.com/JaimeStill/pulse/pkg/metrics"
	"github.com/JaimeStill/pulse/pkg/repository"
	"github.com/JaimeStill/pulse/pkg/retry"
)

// ExactFunc computes a cluster's true membership from the result store.
type ExactFunc func(ctx context.Context, clusterID uuid.UUID) (*results.Total, error)

// Resync describes one exact recomputation of a cluster counter.
type Resync struct {
	ClusterID uuid.UUID
	Before    Counter
	After     Counter
	Corrected bool
	Deferred  bool
}

// Aggregator applies membership deltas to cluster counters.
//
// Updates to one cluster are serialized in-process by a keyed lock and
// across processes by the counter version: each delta is a load followed
// by a compare-and-swap, retried on conflict under the configured policy.
// A delta that cannot be applied is not returned to the caller as an
// error; the cluster is queued in Pending for the reconciler instead.
//
// Callers bracket a membership write with Begin so that Resync never
// counts a stored member whose delta has not been applied yet.
type Aggregator struct {
	counters CounterStore
	pending  *Pending
	locks    *keylock.Map[uuid.UUID]
	policy   retry.Policy
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]int

	applied   *metrics.Counter
	conflicts *metrics.Counter
	deferred  *metrics.Counter
}

// NewAggregator creates an Aggregator over counters. Conflicts are retried
// according to policy.
func NewAggregator(
	counters CounterStore,
	pending *Pending,
	policy retry.Policy,
	reg *metrics.Registry,
	logger *slog.Logger,
) *Aggregator {
	policy.Retryable = func(err error) bool {
		return errors.Is(err, ErrConflict) || repository.IsTransient(err)
	}

	return &Aggregator{
		counters:  counters,
		pending:   pending,
		locks:     keylock.New[uuid.UUID](),
		policy:    policy,
		inflight:  make(map[uuid.UUID]int),
		logger:    logger.With("system", "aggregator"),
		applied:   reg.Counter("cluster_updates_total", "Cluster counter deltas applied."),
		conflicts: reg.Counter("cluster_conflicts_total", "Cluster compare-and-swap conflicts retried."),
		deferred:  reg.Counter("cluster_deferred_total", "Cluster deltas deferred to the reconciler."),
	}
}

// Pending returns the set of clusters queued for reconciliation.
func (a *Aggregator) Pending() *Pending {
	return a.pending
}

// Begin marks a membership write touching the given clusters as in flight.
// Nil ids are ignored. The returned done must be called once the result
// store mutation and its deltas have both been applied; calling it again
// is a no-op.
func (a *Aggregator) Begin(ids ...*uuid.UUID) (done func()) {
	var held []uuid.UUID
	a.mu.Lock()
	for _, id := range ids {
		if id == nil || slices.Contains(held, *id) {
			continue
		}
		held = append(held, *id)
		a.inflight[*id]++
	}
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for _, id := range held {
				a.inflight[id]--
				if a.inflight[id] <= 0 {
					delete(a.inflight, id)
				}
			}
		})
	}
}

// InFlight reports whether a write to the cluster is between Begin and done.
func (a *Aggregator) InFlight(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight[id] > 0
}

// OnInsert adds a member with the given sentiment. A nil cluster is a no-op.
func (a *Aggregator) OnInsert(ctx context.Context, clusterID *uuid.UUID, sentiment float64) error {
	if clusterID == nil {
		return nil
	}
	return a.apply(ctx, *clusterID, "insert", func(c Counter) (Counter, bool) {
		return c.withInsert(sentiment), false
	})
}

// OnRemove takes a member with the given sentiment out. A nil cluster is a no-op.
func (a *Aggregator) OnRemove(ctx context.Context, clusterID *uuid.UUID, sentiment float64) error {
	if clusterID == nil {
		return nil
	}
	return a.apply(ctx, *clusterID, "remove", func(c Counter) (Counter, bool) {
		return c.withRemove(sentiment)
	})
}

// OnReassign moves a member between clusters. Either side may be nil;
// moving within the same cluster is a no-op. The two sides are applied
// independently and never hold both cluster locks at once.
func (a *Aggregator) OnReassign(ctx context.Context, from, to *uuid.UUID, sentiment float64) error {
	if sameCluster(from, to) {
		return nil
	}
	return errors.Join(
		a.OnRemove(ctx, from, sentiment),
		a.OnInsert(ctx, to, sentiment),
	)
}

// Resync overwrites a cluster's counter with its exact membership when the
// two differ in size or by more than tolerance in average. A concurrent
// writer winning the swap leaves the cluster queued for the next pass, as
// does a write still in flight: its row may already be counted while its
// delta is still to come.
func (a *Aggregator) Resync(ctx context.Context, id uuid.UUID, exact ExactFunc, tolerance float64) (*Resync, error) {
	unlock := a.locks.Lock(id)
	defer unlock()

	cur, err := a.counters.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	total, err := exact(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &Resync{
		ClusterID: id,
		Before:    cur,
		After:     Counter{Size: total.Size, AvgSentiment: total.AvgSentiment, Version: cur.Version},
	}

	if a.InFlight(id) {
		a.pending.Add(id)
		out.After = cur
		out.Deferred = true
		return out, nil
	}

	if cur.Size == total.Size && Drift(cur.AvgSentiment, total.AvgSentiment) <= tolerance {
		a.pending.Remove(id)
		return out, nil
	}

	ok, err := a.counters.Swap(ctx, id, cur.Version, out.After)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.pending.Add(id)
		out.Deferred = true
		return out, nil
	}

	a.pending.Remove(id)
	out.After.Version++
	out.Corrected = true
	return out, nil
}

func (a *Aggregator) apply(ctx context.Context, id uuid.UUID, op string, delta func(Counter) (Counter, bool)) error {
	unlock := a.locks.Lock(id)
	defer unlock()

	policy := a.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.conflicts.Inc()
		a.logger.Debug("cluster update retry",
			"cluster_id", id, "op", op, "attempt", attempt, "delay", delay, "error", err,
		)
	}

	var drifted bool
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		cur, err := a.counters.Load(ctx, id)
		if err != nil {
			return err
		}

		next, drift := delta(cur)
		ok, err := a.counters.Swap(ctx, id, cur.Version, next)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		drifted = drift
		return nil
	})

	switch {
	case err == nil:
		a.applied.Inc()
		if drifted {
			a.pending.Add(id)
			a.logger.Warn("cluster counter cannot account for removal; queued for reconcile",
				"cluster_id", id, "op", op,
			)
		}
		return nil
	case errors.Is(err, ErrNotFound):
		a.logger.Debug("dangling cluster reference ignored", "cluster_id", id, "op", op)
		return nil
	}

	a.pending.Add(id)
	a.deferred.Inc()
	a.logger.Error("cluster update deferred to reconciler",
		"cluster_id", id, "op", op, "error", err,
	)
	return ctx.Err()
}

func sameCluster(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
