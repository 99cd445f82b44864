// Package engine is the ingest path of the aggregation engine. It applies
// analyzer events and collection notifications to the result store and
// keeps cluster counters and term tables in step with every mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/keylock"
	"github.com/JaimeStill/pulse/pkg/metrics"
)

// Documents is the slice of the document system the engine mutates.
type Documents interface {
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeProject(ctx context.Context, projectID uuid.UUID) error
}

// Catalog is the slice of the cluster catalog the engine mutates.
type Catalog interface {
	Find(ctx context.Context, id uuid.UUID) (*clusters.Cluster, error)
	List(ctx context.Context, projectID uuid.UUID) ([]clusters.Cluster, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Engine serializes work per document and sequences each mutation with its
// aggregate update: inserts and reassignments are applied to the result
// store first, removals are applied to the aggregates first, so a cluster
// never loses track of a member that is still stored.
type Engine struct {
	results    results.Store
	documents  Documents
	catalog    Catalog
	aggregator *clusters.Aggregator
	frequency  *frequency.Analyzer
	locks      *keylock.Map[uuid.UUID]
	logger     *slog.Logger

	recorded   *metrics.Counter
	duplicates *metrics.Counter
	rejected   *metrics.Counter
	removed    *metrics.Counter
	latency    *metrics.Histogram
}

// New creates an Engine.
func New(
	store results.Store,
	docs Documents,
	catalog Catalog,
	aggregator *clusters.Aggregator,
	analyzer *frequency.Analyzer,
	reg *metrics.Registry,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		results:    store,
		documents:  docs,
		catalog:    catalog,
		aggregator: aggregator,
		frequency:  analyzer,
		locks:      keylock.New[uuid.UUID](),
		logger:     logger.With("system", "engine"),

		recorded:   reg.Counter("results_recorded_total", "Analysis results stored."),
		duplicates: reg.Counter("results_duplicate_total", "Redelivered analysis results ignored."),
		rejected:   reg.Counter("results_rejected_total", "Analysis results rejected by validation."),
		removed:    reg.Counter("results_removed_total", "Analysis results retracted."),
		latency: reg.Histogram("ingest_seconds", "Latency of recording one analysis result.",
			[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}),
	}
}

// Handler returns the HTTP handler for engine operations.
func (e *Engine) Handler(maxBodySize int64) *Handler {
	return NewHandler(e, e.logger, maxBodySize)
}

// Record stores an analysis result and folds it into its cluster. A
// redelivered event returns the stored result with inserted=false and
// touches no aggregate. Rejected events never reach the aggregator.
func (e *Engine) Record(ctx context.Context, cmd results.RecordCommand) (*results.Result, bool, error) {
	start := time.Now()
	defer func() { e.latency.Observe(time.Since(start).Seconds()) }()

	unlock := e.locks.Lock(cmd.DocumentID)
	defer unlock()

	done := e.aggregator.Begin(cmd.ClusterID)
	defer done()

	res, inserted, err := e.results.Record(ctx, cmd)
	if err != nil {
		if errors.Is(err, results.ErrValidation) || errors.Is(err, results.ErrUnknownDocument) {
			e.rejected.Inc()
			e.logger.Warn("analysis result rejected", "document_id", cmd.DocumentID, "error", err)
		}
		return nil, false, err
	}

	if !inserted {
		e.duplicates.Inc()
		return res, false, nil
	}

	e.recorded.Inc()
	e.frequency.MarkDirty(res.ProjectID)
	if err := e.aggregator.OnInsert(ctx, res.ClusterID, res.SentimentScore); err != nil {
		e.logger.Warn("result stored; cluster update deferred",
			"document_id", res.DocumentID, "cluster_id", res.ClusterID, "error", err,
		)
	}

	return res, true, nil
}

// Reassign moves a document's result to another cluster, or unclusters it
// when clusterID is nil.
func (e *Engine) Reassign(ctx context.Context, documentID uuid.UUID, clusterID *uuid.UUID) (*results.Reassignment, error) {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	cur, err := e.results.Find(ctx, documentID)
	if err != nil {
		return nil, err
	}

	done := e.aggregator.Begin(cur.ClusterID, clusterID)
	defer done()

	ra, err := e.results.Reassign(ctx, documentID, clusterID)
	if err != nil {
		return nil, err
	}

	if err := e.aggregator.OnReassign(ctx, ra.Previous, ra.Result.ClusterID, ra.Result.SentimentScore); err != nil {
		e.logger.Warn("result reassigned; cluster update deferred",
			"document_id", documentID, "error", err,
		)
	}

	e.logger.Debug("result reassigned",
		"document_id", documentID, "from", ra.Previous, "to", ra.Result.ClusterID,
	)
	return ra, nil
}

// RemoveDocument handles a document-deleted notification: the document's
// result is retracted from its cluster and removed, then the document row.
func (e *Engine) RemoveDocument(ctx context.Context, documentID uuid.UUID) error {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	res, err := e.retract(ctx, documentID)
	if err != nil {
		return err
	}

	if err := e.documents.Delete(ctx, documentID); err != nil {
		return err
	}

	if res != nil {
		e.frequency.MarkDirty(res.ProjectID)
	}
	return nil
}

// RemoveProject retracts every result of a project from its clusters
// before the project and everything it owns are removed.
func (e *Engine) RemoveProject(ctx context.Context, projectID uuid.UUID) error {
	items, err := e.results.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}

	for _, r := range items {
		unlock := e.locks.Lock(r.DocumentID)
		_, err := e.retract(ctx, r.DocumentID)
		unlock()
		if err != nil {
			return fmt.Errorf("retract %s: %w", r.DocumentID, err)
		}
	}

	cs, err := e.catalog.List(ctx, projectID)
	if err != nil {
		return err
	}
	for _, c := range cs {
		if err := e.catalog.Delete(ctx, c.ID); err != nil && !errors.Is(err, clusters.ErrNotFound) {
			return err
		}
		e.aggregator.Pending().Remove(c.ID)
	}

	if err := e.frequency.Forget(ctx, projectID); err != nil {
		return err
	}

	err = e.documents.PurgeProject(ctx, projectID)
	if errors.Is(err, documents.ErrNotFound) && (len(items) > 0 || len(cs) > 0) {
		err = nil
	}
	if err != nil {
		return err
	}

	e.logger.Info("project removed",
		"project_id", projectID, "results", len(items), "clusters", len(cs),
	)
	return nil
}

// DeleteCluster removes a cluster. Its members become unclustered.
func (e *Engine) DeleteCluster(ctx context.Context, clusterID uuid.UUID) error {
	if _, err := e.catalog.Find(ctx, clusterID); err != nil {
		return err
	}

	if err := e.catalog.Delete(ctx, clusterID); err != nil {
		return err
	}

	detached, err := e.results.DetachCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	e.aggregator.Pending().Remove(clusterID)

	e.logger.Info("cluster deleted", "cluster_id", clusterID, "detached", detached)
	return nil
}

// MergeClusters moves every member of source into target, deletes source,
// and recomputes target from its exact membership.
func (e *Engine) MergeClusters(ctx context.Context, sourceID, targetID uuid.UUID) (*clusters.Cluster, error) {
	if sourceID == targetID {
		return nil, fmt.Errorf("%w: cannot merge a cluster into itself", clusters.ErrInvalidCluster)
	}

	source, err := e.catalog.Find(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := e.catalog.Find(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if source.ProjectID != target.ProjectID {
		return nil, clusters.ErrProjectMismatch
	}

	moved, err := e.results.MoveCluster(ctx, sourceID, targetID)
	if err != nil {
		return nil, err
	}

	if err := e.catalog.Delete(ctx, sourceID); err != nil {
		return nil, err
	}
	e.aggregator.Pending().Remove(sourceID)

	out, err := e.aggregator.Resync(ctx, targetID, e.results.ClusterTotal, 0)
	switch {
	case err != nil:
		e.aggregator.Pending().Add(targetID)
		e.logger.Error("merged cluster resync failed; queued for reconcile",
			"cluster_id", targetID, "error", err,
		)
	case out.Deferred:
		e.logger.Info("merged cluster has writes in flight; queued for reconcile", "cluster_id", targetID)
	}

	e.logger.Info("clusters merged", "source", sourceID, "target", targetID, "moved", moved)
	return e.catalog.Find(ctx, targetID)
}

// retract takes a document's result out of its cluster and then deletes
// it. The caller holds the document lock. A document without a result
// returns nil.
func (e *Engine) retract(ctx context.Context, documentID uuid.UUID) (*results.Result, error) {
	cur, err := e.results.Find(ctx, documentID)
	if errors.Is(err, results.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	done := e.aggregator.Begin(cur.ClusterID)
	defer done()

	if err := e.aggregator.OnRemove(ctx, cur.ClusterID, cur.SentimentScore); err != nil {
		return nil, err
	}

	removed, err := e.results.Remove(ctx, documentID)
	if err != nil {
		// Restore the member; a failed restore leaves the cluster queued.
		_ = e.aggregator.OnInsert(ctx, cur.ClusterID, cur.SentimentScore)
		if errors.Is(err, results.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// A cluster-wide detach or move can rewrite membership without taking
	// the document lock; settle the difference.
	if !sameCluster(cur.ClusterID, removed.ClusterID) {
		_ = e.aggregator.OnReassign(ctx, removed.ClusterID, cur.ClusterID, cur.SentimentScore)
	}

	e.removed.Inc()
	return removed, nil
}

func sameCluster(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
