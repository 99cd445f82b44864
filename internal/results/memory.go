package results

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Lookup resolves an id to its owning project.
type Lookup func(ctx context.Context, id uuid.UUID) (projectID uuid.UUID, ok bool)

// Memory is an in-process Store guarded by a single mutex. Documents and
// clusters are resolved through lookups so it can run beside the other
// in-memory systems.
type Memory struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]Result
	documents Lookup
	clusters  Lookup
	logger    *slog.Logger
}

// NewMemory creates an empty in-memory Store.
func NewMemory(documents, clusters Lookup, logger *slog.Logger) *Memory {
	return &Memory{
		rows:      make(map[uuid.UUID]Result),
		documents: documents,
		clusters:  clusters,
		logger:    logger.With("system", "results"),
	}
}

func (m *Memory) Record(ctx context.Context, cmd RecordCommand) (*Result, bool, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rows[cmd.DocumentID]; ok {
		if !cmd.matches(&existing) {
			return nil, false, errConflictingRedelivery
		}
		m.logger.Debug("duplicate result ignored", "document_id", cmd.DocumentID)
		return clone(existing), false, nil
	}

	projectID, ok := m.documents(ctx, cmd.DocumentID)
	if !ok {
		return nil, false, ErrUnknownDocument
	}

	now := timeNow()
	r := Result{
		DocumentID:     cmd.DocumentID,
		ProjectID:      projectID,
		SentimentScore: cmd.SentimentScore,
		SentimentLabel: cmd.SentimentLabel,
		Keywords:       cmd.Keywords,
		Topics:         cmd.Topics,
		ClusterID:      m.resolveCluster(ctx, projectID, cmd.DocumentID, cmd.ClusterID),
		PainPoints:     cmd.PainPoints,
		Confidence:     cmd.Confidence,
		AnalyzedAt:     cmd.analyzedAt(now),
		UpdatedAt:      now,
	}
	m.rows[r.DocumentID] = r

	return clone(r), true, nil
}

func (m *Memory) Reassign(ctx context.Context, documentID uuid.UUID, clusterID *uuid.UUID) (*Reassignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[documentID]
	if !ok {
		return nil, ErrNotFound
	}

	previous := r.ClusterID
	next := m.resolveCluster(ctx, r.ProjectID, documentID, clusterID)
	if !sameCluster(previous, next) {
		r.ClusterID = next
		r.UpdatedAt = timeNow()
		m.rows[documentID] = r
	}

	return &Reassignment{Result: clone(r), Previous: previous}, nil
}

func (m *Memory) Remove(_ context.Context, documentID uuid.UUID) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.rows, documentID)

	m.logger.Info("result removed", "document_id", documentID)
	return clone(r), nil
}

func (m *Memory) Find(_ context.Context, documentID uuid.UUID) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

func (m *Memory) ListByProject(_ context.Context, projectID uuid.UUID) ([]Result, error) {
	m.mu.Lock()
	items := make([]Result, 0)
	for _, r := range m.rows {
		if r.ProjectID == projectID {
			items = append(items, *clone(r))
		}
	}
	m.mu.Unlock()

	slices.SortFunc(items, func(a, b Result) int {
		if c := a.AnalyzedAt.Compare(b.AnalyzedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID.String(), b.DocumentID.String())
	})
	return items, nil
}

func (m *Memory) ProjectIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	seen := make(map[uuid.UUID]struct{})
	for _, r := range m.rows {
		seen[r.ProjectID] = struct{}{}
	}
	m.mu.Unlock()

	return sortedIDs(seen), nil
}

func (m *Memory) ClusterTotal(_ context.Context, clusterID uuid.UUID) (*Total, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := Total{ClusterID: clusterID}
	var sum float64
	for _, r := range m.rows {
		if r.ClusterID != nil && *r.ClusterID == clusterID {
			total.Size++
			sum += r.SentimentScore
		}
	}
	if total.Size > 0 {
		avg := sum / float64(total.Size)
		total.AvgSentiment = &avg
	}
	return &total, nil
}

func (m *Memory) DetachCluster(_ context.Context, clusterID uuid.UUID) (int64, error) {
	return m.rewrite(clusterID, nil), nil
}

func (m *Memory) MoveCluster(_ context.Context, from, to uuid.UUID) (int64, error) {
	return m.rewrite(from, &to), nil
}

func (m *Memory) rewrite(from uuid.UUID, to *uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := timeNow()
	for id, r := range m.rows {
		if r.ClusterID == nil || *r.ClusterID != from {
			continue
		}
		if to != nil {
			target := *to
			r.ClusterID = &target
		} else {
			r.ClusterID = nil
		}
		r.UpdatedAt = now
		m.rows[id] = r
		n++
	}
	return n
}

func (m *Memory) resolveCluster(ctx context.Context, projectID, documentID uuid.UUID, clusterID *uuid.UUID) *uuid.UUID {
	if clusterID == nil {
		return nil
	}
	owner, ok := m.clusters(ctx, *clusterID)
	if !ok || owner != projectID {
		m.logger.Warn("dangling cluster reference stored as unclustered",
			"document_id", documentID,
			"cluster_id", *clusterID,
		)
		return nil
	}
	id := *clusterID
	return &id
}

func clone(r Result) *Result {
	r.Keywords = slices.Clone(r.Keywords)
	r.Topics = slices.Clone(r.Topics)
	r.PainPoints = slices.Clone(r.PainPoints)
	if r.ClusterID != nil {
		id := *r.ClusterID
		r.ClusterID = &id
	}
	return &r
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})
	return ids
}
