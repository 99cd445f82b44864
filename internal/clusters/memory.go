package clusters

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process System used by tests and offline replay.
type Memory struct {
	mu       sync.RWMutex
	clusters map[uuid.UUID]Cluster
	logger   *slog.Logger
}

// NewMemory creates an empty in-memory cluster catalog.
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		clusters: make(map[uuid.UUID]Cluster),
		logger:   logger.With("system", "clusters"),
	}
}

func (m *Memory) Handler(maxBodySize int64) *Handler {
	return NewHandler(m, m.logger, maxBodySize)
}

func (m *Memory) Create(_ context.Context, cmd CreateCommand) (*Cluster, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := cmd.id()
	if _, ok := m.clusters[id]; ok {
		return nil, ErrDuplicate
	}

	now := time.Now().UTC()
	c := Cluster{
		ID:          id,
		ProjectID:   cmd.ProjectID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Keywords:    cmd.Keywords,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.clusters[id] = c

	m.logger.Info("cluster created", "id", c.ID, "project_id", c.ProjectID)
	return clone(c), nil
}

func (m *Memory) Find(_ context.Context, id uuid.UUID) (*Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clusters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// ProjectOf resolves a cluster to its project.
func (m *Memory) ProjectOf(_ context.Context, id uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clusters[id]
	return c.ProjectID, ok
}

func (m *Memory) List(_ context.Context, projectID uuid.UUID) ([]Cluster, error) {
	m.mu.RLock()
	items := make([]Cluster, 0)
	for _, c := range m.clusters {
		if c.ProjectID == projectID {
			items = append(items, *clone(c))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(items, func(a, b Cluster) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return items, nil
}

func (m *Memory) ProjectIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	seen := make(map[uuid.UUID]struct{})
	for _, c := range m.clusters {
		seen[c.ProjectID] = struct{}{}
	}
	m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})
	return ids, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clusters[id]; !ok {
		return ErrNotFound
	}
	delete(m.clusters, id)

	m.logger.Info("cluster deleted", "id", id)
	return nil
}

func (m *Memory) Load(_ context.Context, id uuid.UUID) (Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clusters[id]
	if !ok {
		return Counter{}, ErrNotFound
	}
	return Counter{Size: c.Size, AvgSentiment: copyFloat(c.AvgSentiment), Version: c.Version}, nil
}

func (m *Memory) Swap(_ context.Context, id uuid.UUID, version int64, next Counter) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clusters[id]
	if !ok || c.Version != version {
		return false, nil
	}

	c.Size = next.Size
	c.AvgSentiment = copyFloat(next.AvgSentiment)
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	m.clusters[id] = c
	return true, nil
}

func clone(c Cluster) *Cluster {
	c.Keywords = slices.Clone(c.Keywords)
	c.AvgSentiment = copyFloat(c.AvgSentiment)
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
