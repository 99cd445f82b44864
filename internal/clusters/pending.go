package clusters

import (
	"cmp"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/metrics"
)

// Pending is the set of clusters whose counters are known or suspected to
// have drifted and are waiting for the reconciler.
type Pending struct {
	mu    sync.Mutex
	ids   map[uuid.UUID]struct{}
	gauge *metrics.Gauge
}

// NewPending creates an empty set reporting its size to the cluster_pending gauge.
func NewPending(reg *metrics.Registry) *Pending {
	return &Pending{
		ids:   make(map[uuid.UUID]struct{}),
		gauge: reg.Gauge("cluster_pending", "Clusters queued for reconciliation."),
	}
}

// Add queues a cluster.
func (p *Pending) Add(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[id] = struct{}{}
	p.gauge.Set(int64(len(p.ids)))
}

// Remove dequeues a cluster.
func (p *Pending) Remove(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, id)
	p.gauge.Set(int64(len(p.ids)))
}

// Contains reports whether a cluster is queued.
func (p *Pending) Contains(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	return ok
}

// Len returns the number of queued clusters.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// Drain empties the set and returns its members in a stable order.
func (p *Pending) Drain() []uuid.UUID {
	p.mu.Lock()
	ids := make([]uuid.UUID, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	clear(p.ids)
	p.gauge.Set(0)
	p.mu.Unlock()

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})
	return ids
}
