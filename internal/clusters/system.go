package clusters

import (
	"context"

	"github.com/google/uuid"
)

// CounterStore reads and conditionally writes cluster aggregates.
type CounterStore interface {
	Load(ctx context.Context, id uuid.UUID) (Counter, error)

	// Swap writes next if the stored version still equals version, bumping
	// the version. It reports false when another writer got there first or
	// the cluster is gone.
	Swap(ctx context.Context, id uuid.UUID, version int64, next Counter) (bool, error)
}

// System defines the public contract for the cluster catalog.
type System interface {
	CounterStore

	Handler(maxBodySize int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*Cluster, error)
	Find(ctx context.Context, id uuid.UUID) (*Cluster, error)
	List(ctx context.Context, projectID uuid.UUID) ([]Cluster, error)
	ProjectIDs(ctx context.Context) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
