package results

import (
	"context"

	"github.com/google/uuid"
)

// Store persists analysis results. Operations on the same document are
// atomic with respect to each other.
type Store interface {
	// Record validates and stores a result. A redelivered event with the
	// same payload returns the stored row with inserted=false. A cluster id
	// that does not exist in the document's project is stored as null.
	Record(ctx context.Context, cmd RecordCommand) (result *Result, inserted bool, err error)

	// Reassign changes cluster membership and reports the previous cluster.
	Reassign(ctx context.Context, documentID uuid.UUID, clusterID *uuid.UUID) (*Reassignment, error)

	// Remove deletes a result and returns its last-known state.
	Remove(ctx context.Context, documentID uuid.UUID) (*Result, error)

	Find(ctx context.Context, documentID uuid.UUID) (*Result, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Result, error)
	ProjectIDs(ctx context.Context) ([]uuid.UUID, error)

	// ClusterTotal counts the results currently assigned to a cluster.
	ClusterTotal(ctx context.Context, clusterID uuid.UUID) (*Total, error)

	// DetachCluster unclusters every member of a cluster.
	DetachCluster(ctx context.Context, clusterID uuid.UUID) (int64, error)

	// MoveCluster reassigns every member of one cluster to another.
	MoveCluster(ctx context.Context, from, to uuid.UUID) (int64, error)
}
