package frequency

import (
	"context"

	"github.com/google/uuid"
)

// Store persists computed term tables. The table is a cache: it can always
// be rebuilt from the result store.
type Store interface {
	// Replace atomically swaps a project's terms for the given set.
	Replace(ctx context.Context, projectID uuid.UUID, terms []Term) error

	// List returns a project's terms ordered by frequency descending and
	// term ascending. A limit of zero or less returns every term.
	List(ctx context.Context, projectID uuid.UUID, limit int) ([]Term, error)

	// Forget drops every term of a project.
	Forget(ctx context.Context, projectID uuid.UUID) error
}
