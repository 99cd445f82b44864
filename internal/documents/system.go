package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxBodySize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)

	// Register records a document-created notification. Redelivery of the
	// same notification returns the stored document with created=false.
	Register(ctx context.Context, cmd RegisterCommand) (doc *Document, created bool, err error)

	// Delete removes a single document row. Callers retract the document's
	// analysis result first; see the engine package.
	Delete(ctx context.Context, id uuid.UUID) error

	// PurgeProject removes the project record and everything it owns.
	PurgeProject(ctx context.Context, projectID uuid.UUID) error
}
