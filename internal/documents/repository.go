package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/pagination"
	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Postgres-backed document repository implementing System.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxBodySize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxBodySize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Title", "SourceURL")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Register(ctx context.Context, cmd RegisterCommand) (*Document, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}
	d := cmd.document(time.Now().UTC())

	// The task join rejects notifications whose task is unknown or belongs
	// to another project without raising a foreign key error.
	insert := `
		INSERT INTO documents(id, task_id, project_id, source_type, source_url, title, collected_at)
		SELECT $1, t.id, t.project_id, $4, $5, $6, $7
		FROM tasks t
		WHERE t.id = $2 AND t.project_id = $3
		ON CONFLICT (id) DO NOTHING`

	type outcome struct {
		doc     Document
		created bool
	}

	out, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (outcome, error) {
		n, err := repository.ExecCount(
			ctx, tx, insert,
			d.ID, d.TaskID, d.ProjectID, d.SourceType, d.SourceURL, d.Title, d.CollectedAt,
		)
		if err != nil {
			return outcome{}, err
		}

		q, args := query.NewBuilder(projection).BuildSingle("ID", d.ID)
		stored, err := repository.QueryOne(ctx, tx, q, args, scanDocument)
		if errors.Is(err, sql.ErrNoRows) {
			return outcome{}, ErrUnknownTask
		}
		if err != nil {
			return outcome{}, err
		}
		return outcome{doc: stored, created: n == 1}, nil
	})
	if err != nil {
		return nil, false, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if !out.created && !out.doc.sameOwner(cmd) {
		return nil, false, ErrDuplicate
	}

	if out.created {
		r.logger.Info("document registered", "id", out.doc.ID, "project_id", out.doc.ProjectID)
	}
	return &out.doc, out.created, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func (r *repo) PurgeProject(ctx context.Context, projectID uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM projects WHERE id = $1", projectID)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("project purged", "project_id", projectID)
	return nil
}
