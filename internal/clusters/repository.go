package clusters

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Postgres-backed cluster catalog implementing System.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "clusters"),
	}
}

func (r *repo) Handler(maxBodySize int64) *Handler {
	return NewHandler(r, r.logger, maxBodySize)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Cluster, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	keywords, err := json.Marshal(cmd.Keywords)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO clusters(id, project_id, name, description, keywords)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, project_id, name, description, keywords, size, avg_sentiment, version, created_at, updated_at`

	args := []any{cmd.id(), cmd.ProjectID, cmd.Name, cmd.Description, string(keywords)}

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Cluster, error) {
		return repository.QueryOne(ctx, tx, q, args, scanCluster)
	})
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, invalid("project does not exist")
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("cluster created", "id", c.ID, "project_id", c.ProjectID)
	return &c, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Cluster, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCluster)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, projectID uuid.UUID) ([]Cluster, error) {
	q, args := query.
		NewBuilder(projection, sizeSort...).
		WhereEquals("ProjectID", projectID).
		Build()

	return repository.QueryMany(ctx, r.db, q, args, scanCluster)
}

func (r *repo) ProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	return repository.QueryMany(ctx, r.db,
		"SELECT DISTINCT project_id FROM clusters ORDER BY project_id",
		nil,
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM clusters WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("cluster deleted", "id", id)
	return nil
}

func (r *repo) Load(ctx context.Context, id uuid.UUID) (Counter, error) {
	c, err := repository.QueryOne(ctx, r.db,
		"SELECT size, avg_sentiment, version FROM clusters WHERE id = $1",
		[]any{id},
		scanCounter,
	)
	if err != nil {
		return Counter{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return c, nil
}

func (r *repo) Swap(ctx context.Context, id uuid.UUID, version int64, next Counter) (bool, error) {
	n, err := repository.ExecCount(ctx, r.db, `
		UPDATE clusters
		SET size = $3, avg_sentiment = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`,
		id, version, next.Size, nullFloat(next.AvgSentiment),
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
