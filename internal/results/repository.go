package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
	"github.com/JaimeStill/pulse/pkg/retry"
)

const insertResult = `
	INSERT INTO results(document_id, sentiment_score, sentiment_label, keywords, topics, cluster_id, pain_points, confidence, analyzed_at)
	VALUES ($1, $2, $3, $4::jsonb, $5::jsonb,
		(SELECT c.id FROM clusters c WHERE c.id = $6 AND c.project_id = $7),
		$8::jsonb, $9, $10)
	ON CONFLICT (document_id) DO NOTHING`

const reassignResult = `
	UPDATE results
	SET cluster_id = (SELECT c.id FROM clusters c WHERE c.id = $2 AND c.project_id = $3),
		updated_at = now()
	WHERE document_id = $1`

type repo struct {
	db      *sql.DB
	retrier repository.Retrier
	logger  *slog.Logger
}

// New creates a Postgres-backed Store. Each operation runs under the
// retrier; failures that outlast it are reported as ErrStorage.
func New(db *sql.DB, retrier repository.Retrier, logger *slog.Logger) Store {
	return &repo{
		db:      db,
		retrier: retrier,
		logger:  logger.With("system", "results"),
	}
}

type recordOutcome struct {
	result   Result
	inserted bool
}

func (r *repo) Record(ctx context.Context, cmd RecordCommand) (*Result, bool, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}

	var out recordOutcome
	err := r.run(ctx, "record", func(ctx context.Context) error {
		var err error
		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (recordOutcome, error) {
			return r.record(ctx, tx, cmd)
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if !out.inserted {
		if !cmd.matches(&out.result) {
			return nil, false, errConflictingRedelivery
		}
		r.logger.Debug("duplicate result ignored", "document_id", cmd.DocumentID)
		return &out.result, false, nil
	}

	if cmd.ClusterID != nil && out.result.ClusterID == nil {
		r.logger.Warn("dangling cluster reference stored as unclustered",
			"document_id", cmd.DocumentID,
			"cluster_id", *cmd.ClusterID,
		)
	}

	return &out.result, true, nil
}

func (r *repo) record(ctx context.Context, tx *sql.Tx, cmd RecordCommand) (recordOutcome, error) {
	var projectID uuid.UUID
	err := tx.QueryRowContext(ctx,
		"SELECT project_id FROM documents WHERE id = $1 FOR SHARE",
		cmd.DocumentID,
	).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return recordOutcome{}, ErrUnknownDocument
	}
	if err != nil {
		return recordOutcome{}, err
	}

	n, err := repository.ExecCount(ctx, tx, insertResult,
		cmd.DocumentID,
		cmd.SentimentScore,
		string(cmd.SentimentLabel),
		encodeList(cmd.Keywords),
		encodeList(cmd.Topics),
		nullable(cmd.ClusterID),
		projectID,
		encodeList(cmd.PainPoints),
		cmd.Confidence,
		cmd.analyzedAt(timeNow()),
	)
	if err != nil {
		return recordOutcome{}, err
	}

	q, args := query.NewBuilder(projection).BuildSingle("DocumentID", cmd.DocumentID)
	stored, err := repository.QueryOne(ctx, tx, q, args, scanResult)
	if err != nil {
		return recordOutcome{}, err
	}

	return recordOutcome{result: stored, inserted: n == 1}, nil
}

func (r *repo) Reassign(ctx context.Context, documentID uuid.UUID, clusterID *uuid.UUID) (*Reassignment, error) {
	var out Reassignment
	err := r.run(ctx, "reassign", func(ctx context.Context) error {
		res, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Reassignment, error) {
			var (
				previous  uuid.NullUUID
				projectID uuid.UUID
			)
			err := tx.QueryRowContext(ctx, `
				SELECT r.cluster_id, d.project_id
				FROM results r JOIN documents d ON d.id = r.document_id
				WHERE r.document_id = $1
				FOR UPDATE OF r`,
				documentID,
			).Scan(&previous, &projectID)
			if err != nil {
				return Reassignment{}, err
			}

			if _, err := tx.ExecContext(ctx, reassignResult, documentID, nullable(clusterID), projectID); err != nil {
				return Reassignment{}, err
			}

			q, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)
			stored, err := repository.QueryOne(ctx, tx, q, args, scanResult)
			if err != nil {
				return Reassignment{}, err
			}

			out := Reassignment{Result: &stored}
			if previous.Valid {
				id := previous.UUID
				out.Previous = &id
			}
			return out, nil
		})
		out = res
		return err
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrValidation)
	}

	if clusterID != nil && out.Result.ClusterID == nil {
		r.logger.Warn("dangling cluster reference stored as unclustered",
			"document_id", documentID,
			"cluster_id", *clusterID,
		)
	}
	return &out, nil
}

func (r *repo) Remove(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	var removed Result
	err := r.run(ctx, "remove", func(ctx context.Context) error {
		res, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Result, error) {
			q, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)
			stored, err := repository.QueryOne(ctx, tx, q+" FOR UPDATE OF r", args, scanResult)
			if err != nil {
				return Result{}, err
			}

			if err := repository.ExecExpectOne(ctx, tx,
				"DELETE FROM results WHERE document_id = $1",
				documentID,
			); err != nil {
				return Result{}, err
			}
			return stored, nil
		})
		removed = res
		return err
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrValidation)
	}

	r.logger.Info("result removed", "document_id", documentID)
	return &removed, nil
}

func (r *repo) Find(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	var found Result
	err := r.run(ctx, "find", func(ctx context.Context) error {
		q, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)
		res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
		found = res
		return err
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrValidation)
	}
	return &found, nil
}

func (r *repo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]Result, error) {
	var items []Result
	err := r.run(ctx, "list", func(ctx context.Context) error {
		q, args := query.
			NewBuilder(projection, defaultSort).
			WhereEquals("ProjectID", projectID).
			Build()

		res, err := repository.QueryMany(ctx, r.db, q, args, scanResult)
		items = res
		return err
	})
	return items, err
}

func (r *repo) ProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.run(ctx, "project ids", func(ctx context.Context) error {
		res, err := repository.QueryMany(ctx, r.db, `
			SELECT DISTINCT d.project_id
			FROM results r JOIN documents d ON d.id = r.document_id
			ORDER BY d.project_id`,
			nil, scanUUID,
		)
		ids = res
		return err
	})
	return ids, err
}

func (r *repo) ClusterTotal(ctx context.Context, clusterID uuid.UUID) (*Total, error) {
	total := Total{ClusterID: clusterID}
	err := r.run(ctx, "cluster total", func(ctx context.Context) error {
		var avg sql.NullFloat64
		err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*), AVG(sentiment_score) FROM results WHERE cluster_id = $1",
			clusterID,
		).Scan(&total.Size, &avg)
		if err != nil {
			return err
		}
		total.AvgSentiment = nil
		if avg.Valid {
			total.AvgSentiment = &avg.Float64
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &total, nil
}

func (r *repo) DetachCluster(ctx context.Context, clusterID uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "detach cluster", func(ctx context.Context) error {
		var err error
		n, err = repository.ExecCount(ctx, r.db,
			"UPDATE results SET cluster_id = NULL, updated_at = now() WHERE cluster_id = $1",
			clusterID,
		)
		return err
	})
	return n, err
}

func (r *repo) MoveCluster(ctx context.Context, from, to uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "move cluster", func(ctx context.Context) error {
		var err error
		n, err = repository.ExecCount(ctx, r.db,
			"UPDATE results SET cluster_id = $2, updated_at = now() WHERE cluster_id = $1",
			from, to,
		)
		return err
	})
	return n, err
}

// run applies the retrier and converts failures that outlast it into ErrStorage.
func (r *repo) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := r.retrier.Do(ctx, fn)
	if err == nil {
		return nil
	}

	if errors.Is(err, retry.ErrExhausted) || repository.IsTransient(err) {
		r.logger.Error("result storage failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
	}
	return err
}

func scanUUID(s repository.Scanner) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Scan(&id)
	return id, err
}
