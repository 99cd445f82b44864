package frequency

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/repository"
)

// insertBatch bounds rows per INSERT so the parameter count stays well
// under the Postgres limit of 65535.
const insertBatch = 1000

const termColumns = "project_id, term, frequency, document_count, tf_idf, category, updated_at"

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Postgres-backed term Store.
func New(db *sql.DB, logger *slog.Logger) Store {
	return &repo{
		db:     db,
		logger: logger.With("system", "frequency-store"),
	}
}

func (r *repo) Replace(ctx context.Context, projectID uuid.UUID, terms []Term) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM frequency_terms WHERE project_id = $1", projectID); err != nil {
			return struct{}{}, err
		}

		for start := 0; start < len(terms); start += insertBatch {
			end := min(start+insertBatch, len(terms))
			q, args := insertTerms(projectID, terms[start:end])
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})

	if repository.IsForeignKeyViolation(err) {
		return ErrUnknownProject
	}
	return err
}

func insertTerms(projectID uuid.UUID, terms []Term) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO frequency_terms(" + termColumns + ") VALUES ")

	args := make([]any, 0, len(terms)*7)
	for i, t := range terms {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, projectID, t.Term, t.Frequency, t.DocumentCount, t.TFIDF, t.Category, t.UpdatedAt)
	}
	return b.String(), args
}

func (r *repo) List(ctx context.Context, projectID uuid.UUID, limit int) ([]Term, error) {
	// Ties order by byte value, matching Compare.
	q := "SELECT " + termColumns + " FROM frequency_terms WHERE project_id = $1 ORDER BY frequency DESC, term COLLATE \"C\" ASC"
	args := []any{projectID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	return repository.QueryMany(ctx, r.db, q, args, scanTerm)
}

func (r *repo) Forget(ctx context.Context, projectID uuid.UUID) error {
	_, err := repository.ExecCount(ctx, r.db, "DELETE FROM frequency_terms WHERE project_id = $1", projectID)
	return err
}

func scanTerm(s repository.Scanner) (Term, error) {
	var t Term
	err := s.Scan(&t.ProjectID, &t.Term, &t.Frequency, &t.DocumentCount, &t.TFIDF, &t.Category, &t.UpdatedAt)
	return t, err
}
