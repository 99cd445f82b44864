package frequency_test

import (
	"context"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/pulse/internal/frequency"
)

func newRepo(t *testing.T) (frequency.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return frequency.New(db, discard), mock
}

func TestRepoReplace(t *testing.T) {
	store, mock := newRepo(t)
	p := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM frequency_terms WHERE project_id = $1")).
		WithArgs(p).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7), ($8, $9, $10, $11, $12, $13, $14)")).
		WithArgs(p, "bug", int64(3), int64(2), 0.5, "negative", now, p, "ui", int64(1), int64(1), 0.1, "positive", now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.Replace(context.Background(), p, []frequency.Term{
		{Term: "bug", Frequency: 3, DocumentCount: 2, TFIDF: 0.5, Category: "negative", UpdatedAt: now},
		{Term: "ui", Frequency: 1, DocumentCount: 1, TFIDF: 0.1, Category: "positive", UpdatedAt: now},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoReplaceEmptyOnlyDeletes(t *testing.T) {
	store, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM frequency_terms")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, store.Replace(context.Background(), uuid.New(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoReplaceUnknownProject(t *testing.T) {
	store, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM frequency_terms")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO frequency_terms")).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := store.Replace(context.Background(), uuid.New(), []frequency.Term{{Term: "bug", Frequency: 1}})
	assert.ErrorIs(t, err, frequency.ErrUnknownProject)
}

func TestRepoListWithLimit(t *testing.T) {
	store, mock := newRepo(t)
	p := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY frequency DESC, term COLLATE "C" ASC LIMIT $2`)).
		WithArgs(p, 2).
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "term", "frequency", "document_count", "tf_idf", "category", "updated_at",
		}).
			AddRow(p.String(), "bug", 10, 4, 0.2, "negative", now).
			AddRow(p.String(), "slow", 10, 3, 0.3, "negative", now))

	terms, err := store.List(context.Background(), p, 2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "slow", terms[1].Term)
	assert.Equal(t, p, terms[0].ProjectID)
}

func TestRepoListTiesFollowCompare(t *testing.T) {
	store, mock := newRepo(t)
	p := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY frequency DESC, term COLLATE "C" ASC`) + "$").
		WithArgs(p).
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "term", "frequency", "document_count", "tf_idf", "category", "updated_at",
		}).
			AddRow(p.String(), "login", 7, 3, 0.1, "negative", now).
			AddRow(p.String(), "zebra", 7, 3, 0.1, "neutral", now).
			AddRow(p.String(), "éclair", 7, 2, 0.1, "positive", now))

	terms, err := store.List(context.Background(), p, 0)
	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.True(t, slices.IsSortedFunc(terms, frequency.Compare))
	require.NoError(t, mock.ExpectationsWereMet())
}
