package clusters_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/pulse/internal/clusters"
)

var clusterColumns = []string{
	"id", "project_id", "name", "description", "keywords",
	"size", "avg_sentiment", "version", "created_at", "updated_at",
}

func newRepo(t *testing.T) (clusters.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return clusters.New(db, discard), mock
}

func TestRepoCreate(t *testing.T) {
	sys, mock := newRepo(t)
	id, project := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO clusters(id, project_id, name, description, keywords)")).
		WithArgs(id, project, "Login", "", `["slow","timeout"]`).
		WillReturnRows(sqlmock.NewRows(clusterColumns).AddRow(
			id.String(), project.String(), "Login", "", `["slow","timeout"]`, 0, nil, 0, now, now,
		))
	mock.ExpectCommit()

	c, err := sys.Create(context.Background(), clusters.CreateCommand{
		ID:        &id,
		ProjectID: project,
		Name:      " Login ",
		Keywords:  []string{"Slow", "timeout", "slow"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, []string{"slow", "timeout"}, c.Keywords)
	assert.Nil(t, c.AvgSentiment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateUnknownProject(t *testing.T) {
	sys, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO clusters")).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err := sys.Create(context.Background(), clusters.CreateCommand{ProjectID: uuid.New()})
	assert.ErrorIs(t, err, clusters.ErrInvalidCluster)
	assert.Equal(t, 422, clusters.MapHTTPStatus(err))
}

func TestRepoCreateRequiresProject(t *testing.T) {
	sys, _ := newRepo(t)

	_, err := sys.Create(context.Background(), clusters.CreateCommand{Name: "orphan"})
	assert.ErrorIs(t, err, clusters.ErrInvalidCluster)
}

func TestRepoLoad(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT size, avg_sentiment, version FROM clusters WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"size", "avg_sentiment", "version"}).AddRow(4, 0.3, 9))

	c, err := sys.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.Size)
	assert.InDelta(t, 0.3, *c.AvgSentiment, 1e-12)
	assert.Equal(t, int64(9), c.Version)
}

func TestRepoLoadNotFound(t *testing.T) {
	sys, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT size, avg_sentiment, version FROM clusters")).
		WillReturnError(sql.ErrNoRows)

	_, err := sys.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, clusters.ErrNotFound)
}

func TestRepoSwap(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()
	avg := 0.25
	swap := regexp.QuoteMeta("WHERE id = $1 AND version = $2")

	mock.ExpectExec(swap).
		WithArgs(id, int64(3), int64(2), 0.25).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(swap).
		WithArgs(id, int64(3), int64(0), nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := sys.Swap(context.Background(), id, 3, clusters.Counter{Size: 2, AvgSentiment: &avg})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sys.Swap(context.Background(), id, 3, clusters.Counter{})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoDeleteNotFound(t *testing.T) {
	sys, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM clusters WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := sys.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, clusters.ErrNotFound)
}

func TestMemoryListOrdersBySize(t *testing.T) {
	mem := clusters.NewMemory(discard)
	ctx := context.Background()
	project := uuid.New()

	small, err := mem.Create(ctx, clusters.CreateCommand{ProjectID: project, Name: "small"})
	require.NoError(t, err)
	large, err := mem.Create(ctx, clusters.CreateCommand{ProjectID: project, Name: "large"})
	require.NoError(t, err)
	_, err = mem.Create(ctx, clusters.CreateCommand{ProjectID: uuid.New(), Name: "elsewhere"})
	require.NoError(t, err)

	ok, err := mem.Swap(ctx, large.ID, 0, clusters.Counter{Size: 3})
	require.NoError(t, err)
	require.True(t, ok)

	items, err := mem.List(ctx, project)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, large.ID, items[0].ID)
	assert.Equal(t, small.ID, items[1].ID)

	_, err = mem.Create(ctx, clusters.CreateCommand{ID: &small.ID, ProjectID: project})
	assert.ErrorIs(t, err, clusters.ErrDuplicate)

	ids, err := mem.ProjectIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
