package documents_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/pkg/pagination"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMemory() *documents.Memory {
	return documents.NewMemory(discard, pagination.Config{DefaultPageSize: 10, MaxPageSize: 50})
}

func registerCmd(projectID, taskID uuid.UUID, title string, at time.Time) documents.RegisterCommand {
	return documents.RegisterCommand{
		ID:          uuid.New(),
		TaskID:      taskID,
		ProjectID:   projectID,
		SourceType:  "reddit",
		SourceURL:   "https://example.com/" + title,
		Title:       title,
		CollectedAt: &at,
	}
}

func TestMemoryRegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newMemory()
	cmd := registerCmd(uuid.New(), uuid.New(), "first", time.Now())

	doc, created, err := m.Register(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := m.Register(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, doc, again)
}

func TestMemoryRegisterRejects(t *testing.T) {
	ctx := context.Background()
	m := newMemory()
	projectID, taskID := uuid.New(), uuid.New()

	cmd := registerCmd(projectID, taskID, "doc", time.Now())
	_, _, err := m.Register(ctx, cmd)
	require.NoError(t, err)

	moved := cmd
	moved.TaskID = uuid.New()
	_, _, err = m.Register(ctx, moved)
	assert.ErrorIs(t, err, documents.ErrDuplicate)

	crossed := registerCmd(uuid.New(), taskID, "other", time.Now())
	_, _, err = m.Register(ctx, crossed)
	assert.ErrorIs(t, err, documents.ErrUnknownTask)

	_, _, err = m.Register(ctx, documents.RegisterCommand{TaskID: taskID, ProjectID: projectID})
	assert.ErrorIs(t, err, documents.ErrInvalidDocument)
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	m := newMemory()
	projectID, otherProject := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"Login bug", "Slow checkout", "Crash on save"} {
		_, _, err := m.Register(ctx, registerCmd(projectID, uuid.New(), title, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, _, err := m.Register(ctx, registerCmd(otherProject, uuid.New(), "Unrelated", base))
	require.NoError(t, err)

	page, err := m.List(ctx, pagination.PageRequest{}, documents.Filters{ProjectID: &projectID})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	assert.Equal(t, "Crash on save", page.Data[0].Title, "newest first")

	title := "SLOW"
	page, err = m.List(ctx, pagination.PageRequest{}, documents.Filters{Title: &title})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Slow checkout", page.Data[0].Title)

	after := base.Add(time.Hour)
	page, err = m.List(ctx, pagination.PageRequest{}, documents.Filters{ProjectID: &projectID, CollectedAfter: &after})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	assert.Equal(t, int64(3), m.Count(projectID))
	assert.Equal(t, int64(3), m.Tasks(projectID))
}

func TestMemoryPurgeProject(t *testing.T) {
	ctx := context.Background()
	m := newMemory()
	projectID := uuid.New()

	doc, _, err := m.Register(ctx, registerCmd(projectID, uuid.New(), "doc", time.Now()))
	require.NoError(t, err)

	require.NoError(t, m.PurgeProject(ctx, projectID))

	_, err = m.Find(ctx, doc.ID)
	assert.ErrorIs(t, err, documents.ErrNotFound)
	assert.False(t, m.HasProject(projectID))
	assert.ErrorIs(t, m.PurgeProject(ctx, projectID), documents.ErrNotFound)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := newMemory()

	doc, _, err := m.Register(ctx, registerCmd(uuid.New(), uuid.New(), "doc", time.Now()))
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, doc.ID))
	assert.ErrorIs(t, m.Delete(ctx, doc.ID), documents.ErrNotFound)
}
