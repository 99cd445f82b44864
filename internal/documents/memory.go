package documents

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/pagination"
)

// Memory is an in-process System used by tests and offline replay.
// Any task id is accepted; the first registration binds a task to its project.
type Memory struct {
	mu         sync.RWMutex
	docs       map[uuid.UUID]Document
	tasks      map[uuid.UUID]uuid.UUID
	projects   map[uuid.UUID]struct{}
	logger     *slog.Logger
	pagination pagination.Config
}

// NewMemory creates an empty in-memory document system.
func NewMemory(logger *slog.Logger, cfg pagination.Config) *Memory {
	return &Memory{
		docs:       make(map[uuid.UUID]Document),
		tasks:      make(map[uuid.UUID]uuid.UUID),
		projects:   make(map[uuid.UUID]struct{}),
		logger:     logger.With("system", "documents"),
		pagination: cfg,
	}
}

func (m *Memory) Handler(maxBodySize int64) *Handler {
	return NewHandler(m, m.logger, m.pagination, maxBodySize)
}

func (m *Memory) List(
	_ context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(m.pagination)

	m.mu.RLock()
	items := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		if !filters.Match(d) {
			continue
		}
		if page.Search != nil && *page.Search != "" &&
			!containsFold(d.Title, *page.Search) && !containsFold(d.SourceURL, *page.Search) {
			continue
		}
		items = append(items, d)
	}
	m.mu.RUnlock()

	slices.SortFunc(items, func(a, b Document) int {
		if c := b.CollectedAt.Compare(a.CollectedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	result := pagination.Slice(items, page)
	return &result, nil
}

func (m *Memory) Find(_ context.Context, id uuid.UUID) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// ProjectOf resolves a document to its project.
func (m *Memory) ProjectOf(_ context.Context, id uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	return d.ProjectID, ok
}

// Tasks returns the number of distinct tasks seen for a project.
func (m *Memory) Tasks(projectID uuid.UUID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, owner := range m.tasks {
		if owner == projectID {
			n++
		}
	}
	return n
}

// Count returns the number of documents registered under a project.
func (m *Memory) Count(projectID uuid.UUID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, d := range m.docs {
		if d.ProjectID == projectID {
			n++
		}
	}
	return n
}

// HasProject reports whether the project has been seen and not purged.
func (m *Memory) HasProject(projectID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.projects[projectID]
	return ok
}

func (m *Memory) Register(_ context.Context, cmd RegisterCommand) (*Document, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.docs[cmd.ID]; ok {
		if !existing.sameOwner(cmd) {
			return nil, false, ErrDuplicate
		}
		return &existing, false, nil
	}

	if owner, ok := m.tasks[cmd.TaskID]; ok && owner != cmd.ProjectID {
		return nil, false, ErrUnknownTask
	}

	d := cmd.document(time.Now().UTC())
	m.docs[d.ID] = d
	m.tasks[d.TaskID] = d.ProjectID
	m.projects[d.ProjectID] = struct{}{}

	m.logger.Info("document registered", "id", d.ID, "project_id", d.ProjectID)
	return &d, true, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)

	m.logger.Info("document deleted", "id", id)
	return nil
}

func (m *Memory) PurgeProject(_ context.Context, projectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[projectID]; !ok {
		return ErrNotFound
	}

	for id, d := range m.docs {
		if d.ProjectID == projectID {
			delete(m.docs, id)
		}
	}
	for id, owner := range m.tasks {
		if owner == projectID {
			delete(m.tasks, id)
		}
	}
	delete(m.projects, projectID)

	m.logger.Info("project purged", "project_id", projectID)
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
