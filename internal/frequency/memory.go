package frequency

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	terms map[uuid.UUID][]Term
}

// NewMemory creates an empty in-memory term store.
func NewMemory() *Memory {
	return &Memory{terms: make(map[uuid.UUID][]Term)}
}

func (m *Memory) Replace(_ context.Context, projectID uuid.UUID, terms []Term) error {
	sorted := slices.Clone(terms)
	slices.SortFunc(sorted, Compare)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(sorted) == 0 {
		delete(m.terms, projectID)
		return nil
	}
	m.terms[projectID] = sorted
	return nil
}

func (m *Memory) List(_ context.Context, projectID uuid.UUID, limit int) ([]Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := m.terms[projectID]
	if limit > 0 && limit < len(terms) {
		terms = terms[:limit]
	}
	out := make([]Term, len(terms))
	copy(out, terms)
	return out, nil
}

func (m *Memory) Forget(_ context.Context, projectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.terms, projectID)
	return nil
}
