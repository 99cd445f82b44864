package frequency_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type source struct {
	mu     sync.Mutex
	items  map[uuid.UUID][]results.Result
	failOn map[uuid.UUID]error
}

func newSource() *source {
	return &source{
		items:  make(map[uuid.UUID][]results.Result),
		failOn: make(map[uuid.UUID]error),
	}
}

func (s *source) add(project uuid.UUID, r results.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[project] = append(s.items[project], r)
}

func (s *source) ListByProject(_ context.Context, project uuid.UUID) ([]results.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[project]; err != nil {
		return nil, err
	}
	return append([]results.Result(nil), s.items[project]...), nil
}

func TestAnalyzerFlush(t *testing.T) {
	src := newSource()
	store := frequency.NewMemory()
	reg := metrics.New()
	a := frequency.NewAnalyzer(src, store, 2, reg, discard)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()
	src.add(p1, result(results.Negative, []string{"bug"}, nil, nil))
	src.add(p2, result(results.Positive, []string{"fast"}, nil, nil))

	a.MarkDirty(p1)
	a.MarkDirty(p2)
	a.MarkDirty(p1)
	assert.Equal(t, int64(2), reg.Gauge("frequency_dirty_projects", "").Value())

	require.NoError(t, a.Flush(ctx))
	assert.False(t, a.Dirty(p1))

	terms, err := store.List(ctx, p1, 0)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "bug", terms[0].Term)

	terms, err = store.List(ctx, p2, 0)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, uint64(2), reg.Counter("frequency_refresh_total", "").Value())
}

func TestAnalyzerFlushIsIdempotent(t *testing.T) {
	src := newSource()
	store := frequency.NewMemory()
	a := frequency.NewAnalyzer(src, store, 1, metrics.New(), discard)
	ctx := context.Background()

	p := uuid.New()
	src.add(p, result(results.Negative, []string{"bug", "slow"}, []string{"bug"}, nil))

	first, err := a.Refresh(ctx, p)
	require.NoError(t, err)

	a.MarkDirty(p)
	require.NoError(t, a.Flush(ctx))

	second, err := store.List(ctx, p, 0)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Term, second[i].Term)
		assert.Equal(t, first[i].Frequency, second[i].Frequency)
		assert.Equal(t, first[i].TFIDF, second[i].TFIDF)
	}
}

func TestAnalyzerFailedProjectStaysDirty(t *testing.T) {
	src := newSource()
	a := frequency.NewAnalyzer(src, frequency.NewMemory(), 2, metrics.New(), discard)

	ok, bad := uuid.New(), uuid.New()
	src.failOn[bad] = errors.New("connection reset")

	a.MarkDirty(ok)
	a.MarkDirty(bad)

	err := a.Flush(context.Background())
	require.Error(t, err)
	assert.False(t, a.Dirty(ok))
	assert.True(t, a.Dirty(bad))
}

func TestAnalyzerForget(t *testing.T) {
	src := newSource()
	store := frequency.NewMemory()
	a := frequency.NewAnalyzer(src, store, 1, metrics.New(), discard)
	ctx := context.Background()

	p := uuid.New()
	src.add(p, result(results.Neutral, []string{"ui"}, nil, nil))
	_, err := a.Refresh(ctx, p)
	require.NoError(t, err)
	a.MarkDirty(p)

	require.NoError(t, a.Forget(ctx, p))
	assert.False(t, a.Dirty(p))

	terms, err := store.List(ctx, p, 0)
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestMemoryListLimit(t *testing.T) {
	store := frequency.NewMemory()
	ctx := context.Background()
	p := uuid.New()

	require.NoError(t, store.Replace(ctx, p, []frequency.Term{
		{Term: "crash", Frequency: 7},
		{Term: "slow", Frequency: 10},
		{Term: "bug", Frequency: 10},
	}))

	terms, err := store.List(ctx, p, 2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "bug", terms[0].Term)
	assert.Equal(t, "slow", terms[1].Term)
}
