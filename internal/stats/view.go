package stats

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/pkg/formatting"
)

const (
	summaryPainPoints       = 10
	summaryTermsPerCategory = 10
	highConfidence          = 0.7
)

// Uploader writes snapshot blobs.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Limits bounds the number of ranked terms a caller may request.
type Limits struct {
	Default int
	Max     int
}

// Normalize resolves a requested limit: non-positive selects the default
// and anything above the maximum is capped.
func (l Limits) Normalize(limit int) int {
	if limit <= 0 {
		return l.Default
	}
	return min(limit, l.Max)
}

// View answers read queries over the aggregates. It never writes them.
type View struct {
	counter  Counter
	clusters ClusterLister
	terms    frequency.Store
	results  frequency.Source
	blobs    Uploader
	limits   Limits
	logger   *slog.Logger
}

// New creates a View. A nil blobs disables Export.
func New(
	counter Counter,
	clusters ClusterLister,
	terms frequency.Store,
	results frequency.Source,
	blobs Uploader,
	limits Limits,
	logger *slog.Logger,
) *View {
	return &View{
		counter:  counter,
		clusters: clusters,
		terms:    terms,
		results:  results,
		blobs:    blobs,
		limits:   limits,
		logger:   logger.With("system", "stats"),
	}
}

// Handler returns the HTTP handler for the view.
func (v *View) Handler() *Handler {
	return NewHandler(v, v.logger)
}

// Limits returns the configured term limits.
func (v *View) Limits() Limits {
	return v.limits
}

// TopTerms returns up to limit ranked terms of a project.
func (v *View) TopTerms(ctx context.Context, projectID uuid.UUID, limit int) ([]RankedTerm, error) {
	terms, err := v.terms.List(ctx, projectID, v.limits.Normalize(limit))
	if err != nil {
		return nil, err
	}
	return Rank(terms), nil
}

// ProjectStats returns the rollup counts of a project.
func (v *View) ProjectStats(ctx context.Context, projectID uuid.UUID) (*ProjectStats, error) {
	return v.counter.ProjectStats(ctx, projectID)
}

// ListClusters returns a project's clusters, largest first.
func (v *View) ListClusters(ctx context.Context, projectID uuid.UUID) ([]ClusterSummary, error) {
	cs, err := v.clusters.List(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]ClusterSummary, len(cs))
	for i, c := range cs {
		out[i] = summarize(c)
	}
	return out, nil
}

// Summary digests a project's results: the sentiment spread, the most
// cited pain points, and the leading terms of each category.
func (v *View) Summary(ctx context.Context, projectID uuid.UUID) (*Summary, error) {
	items, err := v.results.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	terms, err := v.terms.List(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		ProjectID:       projectID,
		Analyzed:        int64(len(items)),
		PainPoints:      []PainPoint{},
		TermsByCategory: make(map[string][]RankedTerm),
	}

	pains := make(map[string]int64)
	var sum float64
	for i, r := range items {
		sum += r.SentimentScore
		if i == 0 || r.SentimentScore < *s.MinSentiment {
			s.MinSentiment = &items[i].SentimentScore
		}
		if i == 0 || r.SentimentScore > *s.MaxSentiment {
			s.MaxSentiment = &items[i].SentimentScore
		}
		if r.Confidence > highConfidence {
			s.HighConfidence++
		}

		switch r.SentimentLabel {
		case results.Negative:
			s.Distribution.Negative++
		case results.Neutral:
			s.Distribution.Neutral++
		case results.Positive:
			s.Distribution.Positive++
		}

		for _, p := range r.PainPoints {
			pains[p]++
		}
	}

	if len(items) > 0 {
		avg := sum / float64(len(items))
		s.AvgSentiment = &avg
	}

	for phrase, n := range pains {
		s.PainPoints = append(s.PainPoints, PainPoint{Phrase: phrase, Count: n})
	}
	slices.SortFunc(s.PainPoints, func(a, b PainPoint) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Phrase, b.Phrase)
	})
	if len(s.PainPoints) > summaryPainPoints {
		s.PainPoints = s.PainPoints[:summaryPainPoints]
	}

	byCategory := make(map[string][]frequency.Term)
	for _, t := range terms {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}
	for category, ts := range byCategory {
		ranked := Rank(ts)
		if len(ranked) > summaryTermsPerCategory {
			ranked = ranked[:summaryTermsPerCategory]
		}
		s.TermsByCategory[category] = ranked
	}

	return s, nil
}

// Export writes a JSON snapshot of the project to blob storage under
// snapshots/<project>/<timestamp>.json and returns the key.
func (v *View) Export(ctx context.Context, projectID uuid.UUID) (string, *Snapshot, error) {
	if v.blobs == nil {
		return "", nil, ErrExportDisabled
	}

	stats, err := v.ProjectStats(ctx, projectID)
	if err != nil {
		return "", nil, err
	}

	terms, err := v.TopTerms(ctx, projectID, v.limits.Max)
	if err != nil {
		return "", nil, err
	}

	cs, err := v.ListClusters(ctx, projectID)
	if err != nil {
		return "", nil, err
	}

	summary, err := v.Summary(ctx, projectID)
	if err != nil {
		return "", nil, err
	}

	snap := &Snapshot{
		ProjectID:   projectID,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Terms:       terms,
		Clusters:    cs,
		Summary:     summary,
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", nil, fmt.Errorf("encode snapshot: %w", err)
	}

	key := SnapshotKey(projectID, snap.GeneratedAt)
	if err := v.blobs.Upload(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", nil, fmt.Errorf("upload snapshot: %w", err)
	}

	v.logger.Info("snapshot exported", "project_id", projectID, "key", key, "size", formatting.FormatBytes(int64(len(body)), 1))
	return key, snap, nil
}

// SnapshotPrefix is the blob key prefix shared by every exported snapshot.
const SnapshotPrefix = "snapshots/"

// SnapshotKey returns the blob key of a project snapshot taken at t.
func SnapshotKey(projectID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("%s%s/%s.json", SnapshotPrefix, projectID, t.UTC().Format("20060102T150405Z"))
}
