package stats

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/frequency"
	"github.com/JaimeStill/pulse/pkg/repository"
)

// Counter computes a project's rollup counts.
type Counter interface {
	ProjectStats(ctx context.Context, projectID uuid.UUID) (*ProjectStats, error)
}

// ClusterLister lists a project's clusters ordered by size.
type ClusterLister interface {
	List(ctx context.Context, projectID uuid.UUID) ([]clusters.Cluster, error)
}

// Every join hangs off the project row and is outer, so a project with no
// tasks yields zero counts and a null average.
const projectStatsQuery = `
	SELECT
		p.id,
		(SELECT count(*) FROM keywords k WHERE k.project_id = p.id),
		count(DISTINCT t.id),
		count(DISTINCT d.id),
		(SELECT count(*) FROM clusters c WHERE c.project_id = p.id),
		(SELECT count(*) FROM reports rp WHERE rp.project_id = p.id),
		count(r.document_id),
		avg(r.sentiment_score)
	FROM projects p
	LEFT JOIN tasks t ON t.project_id = p.id
	LEFT JOIN documents d ON d.task_id = t.id
	LEFT JOIN results r ON r.document_id = d.id
	WHERE p.id = $1
	GROUP BY p.id`

type pgCounter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCounter creates a Postgres-backed Counter.
func NewCounter(db *sql.DB, logger *slog.Logger) Counter {
	return &pgCounter{db: db, logger: logger.With("system", "stats")}
}

func (c *pgCounter) ProjectStats(ctx context.Context, projectID uuid.UUID) (*ProjectStats, error) {
	s, err := repository.QueryOne(ctx, c.db, projectStatsQuery, []any{projectID}, scanProjectStats)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return &s, nil
}

func scanProjectStats(s repository.Scanner) (ProjectStats, error) {
	var (
		p   ProjectStats
		avg sql.NullFloat64
	)
	err := s.Scan(&p.ProjectID, &p.Keywords, &p.Tasks, &p.Documents, &p.Clusters, &p.Reports, &p.Analyzed, &avg)
	if avg.Valid {
		p.AvgSentiment = &avg.Float64
	}
	return p, err
}

// ProjectIndex answers the project questions an in-memory document store can.
type ProjectIndex interface {
	HasProject(projectID uuid.UUID) bool
	Tasks(projectID uuid.UUID) int64
	Count(projectID uuid.UUID) int64
}

type memoryCounter struct {
	projects ProjectIndex
	clusters ClusterLister
	results  frequency.Source
}

// NewMemoryCounter derives rollups from in-memory stores. Keywords and
// reports are owned by external services and always count zero.
func NewMemoryCounter(projects ProjectIndex, clusters ClusterLister, results frequency.Source) Counter {
	return &memoryCounter{projects: projects, clusters: clusters, results: results}
}

func (c *memoryCounter) ProjectStats(ctx context.Context, projectID uuid.UUID) (*ProjectStats, error) {
	cs, err := c.clusters.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !c.projects.HasProject(projectID) && len(cs) == 0 {
		return nil, ErrNotFound
	}

	items, err := c.results.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s := &ProjectStats{
		ProjectID: projectID,
		Tasks:     c.projects.Tasks(projectID),
		Documents: c.projects.Count(projectID),
		Clusters:  int64(len(cs)),
		Analyzed:  int64(len(items)),
	}

	if len(items) > 0 {
		var sum float64
		for _, r := range items {
			sum += r.SentimentScore
		}
		avg := sum / float64(len(items))
		s.AvgSentiment = &avg
	}
	return s, nil
}
