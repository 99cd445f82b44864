// Package stats derives the read side of the engine: ranked terms,
// project rollups, cluster listings, summaries, and exported snapshots.
package stats

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/frequency"
)

// ProjectStats is the dashboard rollup of one project. AvgSentiment is nil
// when the project has no analyzed documents.
type ProjectStats struct {
	ProjectID    uuid.UUID `json:"project_id"`
	Keywords     int64     `json:"keywords"`
	Tasks        int64     `json:"tasks"`
	Documents    int64     `json:"documents"`
	Clusters     int64     `json:"clusters"`
	Reports      int64     `json:"reports"`
	Analyzed     int64     `json:"analyzed"`
	AvgSentiment *float64  `json:"avg_sentiment"`
}

// RankedTerm is a term with its dense rank within the project.
type RankedTerm struct {
	Rank int `json:"rank"`
	frequency.Term
}

// ClusterSummary is the externally visible shape of a cluster.
type ClusterSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Keywords     []string  `json:"keywords"`
	Size         int64     `json:"size"`
	AvgSentiment *float64  `json:"avg_sentiment"`
}

// Distribution counts results per sentiment label.
type Distribution struct {
	Negative int64 `json:"negative"`
	Neutral  int64 `json:"neutral"`
	Positive int64 `json:"positive"`
}

// PainPoint is an extracted phrase with the number of results citing it.
type PainPoint struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// Summary is the analysis digest consumed by report generation.
type Summary struct {
	ProjectID       uuid.UUID               `json:"project_id"`
	Analyzed        int64                   `json:"analyzed"`
	AvgSentiment    *float64                `json:"avg_sentiment"`
	MinSentiment    *float64                `json:"min_sentiment"`
	MaxSentiment    *float64                `json:"max_sentiment"`
	HighConfidence  int64                   `json:"high_confidence"`
	Distribution    Distribution            `json:"distribution"`
	PainPoints      []PainPoint             `json:"pain_points"`
	TermsByCategory map[string][]RankedTerm `json:"terms_by_category"`
}

// Snapshot is the document written to blob storage for the report generator.
type Snapshot struct {
	ProjectID   uuid.UUID        `json:"project_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Stats       *ProjectStats    `json:"stats"`
	Terms       []RankedTerm     `json:"terms"`
	Clusters    []ClusterSummary `json:"clusters"`
	Summary     *Summary         `json:"summary"`
}

// Rank orders terms by frequency descending with term ascending as the
// tie-break and assigns dense ranks: equal frequencies share a rank and
// the next distinct frequency takes the following integer.
func Rank(terms []frequency.Term) []RankedTerm {
	sorted := slices.Clone(terms)
	slices.SortFunc(sorted, frequency.Compare)

	ranked := make([]RankedTerm, len(sorted))
	rank := 0
	for i, t := range sorted {
		if i == 0 || t.Frequency != sorted[i-1].Frequency {
			rank++
		}
		ranked[i] = RankedTerm{Rank: rank, Term: t}
	}
	return ranked
}

func summarize(c clusters.Cluster) ClusterSummary {
	return ClusterSummary{
		ID:           c.ID,
		Name:         c.Name,
		Keywords:     c.Keywords,
		Size:         c.Size,
		AvgSentiment: c.AvgSentiment,
	}
}
