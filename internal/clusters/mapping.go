package clusters

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "clusters", "c").
	Project("id", "ID").
	Project("project_id", "ProjectID").
	Project("name", "Name").
	Project("description", "Description").
	Project("keywords", "Keywords").
	Project("size", "Size").
	Project("avg_sentiment", "AvgSentiment").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var sizeSort = []query.SortField{
	{Field: "Size", Descending: true},
	{Field: "ID"},
}

func scanCluster(s repository.Scanner) (Cluster, error) {
	var (
		c        Cluster
		keywords []byte
		avg      sql.NullFloat64
	)

	err := s.Scan(
		&c.ID,
		&c.ProjectID,
		&c.Name,
		&c.Description,
		&keywords,
		&c.Size,
		&avg,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}

	if avg.Valid {
		c.AvgSentiment = &avg.Float64
	}

	c.Keywords = []string{}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &c.Keywords); err != nil {
			return c, fmt.Errorf("decode keywords: %w", err)
		}
	}
	return c, nil
}

func scanCounter(s repository.Scanner) (Counter, error) {
	var (
		c   Counter
		avg sql.NullFloat64
	)
	if err := s.Scan(&c.Size, &avg, &c.Version); err != nil {
		return c, err
	}
	if avg.Valid {
		c.AvgSentiment = &avg.Float64
	}
	return c, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
