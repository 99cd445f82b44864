package results

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "results", "r").
	Join("documents", "d", "d.id = r.document_id").
	Project("document_id", "DocumentID").
	ProjectFrom("d", "project_id", "ProjectID").
	Project("sentiment_score", "SentimentScore").
	Project("sentiment_label", "SentimentLabel").
	Project("keywords", "Keywords").
	Project("topics", "Topics").
	Project("cluster_id", "ClusterID").
	Project("pain_points", "PainPoints").
	Project("confidence", "Confidence").
	Project("analyzed_at", "AnalyzedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "AnalyzedAt"}

func scanResult(s repository.Scanner) (Result, error) {
	var (
		r          Result
		label      string
		cluster    uuid.NullUUID
		keywords   []byte
		topics     []byte
		painPoints []byte
	)

	err := s.Scan(
		&r.DocumentID,
		&r.ProjectID,
		&r.SentimentScore,
		&label,
		&keywords,
		&topics,
		&cluster,
		&painPoints,
		&r.Confidence,
		&r.AnalyzedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	r.SentimentLabel = Label(label)
	if cluster.Valid {
		id := cluster.UUID
		r.ClusterID = &id
	}

	lists := []struct {
		raw    []byte
		target *[]string
		name   string
	}{
		{keywords, &r.Keywords, "keywords"},
		{topics, &r.Topics, "topics"},
		{painPoints, &r.PainPoints, "pain_points"},
	}
	for _, l := range lists {
		if err := decodeList(l.raw, l.target); err != nil {
			return r, fmt.Errorf("decode %s: %w", l.name, err)
		}
	}

	return r, nil
}

func decodeList(raw []byte, target *[]string) error {
	*target = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func encodeList(items []string) string {
	if items == nil {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func nullable(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
