// Package results is the durable record of one analysis outcome per
// document. It validates incoming analyzer events, detects redelivery,
// and reports the cluster membership changes the aggregator needs.
package results

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Label is the analyzer's categorical sentiment.
type Label string

const (
	Negative Label = "negative"
	Neutral  Label = "neutral"
	Positive Label = "positive"
)

// Labels lists every valid sentiment label in display order.
var Labels = []Label{Negative, Neutral, Positive}

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	return slices.Contains(Labels, l)
}

// Result is a stored analysis outcome. ClusterID is the only field that
// changes after the result is recorded.
type Result struct {
	DocumentID     uuid.UUID  `json:"document_id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	SentimentScore float64    `json:"sentiment_score"`
	SentimentLabel Label      `json:"sentiment_label"`
	Keywords       []string   `json:"keywords"`
	Topics         []string   `json:"topics"`
	ClusterID      *uuid.UUID `json:"cluster_id"`
	PainPoints     []string   `json:"pain_points"`
	Confidence     float64    `json:"confidence"`
	AnalyzedAt     time.Time  `json:"analyzed_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RecordCommand is an analysis result event from an external analyzer.
type RecordCommand struct {
	DocumentID     uuid.UUID  `json:"document_id"`
	SentimentScore float64    `json:"sentiment_score"`
	SentimentLabel Label      `json:"sentiment_label"`
	Keywords       []string   `json:"keywords"`
	Topics         []string   `json:"topics"`
	ClusterID      *uuid.UUID `json:"cluster_id,omitempty"`
	PainPoints     []string   `json:"pain_points"`
	Confidence     float64    `json:"confidence"`
	AnalyzedAt     *time.Time `json:"analyzed_at,omitempty"`
}

// Reassignment is the outcome of moving a result between clusters.
type Reassignment struct {
	Result   *Result    `json:"result"`
	Previous *uuid.UUID `json:"previous_cluster_id"`
}

// Total is the exact membership of one cluster computed from stored results.
type Total struct {
	ClusterID    uuid.UUID `json:"cluster_id"`
	Size         int64     `json:"size"`
	AvgSentiment *float64  `json:"avg_sentiment"`
}

// Normalize canonicalizes the command in place: keyword and topic sets are
// trimmed, lower-cased, de-duplicated and sorted; pain points are trimmed
// with order preserved; the label is lower-cased.
func (c *RecordCommand) Normalize() {
	c.Keywords = NormalizeTerms(c.Keywords)
	c.Topics = NormalizeTerms(c.Topics)
	c.SentimentLabel = Label(strings.ToLower(strings.TrimSpace(string(c.SentimentLabel))))

	points := make([]string, 0, len(c.PainPoints))
	for _, p := range c.PainPoints {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	c.PainPoints = points

	if c.AnalyzedAt != nil {
		at := c.AnalyzedAt.UTC()
		c.AnalyzedAt = &at
	}
}

// Validate checks ranges and required fields.
func (c *RecordCommand) Validate() error {
	switch {
	case c.DocumentID == uuid.Nil:
		return &ValidationError{Field: "document_id", Reason: "is required"}
	case math.IsNaN(c.SentimentScore) || c.SentimentScore < -1 || c.SentimentScore > 1:
		return &ValidationError{Field: "sentiment_score", Reason: "must be within [-1, 1]"}
	case math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1:
		return &ValidationError{Field: "confidence", Reason: "must be within [0, 1]"}
	case !c.SentimentLabel.Valid():
		return &ValidationError{Field: "sentiment_label", Reason: "must be negative, neutral, or positive"}
	case c.ClusterID != nil && *c.ClusterID == uuid.Nil:
		return &ValidationError{Field: "cluster_id", Reason: "must be a non-nil uuid or omitted"}
	}
	return nil
}

// matches reports whether a stored result carries the same write-once
// payload as the command. Cluster membership and timestamps are excluded.
func (c *RecordCommand) matches(r *Result) bool {
	return c.SentimentScore == r.SentimentScore &&
		c.SentimentLabel == r.SentimentLabel &&
		c.Confidence == r.Confidence &&
		slices.Equal(c.Keywords, r.Keywords) &&
		slices.Equal(c.Topics, r.Topics) &&
		slices.Equal(c.PainPoints, r.PainPoints)
}

func (c *RecordCommand) analyzedAt(now time.Time) time.Time {
	if c.AnalyzedAt != nil {
		return *c.AnalyzedAt
	}
	return now
}

// NormalizeTerms trims, lower-cases, de-duplicates and sorts a term set.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func sameCluster(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var timeNow = func() time.Time { return time.Now().UTC() }
