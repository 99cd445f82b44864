// Package clusters owns the cluster catalog and the aggregator that keeps
// each cluster's size and running sentiment average in step with the
// result store.
package clusters

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/internal/results"
)

// Cluster is a topical grouping of documents within one project.
// AvgSentiment is nil when the cluster has no members.
type Cluster struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Keywords     []string  `json:"keywords"`
	Size         int64     `json:"size"`
	AvgSentiment *float64  `json:"avg_sentiment"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Counter is the versioned aggregate state of a cluster.
type Counter struct {
	Size         int64
	AvgSentiment *float64
	Version      int64
}

// CreateCommand carries a cluster produced by the external clustering step.
// ID is optional; the clustering step may assign its own.
type CreateCommand struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Keywords    []string   `json:"keywords"`
}

// Validate normalizes the command and reports missing fields.
func (c *CreateCommand) Validate() error {
	if c.ProjectID == uuid.Nil {
		return invalid("project_id is required")
	}
	if c.ID != nil && *c.ID == uuid.Nil {
		return invalid("id must be a non-nil uuid or omitted")
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Keywords = results.NormalizeTerms(c.Keywords)
	return nil
}

func (c *CreateCommand) id() uuid.UUID {
	if c.ID != nil {
		return *c.ID
	}
	return uuid.New()
}

// withInsert folds one member into the counter.
func (c Counter) withInsert(x float64) Counter {
	n := c.Size + 1
	avg := x
	if c.AvgSentiment != nil && c.Size > 0 {
		avg = *c.AvgSentiment + (x-*c.AvgSentiment)/float64(n)
	}
	return Counter{Size: n, AvgSentiment: clamp(avg), Version: c.Version}
}

// withRemove takes one member out of the counter. It reports drift when the
// stored state cannot account for the member, leaving size at zero at worst.
func (c Counter) withRemove(x float64) (Counter, bool) {
	switch {
	case c.Size <= 0:
		return Counter{Version: c.Version}, true
	case c.Size == 1:
		return Counter{Version: c.Version}, false
	case c.AvgSentiment == nil:
		return Counter{Size: c.Size - 1, Version: c.Version}, true
	}

	n := c.Size - 1
	avg := *c.AvgSentiment + (*c.AvgSentiment-x)/float64(n)
	return Counter{Size: n, AvgSentiment: clamp(avg), Version: c.Version}, false
}

func clamp(v float64) *float64 {
	v = math.Max(-1, math.Min(1, v))
	return &v
}

// Drift reports the absolute difference between two averages. A nil on
// exactly one side is infinite drift.
func Drift(a, b *float64) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return math.Inf(1)
	}
	return math.Abs(*a - *b)
}
