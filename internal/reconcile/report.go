package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// Pass names the kind of reconciliation run.
type Pass string

const (
	PassFull    Pass = "full"
	PassPending Pass = "pending"
)

// Correction records one cluster counter overwritten from exact totals.
type Correction struct {
	ClusterID  uuid.UUID `json:"cluster_id"`
	SizeBefore int64     `json:"size_before"`
	SizeAfter  int64     `json:"size_after"`
	AvgBefore  *float64  `json:"avg_before"`
	AvgAfter   *float64  `json:"avg_after"`
}

// Report summarizes a reconciliation pass.
type Report struct {
	Pass        Pass         `json:"pass"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Projects    int          `json:"projects"`
	Checked     int          `json:"checked"`
	Corrections []Correction `json:"corrections"`
	Deferred    int          `json:"deferred"`
	Failed      int          `json:"failed"`
	Terms       int          `json:"terms_refreshed"`
	Alert       bool         `json:"alert"`
}

// Duration returns the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
