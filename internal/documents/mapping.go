package documents

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pulse/pkg/query"
	"github.com/JaimeStill/pulse/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("task_id", "TaskID").
	Project("project_id", "ProjectID").
	Project("source_type", "SourceType").
	Project("source_url", "SourceURL").
	Project("title", "Title").
	Project("collected_at", "CollectedAt")

var defaultSort = query.SortField{
	Field:      "CollectedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Identifiers and SourceType use exact matching,
// Title uses case-insensitive contains matching, and the collection window
// is inclusive of CollectedAfter and exclusive of CollectedBefore.
type Filters struct {
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
	TaskID          *uuid.UUID `json:"task_id,omitempty"`
	SourceType      *string    `json:"source_type,omitempty"`
	Title           *string    `json:"title,omitempty"`
	CollectedAfter  *time.Time `json:"collected_after,omitempty"`
	CollectedBefore *time.Time `json:"collected_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var projectID, taskID any
	if f.ProjectID != nil {
		projectID = *f.ProjectID
	}
	if f.TaskID != nil {
		taskID = *f.TaskID
	}

	return b.
		WhereEquals("ProjectID", projectID).
		WhereEquals("TaskID", taskID).
		WhereEquals("SourceType", f.SourceType).
		WhereContains("Title", f.Title).
		WhereAfter("CollectedAt", f.CollectedAfter).
		WhereBefore("CollectedAt", f.CollectedBefore)
}

// Match reports whether d satisfies every set filter.
func (f Filters) Match(d Document) bool {
	if f.ProjectID != nil && d.ProjectID != *f.ProjectID {
		return false
	}
	if f.TaskID != nil && d.TaskID != *f.TaskID {
		return false
	}
	if f.SourceType != nil && *f.SourceType != "" && d.SourceType != *f.SourceType {
		return false
	}
	if f.Title != nil && *f.Title != "" && !containsFold(d.Title, *f.Title) {
		return false
	}
	if f.CollectedAfter != nil && d.CollectedAt.Before(*f.CollectedAfter) {
		return false
	}
	if f.CollectedBefore != nil && !d.CollectedAt.Before(*f.CollectedBefore) {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Malformed identifiers and timestamps are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if id, err := uuid.Parse(values.Get("project_id")); err == nil {
		f.ProjectID = &id
	}

	if id, err := uuid.Parse(values.Get("task_id")); err == nil {
		f.TaskID = &id
	}

	if st := values.Get("source_type"); st != "" {
		f.SourceType = &st
	}

	if title := values.Get("title"); title != "" {
		f.Title = &title
	}

	if ts, err := time.Parse(time.RFC3339, values.Get("collected_after")); err == nil {
		f.CollectedAfter = &ts
	}

	if ts, err := time.Parse(time.RFC3339, values.Get("collected_before")); err == nil {
		f.CollectedBefore = &ts
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.TaskID,
		&d.ProjectID,
		&d.SourceType,
		&d.SourceURL,
		&d.Title,
		&d.CollectedAt,
	)
	return d, err
}
