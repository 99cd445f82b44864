// Package documents implements the collection boundary for pulse.
// It records document-created notifications from the external collectors,
// exposes document listings, and removes document rows once the ingest
// engine has retracted their analysis results.
package documents

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is a unit of collected text belonging to one project via a task.
type Document struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"task_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	SourceType  string    `json:"source_type"`
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	CollectedAt time.Time `json:"collected_at"`
}

// RegisterCommand carries a document-created notification.
// CollectedAt defaults to the time of registration when nil.
type RegisterCommand struct {
	ID          uuid.UUID  `json:"id"`
	TaskID      uuid.UUID  `json:"task_id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	SourceType  string     `json:"source_type"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

// Validate reports the first missing identifier as ErrInvalidDocument.
func (c *RegisterCommand) Validate() error {
	switch {
	case c.ID == uuid.Nil:
		return invalid("id is required")
	case c.TaskID == uuid.Nil:
		return invalid("task_id is required")
	case c.ProjectID == uuid.Nil:
		return invalid("project_id is required")
	}
	c.SourceType = strings.TrimSpace(c.SourceType)
	c.Title = strings.TrimSpace(c.Title)
	return nil
}

func (c *RegisterCommand) document(now time.Time) Document {
	collected := now
	if c.CollectedAt != nil {
		collected = c.CollectedAt.UTC()
	}
	return Document{
		ID:          c.ID,
		TaskID:      c.TaskID,
		ProjectID:   c.ProjectID,
		SourceType:  c.SourceType,
		SourceURL:   c.SourceURL,
		Title:       c.Title,
		CollectedAt: collected,
	}
}

// sameOwner reports whether a redelivered notification describes the
// already registered document.
func (d *Document) sameOwner(cmd RegisterCommand) bool {
	return d.TaskID == cmd.TaskID && d.ProjectID == cmd.ProjectID
}
