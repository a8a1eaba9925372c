// activity.go defines the append-only audit record attached to a deal. Activity
// rows are never updated or deleted.
package models

import (
	"encoding/json"
	"time"
)

// ActivityType classifies an audit record.
type ActivityType string

const (
	ActivityComment       ActivityType = "comment"
	ActivityStatusChanged ActivityType = "status_changed"
	ActivityStageChanged  ActivityType = "stage_changed"
	ActivityTaskCreated   ActivityType = "task_created"
	ActivitySystem        ActivityType = "system"
)

// Valid reports whether t is a defined activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityComment, ActivityStatusChanged, ActivityStageChanged, ActivityTaskCreated, ActivitySystem:
		return true
	}
	return false
}

// Activity is one audit row. AuthorID is nil for system-generated records.
// Payload is free-form structured JSON; for status_changed and stage_changed it
// holds the old and new values.
type Activity struct {
	ID        string          `json:"id"`
	DealID    string          `json:"deal_id"`
	AuthorID  *string         `json:"author_id"`
	Type      ActivityType    `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
