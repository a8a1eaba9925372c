package models

import "time"

// Task is a to-do attached to a deal. DueDate is date-granular and must not be
// in the past at creation time.
type Task struct {
	ID          string    `json:"id"`
	DealID      string    `json:"deal_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	DueDate     time.Time `json:"due_date"`
	IsDone      bool      `json:"is_done"`
	CreatedAt   time.Time `json:"created_at"`
}
