package models

import "time"

// Contact is an organization-scoped person a deal can reference. A deal may only
// reference contacts from its own organization.
type Contact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Email          *string   `json:"email"`
	Phone          *string   `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
}
