package models

import "time"

// User represents an account. Users are independent of organizations; access is
// granted exclusively through OrganizationMember rows.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}
