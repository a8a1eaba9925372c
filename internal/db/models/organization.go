// Package models defines the database row structs and closed enumerations for the
// sales pipeline tracker: organizations, users, memberships, contacts, deals, tasks,
// and the append-only activity log.
package models

import "time"

// Organization is the tenant boundary. Every scoped entity carries its id and
// every query filters on it.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
