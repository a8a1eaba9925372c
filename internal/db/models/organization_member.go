// organization_member.go defines the (organization, user) → role binding that
// backs every authorization decision in the service layer.
package models

import "time"

// Role is the closed set of privilege levels within an organization, ordered
// owner > admin > manager > member.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// rolePrivilege maps each role to its position in the privilege order. Lower is
// more privileged. Authorization checks compare positions rather than matching
// role names ad hoc.
var rolePrivilege = map[Role]int{
	RoleOwner:   0,
	RoleAdmin:   1,
	RoleManager: 2,
	RoleMember:  3,
}

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool {
	_, ok := rolePrivilege[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	rp, ok := rolePrivilege[r]
	if !ok {
		return false
	}
	op, ok := rolePrivilege[other]
	if !ok {
		return false
	}
	return rp <= op
}

// CanRevertStage reports whether the role may move a deal's stage backward in
// the pipeline. Reserved to the two highest privilege levels: a manager may
// advance deals but not undo progress.
func (r Role) CanRevertStage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// OwnEntitiesOnly reports whether the role is restricted to entities it owns.
func (r Role) OwnEntitiesOnly() bool {
	return r == RoleMember
}

// OrganizationMember binds a user to an organization with a role. The
// (organization_id, user_id) pair is unique.
type OrganizationMember struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
