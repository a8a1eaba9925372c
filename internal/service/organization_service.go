package service

import (
	"context"
	"fmt"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
)

// OrganizationContext is the resolved tenant scope for one request: the
// organization plus the caller's membership in it.
type OrganizationContext struct {
	Organization *models.Organization
	Membership   *models.OrganizationMember
}

// Role returns the caller's role within the organization.
func (c *OrganizationContext) Role() models.Role {
	return c.Membership.Role
}

// OrganizationService resolves tenant scope and lists a user's organizations.
type OrganizationService struct {
	orgs *repositories.OrganizationRepository
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(orgs *repositories.OrganizationRepository) *OrganizationService {
	return &OrganizationService{orgs: orgs}
}

// EnsureMembership loads the organization and verifies the user belongs to it.
// A missing organization and a missing membership both come back as not found
// so outsiders cannot probe which organization ids exist.
func (s *OrganizationService) EnsureMembership(ctx context.Context, orgID, userID string) (*OrganizationContext, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	if org == nil {
		return nil, NotFound("organization not found")
	}

	member, err := s.orgs.GetMember(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	if member == nil {
		return nil, NotFound("organization not found")
	}

	return &OrganizationContext{Organization: org, Membership: member}, nil
}

// ListForUser returns the organizations the user is a member of.
func (s *OrganizationService) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	return s.orgs.ListForUser(ctx, userID)
}
