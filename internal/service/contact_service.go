package service

import (
	"context"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
)

// ContactInput carries the fields for creating a contact.
type ContactInput struct {
	Name    string
	Email   *string
	Phone   *string
	OwnerID string
}

// ContactService coordinates contact CRUD with role checks.
type ContactService struct {
	contacts *repositories.ContactRepository
	deals    *repositories.DealRepository
}

// NewContactService creates a new contact service
func NewContactService(contacts *repositories.ContactRepository, deals *repositories.DealRepository) *ContactService {
	return &ContactService{contacts: contacts, deals: deals}
}

// Create inserts a contact. Members may only create contacts they own.
func (s *ContactService) Create(ctx context.Context, orgCtx *OrganizationContext, actorID string, input ContactInput) (*models.Contact, error) {
	if input.Name == "" {
		return nil, Validation("name is required")
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = actorID
	}
	if orgCtx.Role().OwnEntitiesOnly() && ownerID != actorID {
		return nil, PermissionDenied("members can only create contacts they own")
	}

	contact := &models.Contact{
		OrganizationID: orgCtx.Organization.ID,
		OwnerID:        ownerID,
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// Get loads one contact within the organization scope.
func (s *ContactService) Get(ctx context.Context, orgCtx *OrganizationContext, contactID string) (*models.Contact, error) {
	contact, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil || contact.OrganizationID != orgCtx.Organization.ID {
		return nil, NotFound("contact not found")
	}
	return contact, nil
}

// List returns the organization's contacts. Members only see their own.
func (s *ContactService) List(ctx context.Context, orgCtx *OrganizationContext, actorID string, ownerID *string, search string, limit, offset int) ([]*models.Contact, error) {
	if orgCtx.Role().OwnEntitiesOnly() {
		owner := actorID
		ownerID = &owner
	}
	return s.contacts.ListForOrg(ctx, orgCtx.Organization.ID, ownerID, search, limit, offset)
}

// Delete removes a contact. A contact that any deal references cannot be
// deleted; members may only delete their own contacts.
func (s *ContactService) Delete(ctx context.Context, orgCtx *OrganizationContext, actorID, contactID string) error {
	contact, err := s.Get(ctx, orgCtx, contactID)
	if err != nil {
		return err
	}

	if orgCtx.Role().OwnEntitiesOnly() && contact.OwnerID != actorID {
		return PermissionDenied("members can only delete their own contacts")
	}

	hasDeals, err := s.deals.HasContactDeals(ctx, contact.ID)
	if err != nil {
		return err
	}
	if hasDeals {
		return Conflict("contact is referenced by existing deals")
	}

	return s.contacts.Delete(ctx, contact.ID)
}
