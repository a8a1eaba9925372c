// deal_service.go implements the deal lifecycle engine. Every mutation is
// validated against the caller's role, and state transitions are committed in
// the same transaction as the audit record describing them.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

// DealInput carries the fields for creating a deal.
type DealInput struct {
	Title     string
	ContactID string
	OwnerID   string
	Amount    decimal.Decimal
	Currency  string
}

// DealPatchInput is a partial update. Nil fields are left unchanged.
type DealPatchInput struct {
	Title    *string
	Amount   *decimal.Decimal
	Currency *string
	Status   *models.DealStatus
	Stage    *models.DealStage
}

// DealService coordinates deal CRUD with role checks and audit records.
type DealService struct {
	deals      *repositories.DealRepository
	contacts   *repositories.ContactRepository
	orgs       *repositories.OrganizationRepository
	activities *repositories.ActivityRepository
}

// NewDealService creates a new deal service
func NewDealService(
	deals *repositories.DealRepository,
	contacts *repositories.ContactRepository,
	orgs *repositories.OrganizationRepository,
	activities *repositories.ActivityRepository,
) *DealService {
	return &DealService{deals: deals, contacts: contacts, orgs: orgs, activities: activities}
}

// Create validates input and inserts a deal in the new/qualification state.
// The contact must belong to the caller's organization; members may only create
// deals they own.
func (s *DealService) Create(ctx context.Context, orgCtx *OrganizationContext, actorID string, input DealInput) (*models.Deal, error) {
	if input.Title == "" {
		return nil, Validation("title is required")
	}
	if input.Amount.IsNegative() {
		return nil, Validation("amount must not be negative")
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	contact, err := s.contacts.Get(ctx, input.ContactID)
	if err != nil {
		return nil, err
	}
	if contact == nil || contact.OrganizationID != orgCtx.Organization.ID {
		return nil, NotFound("contact not found")
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = actorID
	}
	if orgCtx.Role().OwnEntitiesOnly() && ownerID != actorID {
		return nil, PermissionDenied("members can only create deals they own")
	}
	if ownerID != actorID {
		member, err := s.orgs.GetMember(ctx, orgCtx.Organization.ID, ownerID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, Validation("owner is not a member of this organization")
		}
	}

	deal := &models.Deal{
		OrganizationID: orgCtx.Organization.ID,
		ContactID:      contact.ID,
		OwnerID:        ownerID,
		Title:          input.Title,
		Amount:         input.Amount,
		Currency:       input.Currency,
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, err
	}
	telemetry.DealsCreatedTotal.Inc()
	return deal, nil
}

// Get loads one deal within the organization scope.
func (s *DealService) Get(ctx context.Context, orgCtx *OrganizationContext, dealID string) (*models.Deal, error) {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil || deal.OrganizationID != orgCtx.Organization.ID {
		return nil, NotFound("deal not found")
	}
	return deal, nil
}

// Update applies a partial update through the lifecycle rules and writes the
// matching audit records in the same transaction:
//   - members may only touch their own deals
//   - a deal whose effective status is won must keep a positive amount
//   - moving the stage backward is restricted to owners and admins
func (s *DealService) Update(ctx context.Context, orgCtx *OrganizationContext, actorID, dealID string, input DealPatchInput) (*models.Deal, error) {
	deal, err := s.Get(ctx, orgCtx, dealID)
	if err != nil {
		return nil, err
	}

	if orgCtx.Role().OwnEntitiesOnly() && deal.OwnerID != actorID {
		return nil, PermissionDenied("members can only update their own deals")
	}

	patch := repositories.DealPatch(input)
	if patch.Empty() {
		return nil, Validation("no fields to update")
	}

	if input.Title != nil && *input.Title == "" {
		return nil, Validation("title must not be empty")
	}
	if input.Amount != nil && input.Amount.IsNegative() {
		return nil, Validation("amount must not be negative")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, Validation("unknown status")
	}
	if input.Stage != nil && !input.Stage.Valid() {
		return nil, Validation("unknown stage")
	}

	// The effective status and amount are the incoming values when the patch
	// carries them, otherwise the stored ones. An explicit zero amount counts
	// as zero, and zeroing the amount of an already-won deal is just as
	// invalid as winning a zero-amount deal.
	effectiveAmount := deal.Amount
	if input.Amount != nil {
		effectiveAmount = *input.Amount
	}
	effectiveStatus := deal.Status
	if input.Status != nil {
		effectiveStatus = *input.Status
	}
	if effectiveStatus == models.DealStatusWon && !effectiveAmount.IsPositive() {
		return nil, Validation("a deal can only be won with a positive amount")
	}

	if input.Stage != nil && input.Stage.Before(deal.Stage) && !orgCtx.Role().CanRevertStage() {
		return nil, PermissionDenied("only owners and admins can move a deal backward")
	}

	oldStatus := deal.Status
	oldStage := deal.Stage

	tx, err := s.deals.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	updated, err := s.deals.UpdateTx(ctx, tx, deal.ID, orgCtx.Organization.ID, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, NotFound("deal not found")
	}

	if input.Status != nil && *input.Status != oldStatus {
		if err := s.appendChange(ctx, tx, updated.ID, actorID, models.ActivityStatusChanged, string(oldStatus), string(*input.Status)); err != nil {
			return nil, err
		}
	}
	if input.Stage != nil && *input.Stage != oldStage {
		if err := s.appendChange(ctx, tx, updated.ID, actorID, models.ActivityStageChanged, string(oldStage), string(*input.Stage)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deal update: %w", err)
	}

	if input.Status != nil && *input.Status != oldStatus {
		telemetry.DealStatusTransitionsTotal.WithLabelValues(string(oldStatus), string(*input.Status)).Inc()
	}
	if input.Stage != nil && *input.Stage != oldStage {
		telemetry.DealStageTransitionsTotal.WithLabelValues(string(oldStage), string(*input.Stage)).Inc()
	}
	return updated, nil
}

func (s *DealService) appendChange(ctx context.Context, tx *sqlx.Tx, dealID, actorID string, typ models.ActivityType, oldValue, newValue string) error {
	payload, err := json.Marshal(map[string]string{"old": oldValue, "new": newValue})
	if err != nil {
		return fmt.Errorf("failed to marshal activity payload: %w", err)
	}
	err = s.activities.CreateTx(ctx, tx, &models.Activity{
		DealID:   dealID,
		AuthorID: &actorID,
		Type:     typ,
		Payload:  payload,
	})
	if err == nil {
		telemetry.ActivitiesRecordedTotal.WithLabelValues(string(typ)).Inc()
	}
	return err
}

// List returns deals in the organization matching the filter. Members only see
// their own deals regardless of the requested owner filter.
func (s *DealService) List(ctx context.Context, orgCtx *OrganizationContext, actorID string, filter repositories.DealFilter) ([]*models.Deal, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, Validation("unknown status")
		}
	}
	if filter.Stage != nil && !filter.Stage.Valid() {
		return nil, Validation("unknown stage")
	}
	if filter.MinAmount != nil && filter.MaxAmount != nil && filter.MinAmount.GreaterThan(*filter.MaxAmount) {
		return nil, Validation("min_amount must not exceed max_amount")
	}

	if orgCtx.Role().OwnEntitiesOnly() {
		owner := actorID
		filter.OwnerID = &owner
	}

	return s.deals.ListForOrg(ctx, orgCtx.Organization.ID, filter)
}
