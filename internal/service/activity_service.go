package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

// ActivityService exposes the read side of the audit trail plus user comments.
// Lifecycle records are written by DealService and TaskService; this service
// never mutates existing rows.
type ActivityService struct {
	activities *repositories.ActivityRepository
	deals      *repositories.DealRepository
}

// NewActivityService creates a new activity service
func NewActivityService(activities *repositories.ActivityRepository, deals *repositories.DealRepository) *ActivityService {
	return &ActivityService{activities: activities, deals: deals}
}

func (s *ActivityService) scopedDeal(ctx context.Context, orgCtx *OrganizationContext, dealID string) (*models.Deal, error) {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil || deal.OrganizationID != orgCtx.Organization.ID {
		return nil, NotFound("deal not found")
	}
	return deal, nil
}

// ListForDeal returns the deal's audit trail, oldest first. Any member of the
// organization may read it.
func (s *ActivityService) ListForDeal(ctx context.Context, orgCtx *OrganizationContext, dealID string) ([]*models.Activity, error) {
	if _, err := s.scopedDeal(ctx, orgCtx, dealID); err != nil {
		return nil, err
	}
	return s.activities.ListForDeal(ctx, dealID)
}

// AddComment appends a comment to a deal's trail. Any member of the
// organization may comment on any of its deals.
func (s *ActivityService) AddComment(ctx context.Context, orgCtx *OrganizationContext, actorID, dealID, body string) (*models.Activity, error) {
	if body == "" {
		return nil, Validation("comment body is required")
	}

	deal, err := s.scopedDeal(ctx, orgCtx, dealID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment payload: %w", err)
	}

	activity := &models.Activity{
		DealID:   deal.ID,
		AuthorID: &actorID,
		Type:     models.ActivityComment,
		Payload:  payload,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, err
	}
	telemetry.ActivitiesRecordedTotal.WithLabelValues(string(models.ActivityComment)).Inc()
	return activity, nil
}
