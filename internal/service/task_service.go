package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

// TaskInput carries the fields for creating a task.
type TaskInput struct {
	DealID      string
	Title       string
	Description *string
	DueDate     time.Time
}

// TaskService coordinates task creation and listing. Tasks are scoped through
// their parent deal.
type TaskService struct {
	tasks      *repositories.TaskRepository
	deals      *repositories.DealRepository
	activities *repositories.ActivityRepository
}

// NewTaskService creates a new task service
func NewTaskService(tasks *repositories.TaskRepository, deals *repositories.DealRepository, activities *repositories.ActivityRepository) *TaskService {
	return &TaskService{tasks: tasks, deals: deals, activities: activities}
}

// Create validates input, then inserts the task and appends a task_created
// record to the parent deal's audit trail in one transaction. The due date is
// date-granular and must not be in the past; members may only attach tasks to
// their own deals.
func (s *TaskService) Create(ctx context.Context, orgCtx *OrganizationContext, actorID string, input TaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, Validation("title is required")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if input.DueDate.Before(today) {
		return nil, Validation("due date must not be in the past")
	}

	deal, err := s.deals.Get(ctx, input.DealID)
	if err != nil {
		return nil, err
	}
	if deal == nil || deal.OrganizationID != orgCtx.Organization.ID {
		return nil, NotFound("deal not found")
	}
	if orgCtx.Role().OwnEntitiesOnly() && deal.OwnerID != actorID {
		return nil, PermissionDenied("members can only add tasks to their own deals")
	}

	task := &models.Task{
		DealID:      deal.ID,
		OwnerID:     actorID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
	}

	// Task row and its audit record commit together.
	tx, err := s.deals.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"task_id": task.ID, "title": task.Title})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity payload: %w", err)
	}
	err = s.activities.CreateTx(ctx, tx, &models.Activity{
		DealID:   deal.ID,
		AuthorID: &actorID,
		Type:     models.ActivityTaskCreated,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task creation: %w", err)
	}
	telemetry.TasksCreatedTotal.Inc()
	telemetry.ActivitiesRecordedTotal.WithLabelValues(string(models.ActivityTaskCreated)).Inc()

	return task, nil
}

// List returns tasks in the organization matching the filter. Members only see
// tasks they own. When a deal filter is present the deal must be in scope.
func (s *TaskService) List(ctx context.Context, orgCtx *OrganizationContext, actorID string, filter repositories.TaskFilter) ([]*models.Task, error) {
	if filter.DealID != nil {
		deal, err := s.deals.Get(ctx, *filter.DealID)
		if err != nil {
			return nil, err
		}
		if deal == nil || deal.OrganizationID != orgCtx.Organization.ID {
			return nil, NotFound("deal not found")
		}
	}

	if orgCtx.Role().OwnEntitiesOnly() {
		owner := actorID
		filter.OwnerID = &owner
	}

	return s.tasks.ListFiltered(ctx, orgCtx.Organization.ID, filter)
}
