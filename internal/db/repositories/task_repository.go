// task_repository.go implements TaskRepository. Tasks carry no organization id of
// their own; org scoping goes through the parent deal, so the list query joins
// deals rather than trusting the caller.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/salespipe/salespipe/internal/db/models"
)

// TaskFilter carries the task list query parameters.
type TaskFilter struct {
	DealID    *string
	OwnerID   *string
	OnlyOpen  bool
	DueBefore *time.Time
	DueAfter  *time.Time
}

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTx inserts a new task inside the caller's transaction so it commits or
// rolls back together with the audit record announcing it.
func (r *TaskRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO tasks (id, deal_id, owner_id, title, description, due_date, is_done, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.ExecContext(ctx, query,
		task.ID,
		task.DealID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.DueDate,
		task.IsDone,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// ListFiltered retrieves tasks for an organization, scoped through the parent
// deal, ordered by due date.
func (r *TaskRepository) ListFiltered(ctx context.Context, orgID string, filter TaskFilter) ([]*models.Task, error) {
	query := `
		SELECT t.id, t.deal_id, t.owner_id, t.title, t.description, t.due_date, t.is_done, t.created_at
		FROM tasks t
		INNER JOIN deals d ON t.deal_id = d.id
		WHERE d.organization_id = $1
	`
	args := []interface{}{orgID}

	if filter.DealID != nil {
		args = append(args, *filter.DealID)
		query += fmt.Sprintf(" AND t.deal_id = $%d", len(args))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += fmt.Sprintf(" AND t.owner_id = $%d", len(args))
	}
	if filter.OnlyOpen {
		query += " AND t.is_done = FALSE"
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		query += fmt.Sprintf(" AND t.due_date <= $%d", len(args))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		query += fmt.Sprintf(" AND t.due_date >= $%d", len(args))
	}

	query += " ORDER BY t.due_date ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task := &models.Task{}
		err := rows.Scan(
			&task.ID,
			&task.DealID,
			&task.OwnerID,
			&task.Title,
			&task.Description,
			&task.DueDate,
			&task.IsDone,
			&task.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}
