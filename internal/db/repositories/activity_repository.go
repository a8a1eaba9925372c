// activity_repository.go implements ActivityRepository for the append-only audit
// trail. There is deliberately no update or delete path.
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

// ActivityRepository handles database operations for deal activities
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityInsert = `
	INSERT INTO activities (id, deal_id, author_id, type, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

func prepareActivity(activity *models.Activity) {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	activity.CreatedAt = time.Now().UTC()
	if activity.Type == "" {
		activity.Type = models.ActivitySystem
	}
}

// Create appends an activity row outside any transaction (comments).
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	prepareActivity(activity)

	_, err := r.db.ExecContext(ctx, activityInsert,
		activity.ID,
		activity.DealID,
		activity.AuthorID,
		activity.Type,
		activity.Payload,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// CreateTx appends an activity row inside the caller's transaction so it commits
// or rolls back together with the deal mutation that produced it.
func (r *ActivityRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, activity *models.Activity) error {
	prepareActivity(activity)

	_, err := tx.ExecContext(ctx, activityInsert,
		activity.ID,
		activity.DealID,
		activity.AuthorID,
		activity.Type,
		activity.Payload,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// ListForDeal retrieves the audit trail for a deal, oldest first.
func (r *ActivityRepository) ListForDeal(ctx context.Context, dealID string) ([]*models.Activity, error) {
	query := `
		SELECT id, deal_id, author_id, type, payload, created_at
		FROM activities
		WHERE deal_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*models.Activity, 0)
	for rows.Next() {
		activity := &models.Activity{}
		err := rows.Scan(
			&activity.ID,
			&activity.DealID,
			&activity.AuthorID,
			&activity.Type,
			&activity.Payload,
			&activity.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, activity)
	}

	return activities, rows.Err()
}
