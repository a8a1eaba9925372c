// deal_repository.go implements DealRepository, providing organization-scoped deal
// queries, the transactional partial update used by the lifecycle engine, and the
// aggregate queries behind analytics.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/db/models"
)

// dealColumns is the canonical select list, kept in one place so Get, List, and
// the RETURNING clause of UpdateTx stay in sync.
const dealColumns = "id, organization_id, contact_id, owner_id, title, amount, currency, status, stage, created_at, updated_at"

// orderableDealColumns is the allowlist for the order_by list parameter. Unknown
// fields silently fall back to created_at, matching the documented list behavior.
var orderableDealColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"amount":     true,
	"title":      true,
	"status":     true,
	"stage":      true,
}

// DealFilter carries the list query parameters. Zero values mean "no filter".
type DealFilter struct {
	Statuses  []models.DealStatus
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Stage     *models.DealStage
	OwnerID   *string
	OrderBy   string
	Order     string
	Limit     int
	Offset    int
}

// DealPatch is a partial field set for UpdateTx. Nil fields are left unchanged.
type DealPatch struct {
	Title    *string
	Amount   *decimal.Decimal
	Currency *string
	Status   *models.DealStatus
	Stage    *models.DealStage
}

// Empty reports whether the patch changes nothing.
func (p DealPatch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.Currency == nil && p.Status == nil && p.Stage == nil
}

// AmountStats holds summed and averaged amounts for one status bucket.
type AmountStats struct {
	Total decimal.Decimal
	Avg   decimal.Decimal
}

// FunnelRow is one (stage, status) bucket of the deal funnel.
type FunnelRow struct {
	Stage  models.DealStage
	Status models.DealStatus
	Count  int
}

// DealRepository handles database operations for deals
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// BeginTx starts a transaction for a multi-statement deal mutation.
func (r *DealRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func scanDeal(row interface{ Scan(...interface{}) error }) (*models.Deal, error) {
	deal := &models.Deal{}
	err := row.Scan(
		&deal.ID,
		&deal.OrganizationID,
		&deal.ContactID,
		&deal.OwnerID,
		&deal.Title,
		&deal.Amount,
		&deal.Currency,
		&deal.Status,
		&deal.Stage,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	return deal, err
}

// Get retrieves a deal by id
func (r *DealRepository) Get(ctx context.Context, id string) (*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	deal, err := scanDeal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	return deal, nil
}

// Create inserts a new deal with the default new/qualification state.
func (r *DealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	deal.CreatedAt = now
	deal.UpdatedAt = now
	if deal.Status == "" {
		deal.Status = models.DealStatusNew
	}
	if deal.Stage == "" {
		deal.Stage = models.StageQualification
	}

	query := `
		INSERT INTO deals (id, organization_id, contact_id, owner_id, title, amount, currency, status, stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		deal.ID,
		deal.OrganizationID,
		deal.ContactID,
		deal.OwnerID,
		deal.Title,
		deal.Amount,
		deal.Currency,
		deal.Status,
		deal.Stage,
		deal.CreatedAt,
		deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	return nil
}

// UpdateTx applies a partial update inside the caller's transaction and returns
// the updated row. Returns (nil, nil) when no row matched, which means the deal
// vanished between the service's read and this write.
func (r *DealRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, dealID, orgID string, patch DealPatch) (*models.Deal, error) {
	set := []string{}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Currency != nil {
		add("currency", *patch.Currency)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Stage != nil {
		add("stage", *patch.Stage)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, dealID, orgID)
	query := fmt.Sprintf(
		`UPDATE deals SET %s WHERE id = $%d AND organization_id = $%d RETURNING `+dealColumns,
		strings.Join(set, ", "), len(args)-1, len(args),
	)

	deal, err := scanDeal(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}

	return deal, nil
}

// ListForOrg retrieves deals for an organization with the given filters, ordering,
// and pagination.
func (r *DealRepository) ListForOrg(ctx context.Context, orgID string, filter DealFilter) ([]*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE organization_id = $1`
	args := []interface{}{orgID}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.MinAmount != nil {
		args = append(args, *filter.MinAmount)
		query += fmt.Sprintf(" AND amount >= $%d", len(args))
	}
	if filter.MaxAmount != nil {
		args = append(args, *filter.MaxAmount)
		query += fmt.Sprintf(" AND amount <= $%d", len(args))
	}
	if filter.Stage != nil {
		args = append(args, *filter.Stage)
		query += fmt.Sprintf(" AND stage = $%d", len(args))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}

	orderBy := filter.OrderBy
	if !orderableDealColumns[orderBy] {
		orderBy = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]*models.Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}

	return deals, rows.Err()
}

// HasContactDeals reports whether any deal references the given contact.
func (r *DealRepository) HasContactDeals(ctx context.Context, contactID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM deals WHERE contact_id = $1`
	if err := r.db.QueryRowContext(ctx, query, contactID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count contact deals: %w", err)
	}

	return count > 0, nil
}

// CountByStatus returns the number of deals per status for an organization.
func (r *DealRepository) CountByStatus(ctx context.Context, orgID string) (map[models.DealStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM deals
		WHERE organization_id = $1
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count deals by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.DealStatus]int)
	for rows.Next() {
		var status models.DealStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// AmountStatsByStatus returns summed and averaged deal amounts per status.
func (r *DealRepository) AmountStatsByStatus(ctx context.Context, orgID string) (map[models.DealStatus]AmountStats, error) {
	query := `
		SELECT status, COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0)
		FROM deals
		WHERE organization_id = $1
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deal amounts: %w", err)
	}
	defer rows.Close()

	stats := make(map[models.DealStatus]AmountStats)
	for rows.Next() {
		var status models.DealStatus
		var s AmountStats
		if err := rows.Scan(&status, &s.Total, &s.Avg); err != nil {
			return nil, fmt.Errorf("failed to scan amount stats: %w", err)
		}
		stats[status] = s
	}

	return stats, rows.Err()
}

// CountNewerThan returns the number of deals created within the trailing window.
func (r *DealRepository) CountNewerThan(ctx context.Context, orgID string, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var count int
	query := `SELECT COUNT(*) FROM deals WHERE organization_id = $1 AND created_at >= $2`
	if err := r.db.QueryRowContext(ctx, query, orgID, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent deals: %w", err)
	}

	return count, nil
}

// Funnel returns deal counts grouped by (stage, status).
func (r *DealRepository) Funnel(ctx context.Context, orgID string) ([]FunnelRow, error) {
	query := `
		SELECT stage, status, COUNT(*)
		FROM deals
		WHERE organization_id = $1
		GROUP BY stage, status
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel: %w", err)
	}
	defer rows.Close()

	funnel := make([]FunnelRow, 0)
	for rows.Next() {
		var row FunnelRow
		if err := rows.Scan(&row.Stage, &row.Status, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan funnel row: %w", err)
		}
		funnel = append(funnel, row)
	}

	return funnel, rows.Err()
}
