// contact_repository.go implements ContactRepository, providing organization-scoped
// contact CRUD and filtered listing.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salespipe/salespipe/internal/db/models"
)

// ContactRepository handles database operations for contacts
type ContactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Get retrieves a contact by id
func (r *ContactRepository) Get(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT id, organization_id, owner_id, name, email, phone, created_at
		FROM contacts
		WHERE id = $1
	`

	contact := &models.Contact{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.OrganizationID,
		&contact.OwnerID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// Create inserts a new contact
func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	contact.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO contacts (id, organization_id, owner_id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		contact.ID,
		contact.OrganizationID,
		contact.OwnerID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

// Delete removes a contact by id
func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM contacts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	return nil
}

// ListForOrg retrieves contacts belonging to an organization, optionally filtered
// by owner and by a case-insensitive search over name, email, and phone.
func (r *ContactRepository) ListForOrg(ctx context.Context, orgID string, ownerID *string, search string, limit, offset int) ([]*models.Contact, error) {
	query := `
		SELECT id, organization_id, owner_id, name, email, phone, created_at
		FROM contacts
		WHERE organization_id = $1
	`
	args := []interface{}{orgID}

	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n)
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		contact := &models.Contact{}
		err := rows.Scan(
			&contact.ID,
			&contact.OrganizationID,
			&contact.OwnerID,
			&contact.Name,
			&contact.Email,
			&contact.Phone,
			&contact.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	return contacts, rows.Err()
}
