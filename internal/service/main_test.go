package service

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
)

var errDB = errors.New("db error")

// testEnv wires every repository onto one sqlmock connection so a test can
// script the full sequence of queries a service call performs.
type testEnv struct {
	db         *sql.DB
	mock       sqlmock.Sqlmock
	users      *repositories.UserRepository
	orgs       *repositories.OrganizationRepository
	contacts   *repositories.ContactRepository
	deals      *repositories.DealRepository
	tasks      *repositories.TaskRepository
	activities *repositories.ActivityRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testEnv{
		db:         db,
		mock:       mock,
		users:      repositories.NewUserRepository(db),
		orgs:       repositories.NewOrganizationRepository(db),
		contacts:   repositories.NewContactRepository(db),
		deals:      repositories.NewDealRepository(sqlx.NewDb(db, "sqlmock")),
		tasks:      repositories.NewTaskRepository(db),
		activities: repositories.NewActivityRepository(db),
	}
}

func testOrgCtx(role models.Role) *OrganizationContext {
	return &OrganizationContext{
		Organization: &models.Organization{ID: "org-1", Name: "Acme", CreatedAt: time.Now()},
		Membership: &models.OrganizationMember{
			ID:             "member-1",
			OrganizationID: "org-1",
			UserID:         "user-1",
			Role:           role,
		},
	}
}

var dealCols = []string{
	"id", "organization_id", "contact_id", "owner_id", "title",
	"amount", "currency", "status", "stage", "created_at", "updated_at",
}

func dealRow(orgID, ownerID, amount, status, stage string) *sqlmock.Rows {
	return sqlmock.NewRows(dealCols).
		AddRow("deal-1", orgID, "contact-1", ownerID, "Big deal",
			amount, "USD", status, stage, time.Now(), time.Now())
}

var contactCols = []string{"id", "organization_id", "owner_id", "name", "email", "phone", "created_at"}

func contactRow(orgID, ownerID string) *sqlmock.Rows {
	return sqlmock.NewRows(contactCols).
		AddRow("contact-1", orgID, ownerID, "Carol", nil, nil, time.Now())
}

func expectDomainError(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	domainErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected domain error, got %T: %v", err, err)
	}
	if domainErr.Kind != kind {
		t.Fatalf("error kind = %d (%q), want %d", domainErr.Kind, domainErr.Message, kind)
	}
}
