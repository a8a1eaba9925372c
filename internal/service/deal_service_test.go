package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
)

func newDealService(t *testing.T) (*DealService, *testEnv) {
	env := newTestEnv(t)
	return NewDealService(env.deals, env.contacts, env.orgs, env.activities), env
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestDealCreate_Success(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM contacts.*WHERE id").
		WithArgs("contact-1").
		WillReturnRows(contactRow("org-1", "user-1"))
	env.mock.ExpectExec("INSERT INTO deals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	deal, err := svc.Create(context.Background(), testOrgCtx(models.RoleMember), "user-1", DealInput{
		Title:     "Big deal",
		ContactID: "contact-1",
		Amount:    decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deal.Status != models.DealStatusNew || deal.Stage != models.StageQualification {
		t.Errorf("new deal state = %s/%s, want new/qualification", deal.Status, deal.Stage)
	}
	if deal.OwnerID != "user-1" {
		t.Errorf("OwnerID = %s, want actor", deal.OwnerID)
	}
}

func TestDealCreate_MissingTitle(t *testing.T) {
	svc, _ := newDealService(t)
	_, err := svc.Create(context.Background(), testOrgCtx(models.RoleMember), "user-1", DealInput{
		ContactID: "contact-1",
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealCreate_NegativeAmount(t *testing.T) {
	svc, _ := newDealService(t)
	_, err := svc.Create(context.Background(), testOrgCtx(models.RoleMember), "user-1", DealInput{
		Title:     "Big deal",
		ContactID: "contact-1",
		Amount:    decimal.NewFromInt(-5),
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealCreate_ForeignContactLooksAbsent(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM contacts.*WHERE id").
		WithArgs("contact-1").
		WillReturnRows(contactRow("other-org", "user-9"))

	_, err := svc.Create(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", DealInput{
		Title:     "Big deal",
		ContactID: "contact-1",
	})
	expectDomainError(t, err, KindNotFound)
}

func TestDealCreate_MemberCannotAssignOtherOwner(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM contacts.*WHERE id").
		WithArgs("contact-1").
		WillReturnRows(contactRow("org-1", "user-1"))

	_, err := svc.Create(context.Background(), testOrgCtx(models.RoleMember), "user-1", DealInput{
		Title:     "Big deal",
		ContactID: "contact-1",
		OwnerID:   "user-2",
	})
	expectDomainError(t, err, KindPermissionDenied)
}

func TestDealCreate_ManagerAssignsMemberOwner(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM contacts.*WHERE id").
		WithArgs("contact-1").
		WillReturnRows(contactRow("org-1", "user-1"))
	env.mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE organization_id").
		WithArgs("org-1", "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}).
			AddRow("member-2", "org-1", "user-2", "member", time.Now()))
	env.mock.ExpectExec("INSERT INTO deals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	deal, err := svc.Create(context.Background(), testOrgCtx(models.RoleManager), "user-1", DealInput{
		Title:     "Big deal",
		ContactID: "contact-1",
		OwnerID:   "user-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deal.OwnerID != "user-2" {
		t.Errorf("OwnerID = %s, want user-2", deal.OwnerID)
	}
}

// ---------------------------------------------------------------------------
// Update: lifecycle rules
// ---------------------------------------------------------------------------

func TestDealUpdate_StatusChangeWritesActivity(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "new", "qualification"))
	env.mock.ExpectBegin()
	env.mock.ExpectQuery("UPDATE deals SET.*RETURNING").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "qualification"))
	env.mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()

	status := models.DealStatusInProgress
	deal, err := svc.Update(context.Background(), testOrgCtx(models.RoleMember), "user-1", "deal-1", DealPatchInput{
		Status: &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deal.Status != models.DealStatusInProgress {
		t.Errorf("Status = %s, want in_progress", deal.Status)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDealUpdate_StageAndStatusWriteTwoActivities(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "proposal"))
	env.mock.ExpectBegin()
	env.mock.ExpectQuery("UPDATE deals SET.*RETURNING").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "won", "closed"))
	env.mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()

	status := models.DealStatusWon
	stage := models.StageClosed
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Status: &status,
		Stage:  &stage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDealUpdate_WonRequiresPositiveAmount(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "0.00", "in_progress", "negotiation"))

	status := models.DealStatusWon
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Status: &status,
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealUpdate_WonWithExplicitZeroAmountRejected(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "negotiation"))

	// The patch's zero overrides the stored positive amount.
	status := models.DealStatusWon
	zero := decimal.Zero
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Status: &status,
		Amount: &zero,
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealUpdate_ZeroingAmountOfWonDealRejected(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "won", "closed"))

	// No status in the patch: the stored won status still forbids a zero amount.
	zero := decimal.Zero
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Amount: &zero,
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealUpdate_WonWithPatchedAmountAccepted(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "0.00", "in_progress", "negotiation"))
	env.mock.ExpectBegin()
	env.mock.ExpectQuery("UPDATE deals SET.*RETURNING").
		WillReturnRows(dealRow("org-1", "user-1", "500.00", "won", "negotiation"))
	env.mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()

	status := models.DealStatusWon
	amount := decimal.NewFromInt(500)
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Status: &status,
		Amount: &amount,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDealUpdate_BackwardStageNeedsAdmin(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "negotiation"))

	stage := models.StageProposal
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleManager), "user-1", "deal-1", DealPatchInput{
		Stage: &stage,
	})
	expectDomainError(t, err, KindPermissionDenied)
}

func TestDealUpdate_BackwardStageAllowedForAdmin(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "negotiation"))
	env.mock.ExpectBegin()
	env.mock.ExpectQuery("UPDATE deals SET.*RETURNING").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "in_progress", "proposal"))
	env.mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectCommit()

	stage := models.StageProposal
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", "deal-1", DealPatchInput{
		Stage: &stage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDealUpdate_MemberCannotTouchForeignDeal(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-9", "1000.00", "new", "qualification"))

	title := "Renamed"
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleMember), "user-1", "deal-1", DealPatchInput{
		Title: &title,
	})
	expectDomainError(t, err, KindPermissionDenied)
}

func TestDealUpdate_CrossOrgLooksAbsent(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("other-org", "user-1", "1000.00", "new", "qualification"))

	title := "Renamed"
	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleOwner), "user-1", "deal-1", DealPatchInput{
		Title: &title,
	})
	expectDomainError(t, err, KindNotFound)
}

func TestDealUpdate_EmptyPatchRejected(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WithArgs("deal-1").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "new", "qualification"))

	_, err := svc.Update(context.Background(), testOrgCtx(models.RoleOwner), "user-1", "deal-1", DealPatchInput{})
	expectDomainError(t, err, KindValidation)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestDealList_MemberForcedToOwnDeals(t *testing.T) {
	svc, env := newDealService(t)
	env.mock.ExpectQuery("SELECT.*FROM deals WHERE organization_id.*owner_id").
		WillReturnRows(dealRow("org-1", "user-1", "1000.00", "new", "qualification"))

	deals, err := svc.List(context.Background(), testOrgCtx(models.RoleMember), "user-1", repositories.DealFilter{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deals) != 1 {
		t.Errorf("len(deals) = %d, want 1", len(deals))
	}
}

func TestDealList_UnknownStatusRejected(t *testing.T) {
	svc, _ := newDealService(t)
	_, err := svc.List(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", repositories.DealFilter{
		Statuses: []models.DealStatus{"bogus"},
	})
	expectDomainError(t, err, KindValidation)
}

func TestDealList_InvertedAmountRangeRejected(t *testing.T) {
	svc, _ := newDealService(t)
	min := decimal.NewFromInt(500)
	max := decimal.NewFromInt(100)
	_, err := svc.List(context.Background(), testOrgCtx(models.RoleAdmin), "user-1", repositories.DealFilter{
		MinAmount: &min,
		MaxAmount: &max,
	})
	expectDomainError(t, err, KindValidation)
}
