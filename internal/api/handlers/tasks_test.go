package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/service"
)

func newTaskRouter(t *testing.T, role models.Role) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	mock, db := newMockDB(t)

	svc := service.NewTaskService(
		repositories.NewTaskRepository(db),
		repositories.NewDealRepository(sqlx.NewDb(db, "postgres")),
		repositories.NewActivityRepository(db),
	)

	r := gin.New()
	r.Use(withOrgContext("user-1", role))
	r.POST("/tasks", CreateTaskHandler(svc))
	r.GET("/tasks", ListTasksHandler(svc))
	return mock, r
}

// ---------------------------------------------------------------------------
// CreateTaskHandler tests
// ---------------------------------------------------------------------------

func TestCreateTask_Success(t *testing.T) {
	mock, r := newTaskRouter(t, models.RoleMember)

	mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WillReturnRows(sampleDealRow())
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tasks").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	due := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	body := []byte(fmt.Sprintf(`{"deal_id":"deal-1","title":"Call back","due_date":%q}`, due))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tasks", bytes.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["task"] == nil {
		t.Error("response missing 'task' key")
	}
}

func TestCreateTask_MalformedDueDate(t *testing.T) {
	_, r := newTaskRouter(t, models.RoleMember)

	body := []byte(`{"deal_id":"deal-1","title":"Call back","due_date":"next tuesday"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tasks", bytes.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateTask_DueDateInPast(t *testing.T) {
	_, r := newTaskRouter(t, models.RoleMember)

	body := []byte(`{"deal_id":"deal-1","title":"Call back","due_date":"2019-01-01"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tasks", bytes.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: body=%s", w.Code, w.Body.String())
	}
}

func TestCreateTask_MemberOnForeignDeal(t *testing.T) {
	mock, r := newTaskRouter(t, models.RoleMember)

	mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WillReturnRows(sqlmock.NewRows(dealCols).
			AddRow("deal-1", "org-1", "contact-1", "user-2", "Big deal", "1500.00", "USD", "new", "qualification", testTime(), testTime()))

	due := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	body := []byte(fmt.Sprintf(`{"deal_id":"deal-1","title":"Call back","due_date":%q}`, due))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tasks", bytes.NewReader(body)))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403: body=%s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// ListTasksHandler tests
// ---------------------------------------------------------------------------

func TestListTasks_Success(t *testing.T) {
	mock, r := newTaskRouter(t, models.RoleAdmin)

	mock.ExpectQuery("SELECT.*FROM tasks").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("task-1", "deal-1", "user-1", "Call back", nil, testTime(), false, testTime()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/tasks?only_open=true", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["tasks"] == nil {
		t.Error("response missing 'tasks' key")
	}
}

func TestListTasks_InvalidDueBefore(t *testing.T) {
	_, r := newTaskRouter(t, models.RoleAdmin)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/tasks?due_before=soon", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListTasks_DealFilterOutOfScope(t *testing.T) {
	mock, r := newTaskRouter(t, models.RoleAdmin)

	mock.ExpectQuery("SELECT.*FROM deals WHERE id").
		WillReturnRows(sqlmock.NewRows(dealCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/tasks?deal_id=missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: body=%s", w.Code, w.Body.String())
	}
}
