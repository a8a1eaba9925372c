package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/auth"
	"github.com/salespipe/salespipe/internal/db/repositories"
)

const testSecret = "test-jwt-secret-that-is-32-chars!!"

var userCols = []string{"id", "email", "hashed_password", "name", "created_at"}

// newAuthRouter wires AuthMiddleware over a sqlmock-backed user repository and
// a protected route that echoes the resolved user ID.
func newAuthRouter(t *testing.T) (*gin.Engine, *auth.TokenManager, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal("sqlmock.New:", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenManager(testSecret, time.Minute, time.Hour)
	if err != nil {
		t.Fatal("NewTokenManager:", err)
	}

	r := gin.New()
	r.Use(AuthMiddleware(tokens, repositories.NewUserRepository(db)))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r, tokens, mock
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r, tokens, mock := newAuthRouter(t)

	token, err := tokens.GenerateAccessToken("user-1", "a@example.com")
	if err != nil {
		t.Fatal("GenerateAccessToken:", err)
	}
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "a@example.com", "hash", "Alice", time.Now()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_NotBearer(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_RefreshTokenRejected(t *testing.T) {
	r, tokens, _ := newAuthRouter(t)

	token, err := tokens.GenerateRefreshToken("user-1", "a@example.com")
	if err != nil {
		t.Fatal("GenerateRefreshToken:", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for refresh token on API route", w.Code)
	}
}

func TestAuthMiddleware_DeletedUser(t *testing.T) {
	r, tokens, mock := newAuthRouter(t)

	token, err := tokens.GenerateAccessToken("gone", "gone@example.com")
	if err != nil {
		t.Fatal("GenerateAccessToken:", err)
	}
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deleted user", w.Code)
	}
}
