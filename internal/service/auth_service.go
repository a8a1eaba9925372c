package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/salespipe/salespipe/internal/auth"
	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

// TokenPair is an access/refresh token couple issued on register, login, and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService handles registration, login, and token refresh.
type AuthService struct {
	users  *repositories.UserRepository
	orgs   *repositories.OrganizationRepository
	tokens *auth.TokenManager
}

// NewAuthService creates a new auth service
func NewAuthService(users *repositories.UserRepository, orgs *repositories.OrganizationRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, orgs: orgs, tokens: tokens}
}

// Register creates a user account plus a fresh organization and makes the user
// its owner. Duplicate emails and organization names are conflicts.
func (s *AuthService) Register(ctx context.Context, email, password, name, orgName string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, Validation("a valid email is required")
	}
	if len(password) < 8 {
		return nil, nil, Validation("password must be at least 8 characters")
	}
	if strings.TrimSpace(orgName) == "" {
		return nil, nil, Validation("organization name is required")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, nil, Conflict("email already registered")
	}

	existingOrg, err := s.orgs.GetByName(ctx, orgName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check organization name: %w", err)
	}
	if existingOrg != nil {
		return nil, nil, Conflict("organization name already taken")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The user, organization, and owner membership commit together; a failure
	// partway through must not leave an orphaned user whose email is burned.
	// Unique violations inside the transaction are registration races that the
	// pre-checks above could not see.
	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	user := &models.User{Email: email, HashedPassword: hash, Name: name}
	if err := s.users.CreateTx(ctx, tx, user); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, nil, Conflict("email already registered")
		}
		return nil, nil, err
	}

	org := &models.Organization{Name: strings.TrimSpace(orgName)}
	if err := s.orgs.CreateTx(ctx, tx, org); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, nil, Conflict("organization name already taken")
		}
		return nil, nil, err
	}

	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           models.RoleOwner,
	}
	if err := s.orgs.AddMemberTx(ctx, tx, member); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials and issues a token pair. Unknown emails and wrong
// passwords produce the same error so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !auth.CheckPassword(user.HashedPassword, password) {
		telemetry.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
		return nil, nil, Unauthorized("invalid email or password")
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, Unauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, Unauthorized("invalid refresh token")
	}

	return s.issueTokens(user)
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
