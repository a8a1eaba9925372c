package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/service"
)

type registerRequest struct {
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// @Summary      Register
// @Description  Creates a user account plus an initial organization with the caller as owner, and returns a token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "user, tokens"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      409  {object}  map[string]interface{}  "Email or organization name already taken"
// @Router       /api/v1/auth/register [post]
func RegisterHandler(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		user, tokens, err := authSvc.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.OrganizationName)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":   user,
			"tokens": tokens,
		})
	}
}

// @Summary      Login
// @Description  Exchanges email and password for an access/refresh token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user, tokens"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/login [post]
func LoginHandler(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		user, tokens, err := authSvc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":   user,
			"tokens": tokens,
		})
	}
}

// @Summary      Refresh tokens
// @Description  Exchanges a valid refresh token for a fresh token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tokens"
// @Failure      401  {object}  map[string]interface{}  "Invalid refresh token"
// @Router       /api/v1/auth/refresh [post]
func RefreshHandler(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		tokens, err := authSvc.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tokens": tokens})
	}
}
