package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

// @Summary      List organizations
// @Description  Returns every organization the authenticated user belongs to.
// @Tags         Organizations
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organizations"
// @Router       /api/v1/organizations/me [get]
func ListOrganizationsHandler(orgSvc *service.OrganizationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgs, err := orgSvc.ListForUser(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"organizations": orgs})
	}
}

// @Summary      Current organization
// @Description  Returns the organization named by X-Organization-Id together with the caller's role in it.
// @Tags         Organizations
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organization, role"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/v1/organizations/current [get]
func CurrentOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"organization": orgCtx.Organization,
			"role":         orgCtx.Role(),
		})
	}
}
