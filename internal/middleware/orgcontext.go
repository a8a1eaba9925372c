// orgcontext.go resolves the tenant for org-scoped routes. Every request below
// /api/v1 (except auth and organization listing) must name its organization via
// the X-Organization-Id header; the caller must be a member of that organization.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/salespipe/salespipe/internal/service"
)

const (
	// OrgHeader is the HTTP header naming the organization a request operates on.
	OrgHeader = "X-Organization-Id"

	// OrgContextKey is the gin.Context key under which the resolved
	// *service.OrganizationContext is stored.
	OrgContextKey = "org_context"
)

// OrgContextMiddleware resolves the X-Organization-Id header to an organization
// the authenticated user belongs to and stores the result in the request context.
//
// A request for an organization the caller does not belong to gets the same 404
// as a request for an organization that does not exist, so outsiders cannot
// probe for valid organization IDs.
func OrgContextMiddleware(orgs *service.OrganizationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetHeader(OrgHeader)
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"detail": "missing X-Organization-Id header",
			})
			return
		}
		// A header that is not a UUID cannot name an organization, and must not
		// reach the uuid-typed column. Same 404 as an unknown id.
		if _, err := uuid.Parse(orgID); err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"detail": "organization not found",
			})
			return
		}

		userID := c.GetString(UserIDKey)
		orgCtx, err := orgs.EnsureMembership(c.Request.Context(), orgID, userID)
		if err != nil {
			if domainErr, ok := service.AsError(err); ok {
				c.AbortWithStatusJSON(domainErr.Status(), gin.H{"detail": domainErr.Message})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"detail": "failed to resolve organization",
			})
			return
		}

		c.Set(OrgContextKey, orgCtx)

		c.Next()
	}
}

// GetOrgContext retrieves the organization context stored by OrgContextMiddleware.
// The second return value is false when the middleware did not run for this route.
func GetOrgContext(c *gin.Context) (*service.OrganizationContext, bool) {
	v, exists := c.Get(OrgContextKey)
	if !exists {
		return nil, false
	}
	orgCtx, ok := v.(*service.OrganizationContext)
	return orgCtx, ok
}
