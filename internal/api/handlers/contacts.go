package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

type createContactRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	OwnerID string  `json:"owner_id"`
}

// @Summary      Create contact
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "contact"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      403  {object}  map[string]interface{}  "Members may only create contacts they own"
// @Router       /api/v1/contacts [post]
func CreateContactHandler(contacts *service.ContactService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var req createContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		contact, err := contacts.Create(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), service.ContactInput{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			OwnerID: req.OwnerID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"contact": contact})
	}
}

// @Summary      List contacts
// @Description  Lists the organization's contacts. Members only see contacts they own. Supports owner_id and search query filters plus page/page_size.
// @Tags         Contacts
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "contacts"
// @Router       /api/v1/contacts [get]
func ListContactsHandler(contacts *service.ContactService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var ownerID *string
		if v := c.Query("owner_id"); v != "" {
			ownerID = &v
		}
		limit, offset := pagination(c)

		list, err := contacts.List(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), ownerID, c.Query("search"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"contacts": list})
	}
}

// @Summary      Get contact
// @Tags         Contacts
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "contact"
// @Failure      404  {object}  map[string]interface{}  "Contact not found"
// @Router       /api/v1/contacts/{contact_id} [get]
func GetContactHandler(contacts *service.ContactService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		contact, err := contacts.Get(c.Request.Context(), orgCtx, c.Param("contact_id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"contact": contact})
	}
}

// @Summary      Delete contact
// @Description  Deletes a contact unless any deal still references it.
// @Tags         Contacts
// @Produce      json
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}  "Contact not found"
// @Failure      409  {object}  map[string]interface{}  "Contact is referenced by existing deals"
// @Router       /api/v1/contacts/{contact_id} [delete]
func DeleteContactHandler(contacts *service.ContactService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		if err := contacts.Delete(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), c.Param("contact_id")); err != nil {
			respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
