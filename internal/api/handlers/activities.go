package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

type addCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// @Summary      List deal activities
// @Description  Returns the deal's full activity trail in chronological order. Any member of the organization may read it.
// @Tags         Activities
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "activities"
// @Failure      404  {object}  map[string]interface{}  "Deal not found"
// @Router       /api/v1/deals/{deal_id}/activities [get]
func ListActivitiesHandler(activities *service.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		list, err := activities.ListForDeal(c.Request.Context(), orgCtx, c.Param("deal_id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"activities": list})
	}
}

// @Summary      Comment on a deal
// @Description  Appends a comment activity to the deal's trail. Any member of the organization may comment, regardless of deal ownership.
// @Tags         Activities
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "activity"
// @Failure      400  {object}  map[string]interface{}  "Empty comment body"
// @Failure      404  {object}  map[string]interface{}  "Deal not found"
// @Router       /api/v1/deals/{deal_id}/activities [post]
func AddCommentHandler(activities *service.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var req addCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		activity, err := activities.AddComment(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), c.Param("deal_id"), req.Body)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"activity": activity})
	}
}
