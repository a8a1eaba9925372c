package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

// @Summary      Deals summary
// @Description  Returns per-status deal counts and amount rollups plus the number of deals created in the trailing window. window_days defaults to 30 and must be between 1 and 365. Results are cached per organization and window.
// @Tags         Analytics
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "summary"
// @Failure      400  {object}  map[string]interface{}  "window_days out of range"
// @Router       /api/v1/analytics/deals/summary [get]
func DealsSummaryHandler(analytics *service.AnalyticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		windowDays := 0
		if raw := c.Query("window_days"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "window_days must be an integer"})
				return
			}
			windowDays = v
		}

		summary, err := analytics.Summary(c.Request.Context(), orgCtx.Organization.ID, windowDays)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

// @Summary      Deals funnel
// @Description  Returns counts of open deals per pipeline stage in stage order. Results are cached per organization.
// @Tags         Analytics
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "funnel"
// @Router       /api/v1/analytics/deals/funnel [get]
func DealsFunnelHandler(analytics *service.AnalyticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		funnel, err := analytics.Funnel(c.Request.Context(), orgCtx.Organization.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"funnel": funnel})
	}
}
