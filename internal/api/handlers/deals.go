package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/db/models"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

type createDealRequest struct {
	Title     string          `json:"title" binding:"required"`
	ContactID string          `json:"contact_id" binding:"required"`
	OwnerID   string          `json:"owner_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type updateDealRequest struct {
	Title    *string          `json:"title"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency *string          `json:"currency"`
	Status   *string          `json:"status"`
	Stage    *string          `json:"stage"`
}

// @Summary      Create deal
// @Description  Creates a deal in status "new" and stage "qualification". The contact must belong to the organization; members always own their deals.
// @Tags         Deals
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "deal"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      403  {object}  map[string]interface{}  "Members cannot assign other owners"
// @Failure      404  {object}  map[string]interface{}  "Contact not found"
// @Router       /api/v1/deals [post]
func CreateDealHandler(deals *service.DealService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var req createDealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		deal, err := deals.Create(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), service.DealInput{
			Title:     req.Title,
			ContactID: req.ContactID,
			OwnerID:   req.OwnerID,
			Amount:    req.Amount,
			Currency:  req.Currency,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"deal": deal})
	}
}

// @Summary      Get deal
// @Tags         Deals
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "deal"
// @Failure      404  {object}  map[string]interface{}  "Deal not found"
// @Router       /api/v1/deals/{deal_id} [get]
func GetDealHandler(deals *service.DealService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		deal, err := deals.Get(c.Request.Context(), orgCtx, c.Param("deal_id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deal": deal})
	}
}

// @Summary      Update deal
// @Description  Partially updates a deal. Status and stage changes flow through the lifecycle engine: closing as won requires a positive amount, and moving a deal to an earlier stage requires the owner or admin role. Each status or stage change appends an activity record atomically with the update.
// @Tags         Deals
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "deal"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      403  {object}  map[string]interface{}  "Role does not permit this change"
// @Failure      404  {object}  map[string]interface{}  "Deal not found"
// @Router       /api/v1/deals/{deal_id} [patch]
func UpdateDealHandler(deals *service.DealService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var req updateDealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		input := service.DealPatchInput{
			Title:    req.Title,
			Amount:   req.Amount,
			Currency: req.Currency,
		}
		if req.Status != nil {
			status := models.DealStatus(*req.Status)
			input.Status = &status
		}
		if req.Stage != nil {
			stage := models.DealStage(*req.Stage)
			input.Stage = &stage
		}

		deal, err := deals.Update(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), c.Param("deal_id"), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deal": deal})
	}
}

// @Summary      List deals
// @Description  Lists the organization's deals. Members only see deals they own. Filters: status (comma-separated), stage, owner_id, min_amount, max_amount. Sorting: order_by (created_at, updated_at, amount, title) and order (asc, desc). Pagination: page, page_size.
// @Tags         Deals
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "deals"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter value"
// @Router       /api/v1/deals [get]
func ListDealsHandler(deals *service.DealService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		filter, err := parseDealFilter(c)
		if err != nil {
			respondError(c, err)
			return
		}

		list, err := deals.List(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deals": list})
	}
}

// parseDealFilter builds a repository filter from list query parameters.
// Unknown status or stage values surface as 400s in the service layer; amounts
// that fail to parse are rejected here.
func parseDealFilter(c *gin.Context) (repositories.DealFilter, error) {
	var filter repositories.DealFilter

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.DealStatus(strings.TrimSpace(s)))
		}
	}
	if raw := c.Query("stage"); raw != "" {
		stage := models.DealStage(raw)
		filter.Stage = &stage
	}
	if raw := c.Query("owner_id"); raw != "" {
		filter.OwnerID = &raw
	}
	if raw := c.Query("min_amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, service.Validation("min_amount is not a valid number")
		}
		filter.MinAmount = &v
	}
	if raw := c.Query("max_amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, service.Validation("max_amount is not a valid number")
		}
		filter.MaxAmount = &v
	}

	filter.OrderBy = c.Query("order_by")
	filter.Order = c.Query("order")
	filter.Limit, filter.Offset = pagination(c)

	return filter, nil
}
