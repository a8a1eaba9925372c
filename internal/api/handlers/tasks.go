package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/middleware"
	"github.com/salespipe/salespipe/internal/service"
)

type createTaskRequest struct {
	DealID      string  `json:"deal_id" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	DueDate     string  `json:"due_date" binding:"required"`
}

// Due dates are date-granular; timestamps are also accepted and truncated by
// the service layer.
func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// @Summary      Create task
// @Description  Creates a follow-up task attached to a deal. The due date must not be in the past; members may only attach tasks to deals they own. A task_created activity is appended to the deal's trail.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "task"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      404  {object}  map[string]interface{}  "Deal not found"
// @Router       /api/v1/tasks [post]
func CreateTaskHandler(tasks *service.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}

		dueDate, err := parseDueDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "due_date must be a date in YYYY-MM-DD form"})
			return
		}

		task, err := tasks.Create(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), service.TaskInput{
			DealID:      req.DealID,
			Title:       req.Title,
			Description: req.Description,
			DueDate:     dueDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"task": task})
	}
}

// @Summary      List tasks
// @Description  Lists the organization's tasks ordered by due date. Members only see tasks on their own deals. Filters: deal_id, owner_id, only_open, due_before, due_after.
// @Tags         Tasks
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tasks"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter value"
// @Router       /api/v1/tasks [get]
func ListTasksHandler(tasks *service.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgCtx, ok := middleware.GetOrgContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "organization context missing"})
			return
		}

		filter, err := parseTaskFilter(c)
		if err != nil {
			respondError(c, err)
			return
		}

		list, err := tasks.List(c.Request.Context(), orgCtx, c.GetString(middleware.UserIDKey), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tasks": list})
	}
}

func parseTaskFilter(c *gin.Context) (repositories.TaskFilter, error) {
	var filter repositories.TaskFilter

	if raw := c.Query("deal_id"); raw != "" {
		filter.DealID = &raw
	}
	if raw := c.Query("owner_id"); raw != "" {
		filter.OwnerID = &raw
	}
	filter.OnlyOpen = c.Query("only_open") == "true"

	if raw := c.Query("due_before"); raw != "" {
		t, err := parseDueDate(raw)
		if err != nil {
			return filter, service.Validation("due_before is not a valid date")
		}
		filter.DueBefore = &t
	}
	if raw := c.Query("due_after"); raw != "" {
		t, err := parseDueDate(raw)
		if err != nil {
			return filter, service.Validation("due_after is not a valid date")
		}
		filter.DueAfter = &t
	}

	return filter, nil
}
