package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maintenance-backend/internal/store"
)

type assignmentRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	PlanID        int64  `json:"maintenance_plan_id" binding:"required"`
	Date          string `json:"assignment_date" binding:"required"`
	PriorityOrder int    `json:"priority_order"`
}

// CreateAssignment handles POST /api/assignments.
func (h *Handler) CreateAssignment(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	day, err := h.day(req.Date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	a, err := h.store.CreateAssignment(c.Request.Context(), store.AssignmentInput{
		UserID:        req.UserID,
		PlanID:        req.PlanID,
		Date:          day,
		PriorityOrder: req.PriorityOrder,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

type autoAssignRequest struct {
	Date string `json:"date"`
}

// AutoAssign handles POST /api/assignments/auto.
func (h *Handler) AutoAssign(c *gin.Context) {
	var req autoAssignRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	day, err := h.day(req.Date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sum, err := h.store.AutoAssign(c.Request.Context(), day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
