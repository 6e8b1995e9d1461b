package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"maintenance-backend/internal/due"
	"maintenance-backend/internal/generator"
	"maintenance-backend/internal/model"
	"maintenance-backend/internal/mw"
	"maintenance-backend/internal/store"
)

type generateRequest struct {
	At          string `json:"at"`
	WindowHours int    `json:"window_hours"`
}

// Generate handles POST /api/generate and returns the run summary.
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	at, err := h.instant(req.At)
	if err != nil {
		h.respondError(c, err)
		return
	}
	window := h.window
	if req.WindowHours > 0 {
		window = time.Duration(req.WindowHours) * time.Hour
	}

	sum, err := h.gen.GenerateTasks(c.Request.Context(), at, window)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryResponse(sum))
}

type generateResponse struct {
	generator.Summary
	WindowHours float64 `json:"window_hours"`
}

func summaryResponse(sum generator.Summary) generateResponse {
	return generateResponse{Summary: sum, WindowHours: sum.Window.Hours()}
}

// CreatePlan handles POST /api/plans.
func (h *Handler) CreatePlan(c *gin.Context) {
	var req store.PlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	plan, err := h.store.CreatePlan(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// PlanOverview handles GET /api/plans/overview?status=overdue&machine_id=3&at=...
func (h *Handler) PlanOverview(c *gin.Context) {
	var filter store.PlanFilter
	for _, raw := range c.QueryArray("status") {
		for _, name := range strings.Split(raw, ",") {
			st, err := due.ParseStatus(strings.TrimSpace(name))
			if err != nil {
				h.respondError(c, err)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if raw := c.Query("machine_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid machine_id")
			return
		}
		filter.MachineID = &id
	}
	at, err := h.instant(c.Query("at"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.store.PlanOverview(c.Request.Context(), at, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// MachineStatus handles GET /api/machines/status.
func (h *Handler) MachineStatus(c *gin.Context) {
	at, err := h.instant(c.Query("at"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	rows, err := h.store.MachineStatus(c.Request.Context(), at)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type readingRequest struct {
	Hours      *float64            `json:"hours" binding:"required"`
	Source     model.ReadingSource `json:"source"`
	RecordedAt string              `json:"recorded_at"`
}

// RecordReading handles POST /api/machines/{id}/readings.
func (h *Handler) RecordReading(c *gin.Context) {
	machineID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	at, err := h.instant(req.RecordedAt)
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.store.RecordReading(c.Request.Context(), store.ReadingInput{
		MachineID:  machineID,
		Hours:      *req.Hours,
		RecordedBy: mw.ActorID(c),
		RecordedAt: at,
		Source:     req.Source,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type skillLevelRequest struct {
	Level *int `json:"level" binding:"required"`
}

// SetSkillLevel handles PUT /api/users/{id}/skill-level.
func (h *Handler) SetSkillLevel(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req skillLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := h.store.SetSkillLevel(c.Request.Context(), userID, *req.Level)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
