package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maintenance-backend/internal/escalation"
	"maintenance-backend/internal/mw"
	"maintenance-backend/internal/store"
)

type openEscalationRequest struct {
	ChecklistItemID *int64 `json:"checklist_item_id"`
	Reason          string `json:"reason" binding:"required"`
	PhotoRef        string `json:"photo_ref"`
}

// OpenEscalation handles POST /api/tasks/{id}/escalations.
func (h *Handler) OpenEscalation(c *gin.Context) {
	taskID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req openEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	esc, err := h.store.OpenEscalation(c.Request.Context(), store.OpenEscalationInput{
		TaskID:          taskID,
		ChecklistItemID: req.ChecklistItemID,
		Actor:           mw.ActorID(c),
		Reason:          req.Reason,
		PhotoRef:        req.PhotoRef,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, esc)
}

// GetEscalation handles GET /api/escalations/{id}.
func (h *Handler) GetEscalation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	esc, err := h.store.Escalation(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}

// UnassignedEscalations handles GET /api/escalations/unassigned.
func (h *Handler) UnassignedEscalations(c *gin.Context) {
	escs, err := h.store.UnassignedEscalations(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, escs)
}

// AcknowledgeEscalation handles POST /api/escalations/{id}/acknowledge.
func (h *Handler) AcknowledgeEscalation(c *gin.Context) {
	h.transition(c, escalation.Acknowledged, "")
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

// ResolveEscalation handles POST /api/escalations/{id}/resolve.
func (h *Handler) ResolveEscalation(c *gin.Context) {
	var req resolveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.transition(c, escalation.Resolved, req.Resolution)
}

// CloseEscalation handles POST /api/escalations/{id}/close.
func (h *Handler) CloseEscalation(c *gin.Context) {
	h.transition(c, escalation.Closed, "")
}

func (h *Handler) transition(c *gin.Context, to escalation.Status, resolution string) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	esc, err := h.store.TransitionEscalation(c.Request.Context(), id, store.TransitionInput{
		To:         string(to),
		Actor:      actor,
		Resolution: resolution,
		At:         h.now(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}

// RaiseEscalation handles POST /api/escalations/{id}/raise.
func (h *Handler) RaiseEscalation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	esc, err := h.store.RaiseEscalation(c.Request.Context(), id, mw.ActorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}
