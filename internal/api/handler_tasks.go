package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/checklist"
	"maintenance-backend/internal/mw"
	"maintenance-backend/internal/store"
)

// CreateTask handles POST /api/tasks for standalone tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	var req store.StandaloneTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.CreatedBy = mw.ActorID(c)

	task, err := h.store.CreateStandaloneTask(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.store.TaskDetail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteTask(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartTask handles POST /api/tasks/{id}/start.
func (h *Handler) StartTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.store.StartTask(c.Request.Context(), id, mw.ActorID(c), h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type noteRequest struct {
	Note string `json:"note"`
}

// CompleteTask handles POST /api/tasks/{id}/complete.
func (h *Handler) CompleteTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req noteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.store.CompleteTask(c.Request.Context(), id, store.CompleteInput{
		Actor: mw.ActorID(c),
		Note:  req.Note,
		At:    h.now(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CancelTask handles POST /api/tasks/{id}/cancel.
func (h *Handler) CancelTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req noteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.store.CancelTask(c.Request.Context(), id, mw.ActorID(c), req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type checklistAnswer struct {
	ChecklistItemID int64 `json:"checklist_item_id" binding:"required"`
	checklist.Answer
}

type checklistRequest struct {
	Answers []checklistAnswer `json:"answers"`
}

// SubmitChecklist handles POST /api/tasks/{id}/checklist.
func (h *Handler) SubmitChecklist(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req checklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	answers := make(map[int64]checklist.Answer, len(req.Answers))
	for _, a := range req.Answers {
		if _, dup := answers[a.ChecklistItemID]; dup {
			h.respondError(c, apperr.Validation("checklist item %d answered twice", a.ChecklistItemID))
			return
		}
		answers[a.ChecklistItemID] = a.Answer
	}

	res, err := h.store.SubmitChecklist(c.Request.Context(), id, store.ChecklistSubmission{
		Actor:   mw.ActorID(c),
		Answers: answers,
		At:      h.now(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type assignTaskRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AssignTask handles PUT /api/tasks/{id}/assignee.
func (h *Handler) AssignTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.store.AssignTask(c.Request.Context(), id, req.UserID, h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// TodayTasks handles GET /api/users/{id}/tasks/today?date=YYYY-MM-DD.
func (h *Handler) TodayTasks(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	day, err := h.day(c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	tasks, err := h.store.TodayTasks(c.Request.Context(), userID, day)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
