package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type SubtaskHandler struct {
	subtaskService services.SubtaskService
}

func NewSubtaskHandler(subtaskService services.SubtaskService) *SubtaskHandler {
	return &SubtaskHandler{subtaskService: subtaskService}
}

func (h *SubtaskHandler) List(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	subtasks, err := h.subtaskService.ListSubtasks(c.Request.Context(), middleware.ActorFrom(c), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtasks": subtasks})
}

type SubtaskRequest struct {
	Title      string     `json:"title" binding:"required"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
}

func (h *SubtaskHandler) Create(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SubtaskRequest
	if !bindJSON(c, &req) {
		return
	}
	subtask, err := h.subtaskService.CreateSubtask(c.Request.Context(), middleware.ActorFrom(c), taskID, req.Title, req.AssigneeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subtask)
}

func (h *SubtaskHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateSubtaskInput
	if !bindJSON(c, &in) {
		return
	}
	subtask, err := h.subtaskService.UpdateSubtask(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subtask)
}

func (h *SubtaskHandler) Toggle(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	subtask, err := h.subtaskService.ToggleSubtask(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subtask)
}

func (h *SubtaskHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.subtaskService.DeleteSubtask(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
