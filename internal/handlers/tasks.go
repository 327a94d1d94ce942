package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
	linkService services.LinkService
}

func NewTaskHandler(taskService services.TaskService, linkService services.LinkService) *TaskHandler {
	return &TaskHandler{taskService: taskService, linkService: linkService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.CreateTaskInput
	if !bindJSON(c, &in) {
		return
	}
	in.ProjectID = projectID

	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateTaskInput
	if !bindJSON(c, &in) {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) ListMyTasks(c *gin.Context) {
	tasks, err := h.taskService.ListMyTasks(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "total": len(tasks)})
}

func (h *TaskHandler) ListActivity(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.taskService.ListTaskActivity(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": logs})
}

type LinkRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	SectionID uuid.UUID `json:"section_id" binding:"required"`
}

func (h *TaskHandler) LinkTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req LinkRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.linkService.LinkTask(c.Request.Context(), middleware.ActorFrom(c), taskID, req.ProjectID, req.SectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *TaskHandler) UnlinkTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	if err := h.linkService.UnlinkTask(c.Request.Context(), middleware.ActorFrom(c), taskID, projectID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) ListProjectOptions(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	options, err := h.linkService.ListProjectOptions(c.Request.Context(), middleware.ActorFrom(c), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": options})
}
