package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type GoalHandler struct {
	goalService services.GoalService
}

func NewGoalHandler(goalService services.GoalService) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

func (h *GoalHandler) List(c *gin.Context) {
	goals, err := h.goalService.ListGoals(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

func (h *GoalHandler) Create(c *gin.Context) {
	var in services.GoalInput
	if !bindJSON(c, &in) {
		return
	}
	goal, err := h.goalService.CreateGoal(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, goal)
}

func (h *GoalHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.GoalInput
	if !bindJSON(c, &in) {
		return
	}
	goal, err := h.goalService.UpdateGoal(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (h *GoalHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.goalService.DeleteGoal(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
