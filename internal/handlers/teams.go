package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamService services.TeamService
}

func NewTeamHandler(teamService services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

func (h *TeamHandler) ListTeams(c *gin.Context) {
	teams, err := h.teamService.ListTeams(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

type TeamRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req TeamRequest
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.teamService.CreateTeam(c.Request.Context(), middleware.ActorFrom(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.teamService.DeleteTeam(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type InviteRequest struct {
	Email string          `json:"email" binding:"required,email"`
	Role  models.TeamRole `json:"role"`
}

func (h *TeamHandler) InviteMember(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req InviteRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.teamService.InviteMember(c.Request.Context(), middleware.ActorFrom(c), teamID, req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.teamService.RemoveMember(c.Request.Context(), middleware.ActorFrom(c), teamID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
