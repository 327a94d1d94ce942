package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

// UserHandler serves the caller's own workspace view.
type UserHandler struct {
	teamService         services.TeamService
	notificationService services.NotificationService
}

func NewUserHandler(teams services.TeamService, notifications services.NotificationService) *UserHandler {
	return &UserHandler{teamService: teams, notificationService: notifications}
}

func (h *UserHandler) Me(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	ctx := c.Request.Context()

	teams, err := h.teamService.ListTeams(ctx, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(ctx, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           actor.ID,
		"name":         actor.Name,
		"teams":        teams,
		"unread_count": unread,
	})
}
