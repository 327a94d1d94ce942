package handlers

import (
	"net/http"

	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RegistrationResponse struct {
	Message string          `json:"message"`
	User    ProfileResponse `json:"user"`
}

// Register creates the account together with its personal team and first
// project. The caller logs in separately.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "User registered successfully",
		User: ProfileResponse{
			ID:    user.ID.String(),
			Name:  user.Name,
			Email: user.Email,
		},
	})
}
