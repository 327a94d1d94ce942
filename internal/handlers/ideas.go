package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type IdeaHandler struct {
	ideaService services.IdeaService
}

func NewIdeaHandler(ideaService services.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideaService: ideaService}
}

func (h *IdeaHandler) List(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ideas, err := h.ideaService.ListIdeas(c.Request.Context(), middleware.ActorFrom(c), teamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}

func (h *IdeaHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideaService.GetIdea(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

type IdeaRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *IdeaHandler) Create(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req IdeaRequest
	if !bindJSON(c, &req) {
		return
	}
	var title, description string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}

	idea, err := h.ideaService.CreateIdea(c.Request.Context(), middleware.ActorFrom(c), teamID, title, description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, idea)
}

func (h *IdeaHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req IdeaRequest
	if !bindJSON(c, &req) {
		return
	}
	idea, err := h.ideaService.UpdateIdea(c.Request.Context(), middleware.ActorFrom(c), id, req.Title, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *IdeaHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.ideaService.DeleteIdea(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *IdeaHandler) ToggleVote(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideaService.ToggleVote(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *IdeaHandler) AddComment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.ideaService.AddIdeaComment(c.Request.Context(), middleware.ActorFrom(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *IdeaHandler) DeleteComment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.ideaService.DeleteIdeaComment(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
