package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type TagHandler struct {
	tagService services.TagService
}

func NewTagHandler(tagService services.TagService) *TagHandler {
	return &TagHandler{tagService: tagService}
}

func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tagService.ListTags(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

type TagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (h *TagHandler) Create(c *gin.Context) {
	var req TagRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, err := h.tagService.CreateTag(c.Request.Context(), middleware.ActorFrom(c), req.Name, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *TagHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.tagService.DeleteTag(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TagHandler) AddToTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tagID, ok := uuidParam(c, "tag_id")
	if !ok {
		return
	}
	if err := h.tagService.AddTagToTask(c.Request.Context(), middleware.ActorFrom(c), taskID, tagID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TagHandler) RemoveFromTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tagID, ok := uuidParam(c, "tag_id")
	if !ok {
		return
	}
	if err := h.tagService.RemoveTagFromTask(c.Request.Context(), middleware.ActorFrom(c), taskID, tagID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
