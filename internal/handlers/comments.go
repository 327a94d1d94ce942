package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService services.CommentService
}

func NewCommentHandler(commentService services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *CommentHandler) AddComment(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.commentService.AddComment(c.Request.Context(), middleware.ActorFrom(c), taskID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.commentService.DeleteComment(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CommentHandler) AddAttachment(c *gin.Context) {
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.AttachmentInput
	if !bindJSON(c, &in) {
		return
	}
	attachment, err := h.commentService.AddAttachment(c.Request.Context(), middleware.ActorFrom(c), taskID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *CommentHandler) DeleteAttachment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.commentService.DeleteAttachment(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
