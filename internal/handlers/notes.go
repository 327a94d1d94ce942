package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type NoteHandler struct {
	noteService services.NoteService
}

func NewNoteHandler(noteService services.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

type NoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.noteService.ListNotes(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func (h *NoteHandler) Create(c *gin.Context) {
	var req NoteRequest
	if !bindJSON(c, &req) {
		return
	}
	var title, content string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Content != nil {
		content = *req.Content
	}
	note, err := h.noteService.CreateNote(c.Request.Context(), middleware.ActorFrom(c), title, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req NoteRequest
	if !bindJSON(c, &req) {
		return
	}
	note, err := h.noteService.UpdateNote(c.Request.Context(), middleware.ActorFrom(c), id, req.Title, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) TogglePin(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	note, err := h.noteService.TogglePin(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.noteService.DeleteNote(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
