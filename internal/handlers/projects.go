package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/board"
	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/report"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService services.ProjectService
	boardService   services.BoardService
	reportService  services.ReportService
}

func NewProjectHandler(projects services.ProjectService, boards services.BoardService, reports services.ReportService) *ProjectHandler {
	return &ProjectHandler{projectService: projects, boardService: boards, reportService: reports}
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.projectService.ListProjects(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.CreateProjectInput
	if !bindJSON(c, &in) {
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), middleware.ActorFrom(c), teamID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projectService.GetProject(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateProjectInput
	if !bindJSON(c, &in) {
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type SectionRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *ProjectHandler) CreateSection(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SectionRequest
	if !bindJSON(c, &req) {
		return
	}

	section, err := h.projectService.CreateSection(c.Request.Context(), middleware.ActorFrom(c), projectID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, section)
}

func (h *ProjectHandler) RenameSection(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SectionRequest
	if !bindJSON(c, &req) {
		return
	}

	section, err := h.projectService.RenameSection(c.Request.Context(), middleware.ActorFrom(c), id, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func (h *ProjectHandler) DeleteSection(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.DeleteSection(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBoard accepts ?priority=&assignee=&status=&search= filters.
func (h *ProjectHandler) GetBoard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var filter board.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, apperr.Validation("invalid filter: %v", err))
		return
	}

	b, err := h.boardService.GetBoard(c.Request.Context(), middleware.ActorFrom(c), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *ProjectHandler) Overview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	overview, err := h.boardService.Overview(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Report returns JSON, or a PDF download with ?format=pdf.
func (h *ProjectHandler) Report(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	r, err := h.reportService.ProjectReport(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") != "pdf" {
		c.JSON(http.StatusOK, r)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderPDF(&buf, *r); err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="project-%s.pdf"`, r.ProjectID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
