package handlers

import (
	"net/http"

	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

func (h *PortfolioHandler) List(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	portfolios, err := h.portfolioService.ListPortfolios(c.Request.Context(), middleware.ActorFrom(c), teamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

func (h *PortfolioHandler) Create(c *gin.Context) {
	teamID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.PortfolioInput
	if !bindJSON(c, &in) {
		return
	}
	portfolio, err := h.portfolioService.CreatePortfolio(c.Request.Context(), middleware.ActorFrom(c), teamID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, portfolio)
}

func (h *PortfolioHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.PortfolioInput
	if !bindJSON(c, &in) {
		return
	}
	portfolio, err := h.portfolioService.UpdatePortfolio(c.Request.Context(), middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (h *PortfolioHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.portfolioService.DeletePortfolio(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PortfolioHandler) AddProject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	if err := h.portfolioService.AddProject(c.Request.Context(), middleware.ActorFrom(c), id, projectID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PortfolioHandler) RemoveProject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	if err := h.portfolioService.RemoveProject(c.Request.Context(), middleware.ActorFrom(c), id, projectID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
