package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type PortfolioService interface {
	ListPortfolios(ctx context.Context, actor Actor, teamID uuid.UUID) ([]PortfolioSummary, error)
	CreatePortfolio(ctx context.Context, actor Actor, teamID uuid.UUID, in PortfolioInput) (*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, actor Actor, portfolioID uuid.UUID, in PortfolioInput) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, actor Actor, portfolioID uuid.UUID) error
	AddProject(ctx context.Context, actor Actor, portfolioID, projectID uuid.UUID) error
	RemoveProject(ctx context.Context, actor Actor, portfolioID, projectID uuid.UUID) error
}

type PortfolioInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type PortfolioProjectSummary struct {
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
}

type PortfolioSummary struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Color       string                    `json:"color"`
	TeamID      uuid.UUID                 `json:"team_id"`
	Projects    []PortfolioProjectSummary `json:"projects"`
}

type PortfolioServiceImpl struct {
	db *gorm.DB
}

func NewPortfolioService(db *gorm.DB) *PortfolioServiceImpl {
	return &PortfolioServiceImpl{db: db}
}

func (s *PortfolioServiceImpl) ListPortfolios(ctx context.Context, actor Actor, teamID uuid.UUID) ([]PortfolioSummary, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := requireMember(db, teamID, actor.ID); err != nil {
		return nil, err
	}

	var portfolios []models.Portfolio
	err := db.Preload("Projects", orderBy("created_at ASC")).
		Preload("Projects.Project").
		Where("team_id = ?", teamID).
		Order("name ASC").
		Find(&portfolios).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var projectIDs []uuid.UUID
	for _, p := range portfolios {
		for _, pp := range p.Projects {
			projectIDs = append(projectIDs, pp.ProjectID)
		}
	}
	totals := map[uuid.UUID][2]int{}
	if len(projectIDs) > 0 {
		var rows []struct {
			ProjectID uuid.UUID
			Total     int
			Done      int
		}
		err := db.Model(&models.Task{}).
			Select("project_id, COUNT(*) AS total, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS done").
			Where("project_id IN ?", projectIDs).
			Group("project_id").
			Scan(&rows).Error
		if err != nil {
			return nil, apperr.Internal(err)
		}
		for _, r := range rows {
			totals[r.ProjectID] = [2]int{r.Total, r.Done}
		}
	}

	summaries := make([]PortfolioSummary, 0, len(portfolios))
	for _, p := range portfolios {
		summary := PortfolioSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Color:       p.Color,
			TeamID:      p.TeamID,
			Projects:    make([]PortfolioProjectSummary, 0, len(p.Projects)),
		}
		for _, pp := range p.Projects {
			if pp.Project == nil {
				continue
			}
			c := totals[pp.ProjectID]
			summary.Projects = append(summary.Projects, PortfolioProjectSummary{
				ProjectID: pp.ProjectID,
				Name:      pp.Project.Name,
				Color:     pp.Project.Color,
				Total:     c[0],
				Completed: c[1],
			})
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *PortfolioServiceImpl) CreatePortfolio(ctx context.Context, actor Actor, teamID uuid.UUID, in PortfolioInput) (*models.Portfolio, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := requireMember(db, teamID, actor.ID); err != nil {
		return nil, err
	}
	portfolio := models.Portfolio{TeamID: teamID, Color: models.DefaultProjectColor}
	if in.Name == nil {
		return nil, apperr.Validation("portfolio name is required")
	}
	if err := applyPortfolio(&portfolio, in); err != nil {
		return nil, err
	}
	if err := db.Create(&portfolio).Error; err != nil {
		return nil, apperr.FromDB(err, "portfolio")
	}
	return &portfolio, nil
}

func (s *PortfolioServiceImpl) UpdatePortfolio(ctx context.Context, actor Actor, portfolioID uuid.UUID, in PortfolioInput) (*models.Portfolio, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	portfolio, err := s.portfolioForActor(db, actor, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := applyPortfolio(portfolio, in); err != nil {
		return nil, err
	}
	if err := db.Select("name", "description", "color").Save(portfolio).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return portfolio, nil
}

func (s *PortfolioServiceImpl) DeletePortfolio(ctx context.Context, actor Actor, portfolioID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := s.portfolioForActor(tx, actor, portfolioID)
		if err != nil {
			return err
		}
		if err := tx.Where("portfolio_id = ?", portfolio.ID).Delete(&models.PortfolioProject{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Delete(portfolio).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
}

func (s *PortfolioServiceImpl) AddProject(ctx context.Context, actor Actor, portfolioID, projectID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := s.portfolioForActor(tx, actor, portfolioID)
		if err != nil {
			return err
		}
		project, err := findProject(tx, projectID)
		if err != nil {
			return err
		}
		if project.TeamID != portfolio.TeamID {
			return apperr.Forbidden("project belongs to another team")
		}
		var existing int64
		if err := tx.Model(&models.PortfolioProject{}).Where("portfolio_id = ? AND project_id = ?", portfolio.ID, project.ID).Count(&existing).Error; err != nil {
			return apperr.Internal(err)
		}
		if existing > 0 {
			return apperr.Conflict("project is already in this portfolio")
		}
		if err := tx.Create(&models.PortfolioProject{PortfolioID: portfolio.ID, ProjectID: project.ID}).Error; err != nil {
			return apperr.FromDB(err, "portfolio project")
		}
		return nil
	})
}

func (s *PortfolioServiceImpl) RemoveProject(ctx context.Context, actor Actor, portfolioID, projectID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	portfolio, err := s.portfolioForActor(db, actor, portfolioID)
	if err != nil {
		return err
	}
	res := db.Where("portfolio_id = ? AND project_id = ?", portfolio.ID, projectID).Delete(&models.PortfolioProject{})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("portfolio project")
	}
	return nil
}

func (s *PortfolioServiceImpl) portfolioForActor(db *gorm.DB, actor Actor, portfolioID uuid.UUID) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := db.First(&portfolio, "id = ?", portfolioID).Error; err != nil {
		return nil, apperr.FromDB(err, "portfolio")
	}
	if _, err := requireMember(db, portfolio.TeamID, actor.ID); err != nil {
		return nil, err
	}
	return &portfolio, nil
}

func applyPortfolio(p *models.Portfolio, in PortfolioInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.Validation("portfolio name is required")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		p.Color = strings.TrimSpace(*in.Color)
	}
	return nil
}
