package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ProjectService interface {
	ListProjects(ctx context.Context, actor Actor) ([]ProjectSummary, error)
	GetProject(ctx context.Context, actor Actor, projectID uuid.UUID) (*models.Project, error)
	CreateProject(ctx context.Context, actor Actor, teamID uuid.UUID, in CreateProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, actor Actor, projectID uuid.UUID, in UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, actor Actor, projectID uuid.UUID) error

	CreateSection(ctx context.Context, actor Actor, projectID uuid.UUID, name string) (*models.Section, error)
	RenameSection(ctx context.Context, actor Actor, sectionID uuid.UUID, name string) (*models.Section, error)
	DeleteSection(ctx context.Context, actor Actor, sectionID uuid.UUID) error
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type ProjectSummary struct {
	models.Project
	TaskCount      int `json:"task_count"`
	CompletedCount int `json:"completed_count"`
}

type ProjectServiceImpl struct {
	Deps
}

func NewProjectService(deps Deps) *ProjectServiceImpl {
	return &ProjectServiceImpl{Deps: deps.withDefaults()}
}

// createProject inserts a project with the default sections.
func createProject(tx *gorm.DB, teamID, creatorID uuid.UUID, in CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("project name is required")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = models.DefaultProjectColor
	}

	project := models.Project{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		TeamID:      teamID,
		CreatorID:   creatorID,
	}
	if err := tx.Create(&project).Error; err != nil {
		return nil, apperr.FromDB(err, "project")
	}
	sections := models.DefaultSections(project.ID)
	if err := tx.Create(&sections).Error; err != nil {
		return nil, apperr.FromDB(err, "section")
	}
	project.Sections = sections
	return &project, nil
}

func (s *ProjectServiceImpl) ListProjects(ctx context.Context, actor Actor) ([]ProjectSummary, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var projects []models.Project
	err := db.Preload("Team").
		Where("team_id IN (?)", db.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", actor.ID)).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(projects) == 0 {
		return []ProjectSummary{}, nil
	}

	ids := make([]uuid.UUID, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	var rows []struct {
		ProjectID uuid.UUID
		Total     int
		Done      int
	}
	err = db.Model(&models.Task{}).
		Select("project_id, COUNT(*) AS total, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS done").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	byProject := make(map[uuid.UUID][2]int, len(rows))
	for _, r := range rows {
		byProject[r.ProjectID] = [2]int{r.Total, r.Done}
	}

	summaries := make([]ProjectSummary, len(projects))
	for i, p := range projects {
		c := byProject[p.ID]
		summaries[i] = ProjectSummary{Project: p, TaskCount: c[0], CompletedCount: c[1]}
	}
	return summaries, nil
}

func (s *ProjectServiceImpl) GetProject(ctx context.Context, actor Actor, projectID uuid.UUID) (*models.Project, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if _, _, err := projectForActor(db, actor, projectID); err != nil {
		return nil, err
	}
	var project models.Project
	err := db.Preload("Team").Preload("Creator").
		Preload("Sections", orderBy("position ASC, created_at ASC")).
		First(&project, "id = ?", projectID).Error
	if err != nil {
		return nil, apperr.FromDB(err, "project")
	}
	return &project, nil
}

func (s *ProjectServiceImpl) CreateProject(ctx context.Context, actor Actor, teamID uuid.UUID, in CreateProjectInput) (*models.Project, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var project *models.Project
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, "id = ?", teamID).Error; err != nil {
			return apperr.FromDB(err, "team")
		}
		if _, err := requireMember(tx, team.ID, actor.ID); err != nil {
			return err
		}
		var err error
		project, err = createProject(tx, team.ID, actor.ID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectServiceImpl) UpdateProject(ctx context.Context, actor Actor, projectID uuid.UUID, in UpdateProjectInput) (*models.Project, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var project *models.Project
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, _, err = projectForActor(tx, actor, projectID)
		if err != nil {
			return err
		}
		changes := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Validation("project name is required")
			}
			project.Name = name
			changes["name"] = name
		}
		if in.Description != nil {
			project.Description = strings.TrimSpace(*in.Description)
			changes["description"] = project.Description
		}
		if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
			project.Color = strings.TrimSpace(*in.Color)
			changes["color"] = project.Color
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(project).Updates(changes).Error; err != nil {
			return apperr.FromDB(err, "project")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Linked cards carry the origin project's name and color.
	var linkedInto []uuid.UUID
	err = s.DB.WithContext(ctx).Model(&models.TaskProject{}).
		Where("task_id IN (?)", s.DB.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)).
		Distinct().
		Pluck("project_id", &linkedInto).Error
	if err != nil {
		s.Logger.Warn("linked boards lookup failed", "project_id", projectID.String(), "error", err)
	}
	s.afterCommit(ctx, nil, append([]uuid.UUID{projectID}, linkedInto...)...)
	return project, nil
}

// DeleteProject is allowed for the project creator and team managers.
func (s *ProjectServiceImpl) DeleteProject(ctx context.Context, actor Actor, projectID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, m, err := projectForActor(tx, actor, projectID)
		if err != nil {
			return err
		}
		if project.CreatorID != actor.ID && !m.Role.CanManage() {
			return apperr.Forbidden("only the project creator or a team admin can delete the project")
		}
		others, err := deleteProjects(tx, []uuid.UUID{project.ID})
		if err != nil {
			return err
		}
		boards = append([]uuid.UUID{project.ID}, others...)
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}

func (s *ProjectServiceImpl) CreateSection(ctx context.Context, actor Actor, projectID uuid.UUID, name string) (*models.Section, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	var section models.Section
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, _, err := projectForActor(tx, actor, projectID)
		if err != nil {
			return err
		}
		if name == "" {
			return apperr.Validation("section name is required")
		}
		var top int
		if err := tx.Model(&models.Section{}).Where("project_id = ?", project.ID).Select("COALESCE(MAX(position), -1)").Scan(&top).Error; err != nil {
			return apperr.Internal(err)
		}
		section = models.Section{Name: name, ProjectID: project.ID, Position: top + 1}
		if err := tx.Create(&section).Error; err != nil {
			return apperr.FromDB(err, "section")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, nil, projectID)
	return &section, nil
}

func (s *ProjectServiceImpl) RenameSection(ctx context.Context, actor Actor, sectionID uuid.UUID, name string) (*models.Section, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	var section models.Section
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&section, "id = ?", sectionID).Error; err != nil {
			return apperr.FromDB(err, "section")
		}
		if _, _, err := projectForActor(tx, actor, section.ProjectID); err != nil {
			return err
		}
		if name == "" {
			return apperr.Validation("section name is required")
		}
		section.Name = name
		if err := tx.Model(&section).Update("name", name).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, nil, section.ProjectID)
	return &section, nil
}

// DeleteSection only removes empty sections: tasks are never orphaned or
// silently reassigned, and a project keeps at least one section.
func (s *ProjectServiceImpl) DeleteSection(ctx context.Context, actor Actor, sectionID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var projectID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		section, err := lockSection(tx, sectionID)
		if err != nil {
			return err
		}
		if _, _, err := projectForActor(tx, actor, section.ProjectID); err != nil {
			return err
		}
		projectID = section.ProjectID

		var siblings int64
		if err := tx.Model(&models.Section{}).Where("project_id = ?", section.ProjectID).Count(&siblings).Error; err != nil {
			return apperr.Internal(err)
		}
		if siblings <= 1 {
			return apperr.InvalidOperation("a project must keep at least one section")
		}

		var tasks, links int64
		if err := tx.Model(&models.Task{}).Where("section_id = ?", section.ID).Count(&tasks).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Model(&models.TaskProject{}).Where("section_id = ?", section.ID).Count(&links).Error; err != nil {
			return apperr.Internal(err)
		}
		if tasks+links > 0 {
			return apperr.InvalidOperation("move or delete the tasks in this section first")
		}

		if err := tx.Delete(section).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, projectID)
	return nil
}
