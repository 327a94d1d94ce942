package services

import (
	"context"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// LinkService shows a task on the boards of other projects in its team
// without copying it.
type LinkService interface {
	LinkTask(ctx context.Context, actor Actor, taskID, projectID, sectionID uuid.UUID) (*models.TaskProject, error)
	UnlinkTask(ctx context.Context, actor Actor, taskID, projectID uuid.UUID) error
	ListProjectOptions(ctx context.Context, actor Actor, taskID uuid.UUID) ([]ProjectOption, error)
}

type SectionOption struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// ProjectOption is one candidate project for the link picker.
type ProjectOption struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Color             string          `json:"color"`
	Sections          []SectionOption `json:"sections"`
	IsOrigin          bool            `json:"is_origin"`
	IsLinked          bool            `json:"is_linked"`
	LinkedSectionID   *uuid.UUID      `json:"linked_section_id,omitempty"`
	LinkedSectionName string          `json:"linked_section_name,omitempty"`
}

type LinkServiceImpl struct {
	Deps
}

func NewLinkService(deps Deps) *LinkServiceImpl {
	return &LinkServiceImpl{Deps: deps.withDefaults()}
}

func (s *LinkServiceImpl) LinkTask(ctx context.Context, actor Actor, taskID, projectID, sectionID uuid.UUID) (*models.TaskProject, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var link models.TaskProject
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findTask(tx, taskID)
		if err != nil {
			return err
		}
		target, err := findProject(tx, projectID)
		if err != nil {
			return err
		}
		if task.Project == nil || target.TeamID != task.Project.TeamID {
			return apperr.Forbidden("cannot link a task into another team's project")
		}
		if _, err := requireMember(tx, target.TeamID, actor.ID); err != nil {
			return err
		}
		if target.ID == task.ProjectID {
			return apperr.InvalidOperation("task is already in this project")
		}

		var existing int64
		if err := tx.Model(&models.TaskProject{}).Where("task_id = ? AND project_id = ?", task.ID, target.ID).Count(&existing).Error; err != nil {
			return apperr.Internal(err)
		}
		if existing > 0 {
			return apperr.Conflict("task is already in this project")
		}

		var section models.Section
		if err := tx.First(&section, "id = ? AND project_id = ?", sectionID, target.ID).Error; err != nil {
			return apperr.FromDB(err, "section")
		}

		link = models.TaskProject{TaskID: task.ID, ProjectID: target.ID, SectionID: section.ID}
		if err := tx.Create(&link).Error; err != nil {
			return apperr.FromDB(err, "task link")
		}
		ev.Record(task.ID, models.AddedToProjectDetails{ProjectID: target.ID, SectionID: section.ID})
		link.Task = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, link.Task.ProjectID, link.ProjectID)
	link.Task = nil
	return &link, nil
}

func (s *LinkServiceImpl) UnlinkTask(ctx context.Context, actor Actor, taskID, projectID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var origin uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		if projectID == task.ProjectID {
			return apperr.InvalidOperation("a task cannot be removed from its origin project")
		}

		res := tx.Where("task_id = ? AND project_id = ?", task.ID, projectID).Delete(&models.TaskProject{})
		if res.Error != nil {
			return apperr.Internal(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("task link")
		}
		origin = task.ProjectID
		ev.Record(task.ID, models.RemovedFromProjectDetails{ProjectID: projectID})
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, ev, origin, projectID)
	return nil
}

func (s *LinkServiceImpl) ListProjectOptions(ctx context.Context, actor Actor, taskID uuid.UUID) ([]ProjectOption, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	task, err := taskForActor(db, actor, taskID)
	if err != nil {
		return nil, err
	}

	var projects []models.Project
	err = db.Preload("Sections", orderBy("position ASC, created_at ASC")).
		Where("team_id = ?", task.Project.TeamID).
		Order("name ASC").
		Find(&projects).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var links []models.TaskProject
	if err := db.Preload("Section").Where("task_id = ?", task.ID).Find(&links).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	byProject := make(map[uuid.UUID]models.TaskProject, len(links))
	for _, l := range links {
		byProject[l.ProjectID] = l
	}

	options := make([]ProjectOption, 0, len(projects))
	for _, p := range projects {
		opt := ProjectOption{
			ID:       p.ID,
			Name:     p.Name,
			Color:    p.Color,
			IsOrigin: p.ID == task.ProjectID,
			Sections: make([]SectionOption, 0, len(p.Sections)),
		}
		for _, sec := range p.Sections {
			opt.Sections = append(opt.Sections, SectionOption{ID: sec.ID, Name: sec.Name, Position: sec.Position})
		}
		if l, ok := byProject[p.ID]; ok {
			sectionID := l.SectionID
			opt.IsLinked = true
			opt.LinkedSectionID = &sectionID
			if l.Section != nil {
				opt.LinkedSectionName = l.Section.Name
			}
		}
		options = append(options, opt)
	}
	return options, nil
}
