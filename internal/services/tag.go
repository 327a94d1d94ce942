package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TagService interface {
	ListTags(ctx context.Context, actor Actor) ([]TagSummary, error)
	CreateTag(ctx context.Context, actor Actor, name, color string) (*models.Tag, error)
	DeleteTag(ctx context.Context, actor Actor, tagID uuid.UUID) error
	AddTagToTask(ctx context.Context, actor Actor, taskID, tagID uuid.UUID) error
	RemoveTagFromTask(ctx context.Context, actor Actor, taskID, tagID uuid.UUID) error
}

type TagSummary struct {
	models.Tag
	TaskCount int `json:"task_count"`
}

type TagServiceImpl struct {
	Deps
}

func NewTagService(deps Deps) *TagServiceImpl {
	return &TagServiceImpl{Deps: deps.withDefaults()}
}

func (s *TagServiceImpl) ListTags(ctx context.Context, actor Actor) ([]TagSummary, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var tags []TagSummary
	err := s.DB.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.*, COUNT(task_tags.task_id) AS task_count").
		Joins("LEFT JOIN task_tags ON task_tags.tag_id = tags.id").
		Group("tags.id").
		Order("tags.name ASC").
		Scan(&tags).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tags, nil
}

func (s *TagServiceImpl) CreateTag(ctx context.Context, actor Actor, name, color string) (*models.Tag, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("tag name is required")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = models.DefaultTagColor
	}

	db := s.DB.WithContext(ctx)
	var existing int64
	if err := db.Model(&models.Tag{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("tag %q already exists", name)
	}

	tag := models.Tag{Name: name, Color: color}
	if err := db.Create(&tag).Error; err != nil {
		return nil, apperr.FromDB(err, "tag")
	}
	return &tag, nil
}

func (s *TagServiceImpl) DeleteTag(ctx context.Context, actor Actor, tagID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, "id = ?", tagID).Error; err != nil {
			return apperr.FromDB(err, "tag")
		}

		tagged := tx.Model(&models.TaskTag{}).Select("task_id").Where("tag_id = ?", tag.ID)
		var origins, linked []uuid.UUID
		if err := tx.Model(&models.Task{}).Where("id IN (?)", tagged).Distinct().Pluck("project_id", &origins).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Model(&models.TaskProject{}).Where("task_id IN (?)", tagged).Distinct().Pluck("project_id", &linked).Error; err != nil {
			return apperr.Internal(err)
		}
		boards = append(origins, linked...)

		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.TaskTag{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Delete(&tag).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}

func (s *TagServiceImpl) AddTagToTask(ctx context.Context, actor Actor, taskID, tagID uuid.UUID) error {
	return s.changeTag(ctx, actor, taskID, tagID, true)
}

func (s *TagServiceImpl) RemoveTagFromTask(ctx context.Context, actor Actor, taskID, tagID uuid.UUID) error {
	return s.changeTag(ctx, actor, taskID, tagID, false)
}

func (s *TagServiceImpl) changeTag(ctx context.Context, actor Actor, taskID, tagID uuid.UUID, add bool) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		var tag models.Tag
		if err := tx.First(&tag, "id = ?", tagID).Error; err != nil {
			return apperr.FromDB(err, "tag")
		}

		var present int64
		if err := tx.Model(&models.TaskTag{}).Where("task_id = ? AND tag_id = ?", task.ID, tag.ID).Count(&present).Error; err != nil {
			return apperr.Internal(err)
		}
		if add {
			if present > 0 {
				return apperr.Conflict("task already has tag %q", tag.Name)
			}
			if err := tx.Create(&models.TaskTag{TaskID: task.ID, TagID: tag.ID}).Error; err != nil {
				return apperr.FromDB(err, "task tag")
			}
		} else {
			if present == 0 {
				return apperr.NotFound("task tag")
			}
			if err := tx.Where("task_id = ? AND tag_id = ?", task.ID, tag.ID).Delete(&models.TaskTag{}).Error; err != nil {
				return apperr.Internal(err)
			}
		}
		ev.Record(task.ID, models.UpdatedDetails{Fields: []string{"tags"}})

		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, ev, boards...)
	return nil
}
