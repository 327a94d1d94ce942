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

type SubtaskService interface {
	ListSubtasks(ctx context.Context, actor Actor, taskID uuid.UUID) ([]models.Subtask, error)
	CreateSubtask(ctx context.Context, actor Actor, taskID uuid.UUID, title string, assigneeID *uuid.UUID) (*models.Subtask, error)
	UpdateSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID, in UpdateSubtaskInput) (*models.Subtask, error)
	ToggleSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID) (*models.Subtask, error)
	DeleteSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID) error
}

type UpdateSubtaskInput struct {
	Title         *string    `json:"title"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
	Position      *int       `json:"position"`
}

type SubtaskServiceImpl struct {
	Deps
}

func NewSubtaskService(deps Deps) *SubtaskServiceImpl {
	return &SubtaskServiceImpl{Deps: deps.withDefaults()}
}

func (s *SubtaskServiceImpl) ListSubtasks(ctx context.Context, actor Actor, taskID uuid.UUID) ([]models.Subtask, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if _, err := taskForActor(db, actor, taskID); err != nil {
		return nil, err
	}
	var subtasks []models.Subtask
	if err := db.Preload("Assignee").Where("task_id = ?", taskID).Order("position ASC, created_at ASC").Find(&subtasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return subtasks, nil
}

func (s *SubtaskServiceImpl) CreateSubtask(ctx context.Context, actor Actor, taskID uuid.UUID, title string, assigneeID *uuid.UUID) (*models.Subtask, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)

	var subtask models.Subtask
	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		if title == "" {
			return apperr.Validation("subtask title is required")
		}
		if err := checkAssignee(tx, task.Project.TeamID, assigneeID); err != nil {
			return err
		}

		var top int
		if err := tx.Model(&models.Subtask{}).Where("task_id = ?", task.ID).Select("COALESCE(MAX(position), -1)").Scan(&top).Error; err != nil {
			return apperr.Internal(err)
		}
		subtask = models.Subtask{Title: title, Position: top + 1, TaskID: task.ID, AssigneeID: assigneeID}
		if err := tx.Create(&subtask).Error; err != nil {
			return apperr.FromDB(err, "subtask")
		}
		ev.Record(task.ID, models.SubtaskAddedDetails{SubtaskTitle: title})

		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, boards...)
	return &subtask, nil
}

func (s *SubtaskServiceImpl) UpdateSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID, in UpdateSubtaskInput) (*models.Subtask, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var subtask models.Subtask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.load(tx, actor, subtaskID, &subtask)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.Validation("subtask title is required")
			}
			subtask.Title = title
			changes["title"] = title
		}
		switch {
		case in.ClearAssignee:
			subtask.AssigneeID = nil
			changes["assignee_id"] = nil
		case in.AssigneeID != nil:
			if err := checkAssignee(tx, task.Project.TeamID, in.AssigneeID); err != nil {
				return err
			}
			subtask.AssigneeID = in.AssigneeID
			changes["assignee_id"] = *in.AssigneeID
		}
		if in.Position != nil {
			if *in.Position < 0 {
				return apperr.Validation("position must not be negative")
			}
			subtask.Position = *in.Position
			changes["position"] = *in.Position
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&models.Subtask{}).Where("id = ?", subtask.ID).Updates(changes).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &subtask, nil
}

func (s *SubtaskServiceImpl) ToggleSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID) (*models.Subtask, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var subtask models.Subtask
	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.load(tx, actor, subtaskID, &subtask)
		if err != nil {
			return err
		}
		subtask.Completed = !subtask.Completed
		if err := tx.Model(&models.Subtask{}).Where("id = ?", subtask.ID).Update("completed", subtask.Completed).Error; err != nil {
			return apperr.Internal(err)
		}
		if subtask.Completed {
			ev.Record(task.ID, models.SubtaskCompletedDetails{SubtaskTitle: subtask.Title})
		} else {
			ev.Record(task.ID, models.SubtaskUncompletedDetails{SubtaskTitle: subtask.Title})
		}
		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, boards...)
	return &subtask, nil
}

func (s *SubtaskServiceImpl) DeleteSubtask(ctx context.Context, actor Actor, subtaskID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subtask models.Subtask
		task, err := s.load(tx, actor, subtaskID, &subtask)
		if err != nil {
			return err
		}
		if err := tx.Delete(&subtask).Error; err != nil {
			return apperr.Internal(err)
		}
		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}

func (s *SubtaskServiceImpl) load(tx *gorm.DB, actor Actor, subtaskID uuid.UUID, subtask *models.Subtask) (*models.Task, error) {
	if err := tx.First(subtask, "id = ?", subtaskID).Error; err != nil {
		return nil, apperr.FromDB(err, "subtask")
	}
	return taskForActor(tx, actor, subtask.TaskID)
}
