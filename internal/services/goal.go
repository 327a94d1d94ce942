package services

import (
	"context"
	"strings"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type GoalService interface {
	ListGoals(ctx context.Context, actor Actor) ([]models.Goal, error)
	CreateGoal(ctx context.Context, actor Actor, in GoalInput) (*models.Goal, error)
	UpdateGoal(ctx context.Context, actor Actor, goalID uuid.UUID, in GoalInput) (*models.Goal, error)
	DeleteGoal(ctx context.Context, actor Actor, goalID uuid.UUID) error
}

// GoalInput leaves unset fields unchanged on update.
type GoalInput struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Progress     *int       `json:"progress"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

type GoalServiceImpl struct {
	db *gorm.DB
}

func NewGoalService(db *gorm.DB) *GoalServiceImpl {
	return &GoalServiceImpl{db: db}
}

// ListGoals returns the goals of the actor and of everyone sharing a team
// with them.
func (s *GoalServiceImpl) ListGoals(ctx context.Context, actor Actor) ([]models.Goal, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	teams := db.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", actor.ID)
	teammates := db.Model(&models.TeamMember{}).Select("user_id").Where("team_id IN (?)", teams)

	var goals []models.Goal
	err := db.Preload("Owner").
		Where("owner_id = ? OR owner_id IN (?)", actor.ID, teammates).
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date ASC").
		Order("created_at DESC").
		Find(&goals).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return goals, nil
}

func (s *GoalServiceImpl) CreateGoal(ctx context.Context, actor Actor, in GoalInput) (*models.Goal, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	goal := models.Goal{Status: models.GoalOnTrack, OwnerID: actor.ID}
	if in.Title == nil {
		return nil, apperr.Validation("goal title is required")
	}
	if err := applyGoal(&goal, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&goal).Error; err != nil {
		return nil, apperr.FromDB(err, "goal")
	}
	return &goal, nil
}

func (s *GoalServiceImpl) UpdateGoal(ctx context.Context, actor Actor, goalID uuid.UUID, in GoalInput) (*models.Goal, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	goal, err := s.owned(db, actor, goalID)
	if err != nil {
		return nil, err
	}
	if err := applyGoal(goal, in); err != nil {
		return nil, err
	}
	if err := db.Select("title", "description", "status", "progress", "due_date").Save(goal).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return goal, nil
}

func (s *GoalServiceImpl) DeleteGoal(ctx context.Context, actor Actor, goalID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	goal, err := s.owned(db, actor, goalID)
	if err != nil {
		return err
	}
	if err := db.Delete(goal).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *GoalServiceImpl) owned(db *gorm.DB, actor Actor, goalID uuid.UUID) (*models.Goal, error) {
	var goal models.Goal
	if err := db.First(&goal, "id = ?", goalID).Error; err != nil {
		return nil, apperr.FromDB(err, "goal")
	}
	if goal.OwnerID != actor.ID {
		return nil, apperr.Forbidden("only the owner can change a goal")
	}
	return &goal, nil
}

func applyGoal(goal *models.Goal, in GoalInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperr.Validation("goal title is required")
		}
		goal.Title = title
	}
	if in.Description != nil {
		goal.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		status := models.GoalStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !status.Valid() {
			return apperr.Validation("invalid goal status %q", *in.Status)
		}
		goal.Status = status
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return apperr.Validation("progress must be between 0 and 100")
		}
		goal.Progress = *in.Progress
	}
	switch {
	case in.ClearDueDate:
		goal.DueDate = nil
	case in.DueDate != nil:
		goal.DueDate = in.DueDate
	}
	return nil
}
