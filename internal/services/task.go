package services

import (
	"context"
	"strings"
	"time"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/database"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskService interface {
	CreateTask(ctx context.Context, actor Actor, in CreateTaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, actor Actor, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, actor Actor, taskID uuid.UUID) error
	GetTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.Task, error)
	ListMyTasks(ctx context.Context, actor Actor) ([]models.Task, error)
	ListTaskActivity(ctx context.Context, actor Actor, taskID uuid.UUID) ([]models.ActivityLog, error)
}

type CreateTaskInput struct {
	ProjectID   uuid.UUID  `json:"-"`
	SectionID   uuid.UUID  `json:"section_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
}

// UpdateTaskInput applies only the fields that are set. JSON null cannot be
// told apart from an absent field, so clearing uses the explicit flags.
type UpdateTaskInput struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Priority      *string    `json:"priority"`
	DueDate       *time.Time `json:"due_date"`
	ClearDueDate  bool       `json:"clear_due_date"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
	Completed     *bool      `json:"completed"`
	SectionID     *uuid.UUID `json:"section_id"`
	Position      *int       `json:"position"`
}

type TaskServiceImpl struct {
	Deps
}

func NewTaskService(deps Deps) *TaskServiceImpl {
	return &TaskServiceImpl{Deps: deps.withDefaults()}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, actor Actor, in CreateTaskInput) (*models.Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var task models.Task
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, _, err := projectForActor(tx, actor, in.ProjectID)
		if err != nil {
			return err
		}
		section, err := lockSection(tx, in.SectionID)
		if err != nil {
			return err
		}
		if section.ProjectID != project.ID {
			return apperr.NotFound("section")
		}

		title := strings.TrimSpace(in.Title)
		if title == "" {
			return apperr.Validation("title is required")
		}
		priority, ok := models.ParsePriority(in.Priority)
		if !ok {
			return apperr.Validation("invalid priority %q", in.Priority)
		}
		if err := checkAssignee(tx, project.TeamID, in.AssigneeID); err != nil {
			return err
		}

		position, err := nextTaskPosition(tx, section.ID)
		if err != nil {
			return err
		}

		task = models.Task{
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Priority:    priority,
			DueDate:     in.DueDate,
			Position:    position,
			SectionID:   section.ID,
			ProjectID:   project.ID,
			AssigneeID:  in.AssigneeID,
			CreatorID:   actor.ID,
		}
		if err := tx.Create(&task).Error; err != nil {
			return apperr.FromDB(err, "task")
		}

		ev.Record(task.ID, models.CreatedDetails{Title: task.Title})
		if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
			ev.Record(task.ID, models.AssignedDetails{AssigneeID: task.AssigneeID})
			ev.Notify(*task.AssigneeID, models.NotificationAssigned, activity.AssignedMessage(task.Title), activity.ProjectLink(project.ID), &task.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, task.ProjectID)
	return &task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, actor Actor, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var task *models.Task
	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		var fields []string
		set := func(column string, value any) {
			changes[column] = value
			fields = append(fields, column)
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.Validation("title is required")
			}
			if title != task.Title {
				task.Title = title
				set("title", title)
			}
		}
		if in.Description != nil && *in.Description != task.Description {
			task.Description = *in.Description
			set("description", task.Description)
		}
		if in.Priority != nil {
			priority, ok := models.ParsePriority(*in.Priority)
			if !ok {
				return apperr.Validation("invalid priority %q", *in.Priority)
			}
			if priority != task.Priority {
				task.Priority = priority
				set("priority", priority)
			}
		}
		switch {
		case in.ClearDueDate:
			if task.DueDate != nil {
				task.DueDate = nil
				set("due_date", nil)
			}
		case in.DueDate != nil:
			if task.DueDate == nil || !task.DueDate.Equal(*in.DueDate) {
				task.DueDate = in.DueDate
				set("due_date", *in.DueDate)
			}
		}

		link := activity.ProjectLink(task.ProjectID)

		if in.AssigneeID != nil || in.ClearAssignee {
			next := in.AssigneeID
			if in.ClearAssignee {
				next = nil
			}
			if !sameUser(task.AssigneeID, next) {
				if err := checkAssignee(tx, task.Project.TeamID, next); err != nil {
					return err
				}
				previous := task.AssigneeID
				task.AssigneeID = next
				if next == nil {
					changes["assignee_id"] = nil
				} else {
					changes["assignee_id"] = *next
				}
				ev.Record(task.ID, models.AssignedDetails{AssigneeID: next, PreviousAssigneeID: previous})
				if next != nil {
					ev.Notify(*next, models.NotificationAssigned, activity.AssignedMessage(task.Title), link, &task.ID)
				}
			}
		}

		if in.Completed != nil && *in.Completed != task.Completed {
			task.Completed = *in.Completed
			changes["completed"] = task.Completed
			if task.Completed {
				ev.Record(task.ID, models.CompletedDetails{})
				ev.Notify(task.CreatorID, models.NotificationCompleted, activity.CompletedMessage(actor.Name, task.Title), link, &task.ID)
			} else {
				ev.Record(task.ID, models.UncompletedDetails{})
			}
		}

		moved, err := s.reposition(tx, task, in, changes)
		if err != nil {
			return err
		}
		if moved != nil {
			ev.Record(task.ID, *moved)
		} else if _, ok := changes["position"]; ok {
			fields = append(fields, "position")
		}

		if len(fields) > 0 {
			ev.Record(task.ID, models.UpdatedDetails{Fields: fields})
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(changes).Error; err != nil {
			return apperr.FromDB(err, "task")
		}
		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, boards...)
	task.Project = nil
	return task, nil
}

// reposition handles section moves and reordering. It returns the move
// details when the task changed section.
func (s *TaskServiceImpl) reposition(tx *gorm.DB, task *models.Task, in UpdateTaskInput, changes map[string]any) (*models.MovedDetails, error) {
	if in.SectionID == nil && in.Position == nil {
		return nil, nil
	}
	if in.Position != nil && *in.Position < 0 {
		return nil, apperr.Validation("position must not be negative")
	}

	target := task.SectionID
	if in.SectionID != nil && *in.SectionID != task.SectionID {
		section, err := lockSection(tx, *in.SectionID)
		if err != nil {
			return nil, err
		}
		if section.ProjectID != task.ProjectID {
			return nil, apperr.InvalidOperation("section belongs to another project")
		}
		target = section.ID
	}

	from := task.SectionID
	switch {
	case in.Position != nil:
		if target == from && *in.Position == task.Position {
			return nil, nil
		}
		if err := shiftTasks(tx, target, *in.Position, task.ID); err != nil {
			return nil, err
		}
		task.Position = *in.Position
	case target != from:
		position, err := nextTaskPosition(tx, target)
		if err != nil {
			return nil, err
		}
		task.Position = position
	default:
		return nil, nil
	}

	changes["position"] = task.Position
	if target == from {
		return nil, nil
	}
	task.SectionID = target
	changes["section_id"] = target
	return &models.MovedDetails{FromSectionID: from, ToSectionID: target, Position: task.Position}, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, actor Actor, taskID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		linked, err := deleteTasks(tx, []uuid.UUID{task.ID})
		if err != nil {
			return err
		}
		boards = append([]uuid.UUID{task.ProjectID}, linked...)
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var task models.Task
	err := db.
		Preload("Assignee").
		Preload("Creator").
		Preload("Section").
		Preload("Project").
		Preload("Comments", orderBy("created_at ASC")).
		Preload("Comments.Author").
		Preload("Attachments", orderBy("created_at ASC")).
		Preload("Attachments.UploadedBy").
		Preload("Subtasks", orderBy("position ASC, created_at ASC")).
		Preload("Subtasks.Assignee").
		Preload("Tags", orderBy("name ASC")).
		Preload("Links", orderBy("created_at ASC")).
		Preload("Links.Project").
		Preload("Links.Section").
		First(&task, "id = ?", taskID).Error
	if err != nil {
		return nil, apperr.FromDB(err, "task")
	}
	if task.Project == nil {
		return nil, apperr.NotFound("project")
	}
	if _, err := requireMember(db, task.Project.TeamID, actor.ID); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) ListMyTasks(ctx context.Context, actor Actor) ([]models.Task, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	visible := db.Model(&models.Project{}).
		Select("projects.id").
		Joins("JOIN team_members ON team_members.team_id = projects.team_id").
		Where("team_members.user_id = ?", actor.ID)

	var tasks []models.Task
	err := db.
		Preload("Project").
		Preload("Section").
		Preload("Tags").
		Where("assignee_id = ?", actor.ID).
		Where("project_id IN (?)", visible).
		Order("completed ASC").
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date ASC").
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tasks, nil
}

// ListTaskActivity returns the task's history, newest first.
func (s *TaskServiceImpl) ListTaskActivity(ctx context.Context, actor Actor, taskID uuid.UUID) ([]models.ActivityLog, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	if _, err := taskForActor(db, actor, taskID); err != nil {
		return nil, err
	}
	var logs []models.ActivityLog
	err := db.Preload("User").
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Limit(50).
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return logs, nil
}

// lockSection loads a section, holding a row lock on postgres so that
// concurrent position assignment in the section is serialized. SQLite
// already serializes writers.
func lockSection(tx *gorm.DB, id uuid.UUID) (*models.Section, error) {
	q := tx
	if database.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var section models.Section
	if err := q.First(&section, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "section")
	}
	return &section, nil
}

func nextTaskPosition(tx *gorm.DB, sectionID uuid.UUID) (int, error) {
	var top int
	if err := tx.Model(&models.Task{}).Where("section_id = ?", sectionID).Select("COALESCE(MAX(position), -1)").Scan(&top).Error; err != nil {
		return 0, apperr.Internal(err)
	}
	return top + 1, nil
}

// shiftTasks opens a gap at position so keys stay strictly increasing.
func shiftTasks(tx *gorm.DB, sectionID uuid.UUID, position int, except uuid.UUID) error {
	err := tx.Model(&models.Task{}).
		Where("section_id = ? AND position >= ? AND id <> ?", sectionID, position, except).
		Update("position", gorm.Expr("position + 1")).Error
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func checkAssignee(tx *gorm.DB, teamID uuid.UUID, assigneeID *uuid.UUID) error {
	if assigneeID == nil {
		return nil
	}
	m, err := membership(tx, teamID, *assigneeID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.Validation("assignee must be a member of the team")
	}
	return nil
}

func sameUser(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func orderBy(order string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}
