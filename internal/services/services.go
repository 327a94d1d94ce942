// Package services holds the application operations. Every operation takes
// the acting user explicitly and checks team membership before touching a
// project or task.
package services

import (
	"context"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

func (a Actor) validate() error {
	if a.ID == uuid.Nil {
		return apperr.Unauthenticated()
	}
	return nil
}

// BoardInvalidator drops cached boards after a mutation.
type BoardInvalidator interface {
	InvalidateProjects(ctx context.Context, projectIDs ...uuid.UUID)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateProjects(context.Context, ...uuid.UUID) {}

// Deps are shared by every service.
type Deps struct {
	DB     *gorm.DB
	Sink   activity.Sink
	Boards BoardInvalidator
	Logger *logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Sink == nil {
		d.Sink = activity.NewInlineSink(activity.NewStore(d.DB, d.Logger), d.Logger)
	}
	if d.Boards == nil {
		d.Boards = noopInvalidator{}
	}
	return d
}

// afterCommit publishes side effects once the primary transaction is durable.
func (d Deps) afterCommit(ctx context.Context, ev *activity.Event, projectIDs ...uuid.UUID) {
	if len(projectIDs) > 0 {
		d.Boards.InvalidateProjects(ctx, projectIDs...)
	}
	if !ev.Empty() {
		d.Sink.Publish(ctx, ev)
	}
}

func findProject(tx *gorm.DB, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := tx.First(&project, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "project")
	}
	return &project, nil
}

func findTask(tx *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := tx.Preload("Project").First(&task, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "task")
	}
	return &task, nil
}

// membership returns the actor's membership of team, or nil if none.
func membership(tx *gorm.DB, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	var members []models.TeamMember
	if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).Limit(1).Find(&members).Error; err != nil {
		return nil, apperr.FromDB(err, "team member")
	}
	if len(members) == 0 {
		return nil, nil
	}
	return &members[0], nil
}

func requireMember(tx *gorm.DB, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	m, err := membership(tx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("you are not a member of this team")
	}
	return m, nil
}

// projectForActor loads a project and checks the actor belongs to its team.
func projectForActor(tx *gorm.DB, actor Actor, projectID uuid.UUID) (*models.Project, *models.TeamMember, error) {
	project, err := findProject(tx, projectID)
	if err != nil {
		return nil, nil, err
	}
	m, err := requireMember(tx, project.TeamID, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	return project, m, nil
}

// taskForActor loads a task with its origin project and checks membership.
func taskForActor(tx *gorm.DB, actor Actor, taskID uuid.UUID) (*models.Task, error) {
	task, err := findTask(tx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Project == nil {
		return nil, apperr.NotFound("project")
	}
	if _, err := requireMember(tx, task.Project.TeamID, actor.ID); err != nil {
		return nil, err
	}
	return task, nil
}

// boardProjects lists every project whose board shows the task: its origin
// first, then the projects it is linked into.
func boardProjects(tx *gorm.DB, task *models.Task) ([]uuid.UUID, error) {
	var linked []uuid.UUID
	if err := tx.Model(&models.TaskProject{}).Where("task_id = ?", task.ID).Pluck("project_id", &linked).Error; err != nil {
		return nil, apperr.FromDB(err, "task link")
	}
	return append([]uuid.UUID{task.ProjectID}, linked...), nil
}

// deleteTasks removes tasks and every row owned by or referring to them.
// It returns the projects, other than the tasks' origins, whose boards
// showed them through links.
func deleteTasks(tx *gorm.DB, taskIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	var linked []uuid.UUID
	if err := tx.Model(&models.TaskProject{}).Where("task_id IN ?", taskIDs).Distinct().Pluck("project_id", &linked).Error; err != nil {
		return nil, apperr.FromDB(err, "task link")
	}

	children := []any{
		&models.Subtask{}, &models.Comment{}, &models.Attachment{}, &models.TaskTag{},
		&models.TaskProject{}, &models.ActivityLog{}, &models.Notification{},
	}
	for _, model := range children {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(model).Error; err != nil {
			return nil, apperr.Internal(err)
		}
	}
	if err := tx.Where("id IN ?", taskIDs).Delete(&models.Task{}).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return linked, nil
}

// deleteProjects removes projects with their sections, tasks, links into
// them and portfolio memberships. It returns the other projects whose
// boards lost linked tasks.
func deleteProjects(tx *gorm.DB, projectIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	var taskIDs []uuid.UUID
	if err := tx.Model(&models.Task{}).Where("project_id IN ?", projectIDs).Pluck("id", &taskIDs).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	affected, err := deleteTasks(tx, taskIDs)
	if err != nil {
		return nil, err
	}

	if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.TaskProject{}).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.PortfolioProject{}).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.Section{}).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	deleted := make(map[uuid.UUID]bool, len(projectIDs))
	for _, id := range projectIDs {
		deleted[id] = true
	}
	var others []uuid.UUID
	for _, id := range affected {
		if !deleted[id] {
			others = append(others, id)
		}
	}
	return others, nil
}
