// Package testutil provides sqlite-backed databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"teamflow/backend/internal/database"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.Must(uuid.NewV4())),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, database.Migrate(pool.DB))
	return pool.DB
}

func CreateUser(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, uuid.Must(uuid.NewV4()).String()[:8]),
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateTeam makes owner the team owner and adds members with the member role.
func CreateTeam(t testing.TB, db *gorm.DB, owner models.User, members ...models.User) models.Team {
	t.Helper()
	team := models.Team{Name: owner.Name + "'s Team"}
	require.NoError(t, db.Create(&team).Error)
	AddMember(t, db, team, owner, models.RoleOwner)
	for _, m := range members {
		AddMember(t, db, team, m, models.RoleMember)
	}
	return team
}

func AddMember(t testing.TB, db *gorm.DB, team models.Team, user models.User, role models.TeamRole) {
	t.Helper()
	require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: user.ID, Role: role}).Error)
}

// CreateProject creates a project with the default sections loaded in order.
func CreateProject(t testing.TB, db *gorm.DB, team models.Team, creator models.User, name string) models.Project {
	t.Helper()
	project := models.Project{Name: name, TeamID: team.ID, CreatorID: creator.ID, Color: models.DefaultProjectColor}
	require.NoError(t, db.Create(&project).Error)
	sections := models.DefaultSections(project.ID)
	require.NoError(t, db.Create(&sections).Error)
	project.Sections = sections
	return project
}

func CreateSection(t testing.TB, db *gorm.DB, project models.Project, name string, position int) models.Section {
	t.Helper()
	section := models.Section{Name: name, ProjectID: project.ID, Position: position}
	require.NoError(t, db.Create(&section).Error)
	return section
}

// CreateTask inserts a task directly, bypassing activity side effects.
func CreateTask(t testing.TB, db *gorm.DB, section models.Section, creator models.User, title string, position int) models.Task {
	t.Helper()
	task := models.Task{
		Title:     title,
		Priority:  models.PriorityMedium,
		Position:  position,
		SectionID: section.ID,
		ProjectID: section.ProjectID,
		CreatorID: creator.ID,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func Count(t testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
