package services_test

import (
	"context"
	"sync"
	"testing"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type recordingBoards struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingBoards) InvalidateProjects(_ context.Context, ids ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *recordingBoards) take() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.ids
	r.ids = nil
	return ids
}

// fixture is one team with two projects. owner and member belong to the
// team; outsider belongs to a team of their own.
type fixture struct {
	db     *gorm.DB
	deps   services.Deps
	boards *recordingBoards

	owner, member, outsider models.User
	team, otherTeam         models.Team
	project                 models.Project
	other                   models.Project
	backlog                 models.Section
	foreign                 models.Project
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := logging.Nop()

	f := &fixture{db: db, boards: &recordingBoards{}}
	f.deps = services.Deps{
		DB:     db,
		Sink:   activity.NewInlineSink(activity.NewStore(db, logger), logger),
		Boards: f.boards,
		Logger: logger,
	}

	f.owner = testutil.CreateUser(t, db, "Olivia")
	f.member = testutil.CreateUser(t, db, "Mateo")
	f.outsider = testutil.CreateUser(t, db, "Oscar")
	f.team = testutil.CreateTeam(t, db, f.owner, f.member)
	f.otherTeam = testutil.CreateTeam(t, db, f.outsider)

	f.project = testutil.CreateProject(t, db, f.team, f.owner, "Website")
	f.other = testutil.CreateProject(t, db, f.team, f.owner, "Marketing")
	f.backlog = testutil.CreateSection(t, db, f.other, "Backlog", len(f.other.Sections))
	f.foreign = testutil.CreateProject(t, db, f.otherTeam, f.outsider, "Elsewhere")
	return f
}

func actorOf(u models.User) services.Actor {
	return services.Actor{ID: u.ID, Name: u.Name}
}

func (f *fixture) todo() models.Section {
	return f.project.Sections[0]
}

func (f *fixture) inProgress() models.Section {
	return f.project.Sections[1]
}

func (f *fixture) notifications(t testing.TB, user models.User) []models.Notification {
	t.Helper()
	var out []models.Notification
	if err := f.db.Where("user_id = ?", user.ID).Order("created_at ASC").Find(&out).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	return out
}

func (f *fixture) activity(t testing.TB, taskID uuid.UUID, action models.ActivityAction) []models.ActivityLog {
	t.Helper()
	var out []models.ActivityLog
	if err := f.db.Where("task_id = ? AND action = ?", taskID, action).Order("created_at ASC").Find(&out).Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
