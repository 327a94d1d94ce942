package services_test

import (
	"context"
	"testing"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/board"
	"teamflow/backend/internal/cache"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
)

type BoardServiceTestSuite struct {
	suite.Suite
	f      *fixture
	ctx    context.Context
	cache  *cache.MemoryCache
	boards *services.BoardServiceImpl
	tasks  *services.TaskServiceImpl
}

func (suite *BoardServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.cache = cache.NewMemoryCache(100)
	suite.boards = services.NewBoardService(suite.f.db, suite.cache, time.Minute, nil)

	deps := suite.f.deps
	deps.Boards = suite.boards
	suite.tasks = services.NewTaskService(deps)
}

func (suite *BoardServiceTestSuite) get(actor services.Actor, filter board.Filter) *board.Board {
	b, err := suite.boards.GetBoard(suite.ctx, actor, suite.f.project.ID, filter)
	suite.Require().NoError(err)
	return b
}

func (suite *BoardServiceTestSuite) TestGetBoard_SectionsInOrder() {
	b := suite.get(actorOf(suite.f.member), board.Filter{})

	suite.Equal(suite.f.project.ID, b.ProjectID)
	suite.Equal("Website", b.Name)
	suite.Require().Len(b.Sections, 3)
	for i, name := range models.DefaultSectionNames {
		suite.Equal(name, b.Sections[i].Name)
		suite.Empty(b.Sections[i].Cards)
	}
}

func (suite *BoardServiceTestSuite) TestGetBoard_ServedFromCacheUntilInvalidated() {
	suite.Zero(suite.get(actorOf(suite.f.owner), board.Filter{}).TaskCount())
	suite.Equal(1, suite.cache.Len())

	// Written behind the service's back, so nothing invalidates.
	testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Sneaky", 0)
	suite.Zero(suite.get(actorOf(suite.f.owner), board.Filter{}).TaskCount())

	suite.boards.InvalidateProjects(suite.ctx, suite.f.project.ID)
	suite.Equal(1, suite.get(actorOf(suite.f.owner), board.Filter{}).TaskCount())
}

// interleavingCache runs beforeSet once, just ahead of the first write.
type interleavingCache struct {
	cache.Cache
	beforeSet func()
}

func (c *interleavingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

func (suite *BoardServiceTestSuite) TestGetBoard_InvalidationDuringCacheWriteWins() {
	wrapped := &interleavingCache{Cache: suite.cache}
	boards := services.NewBoardService(suite.f.db, wrapped, time.Minute, nil)
	deps := suite.f.deps
	deps.Boards = boards
	tasks := services.NewTaskService(deps)
	owner := actorOf(suite.f.owner)

	wrapped.beforeSet = func() {
		_, err := tasks.CreateTask(suite.ctx, owner, services.CreateTaskInput{
			ProjectID: suite.f.project.ID,
			SectionID: suite.f.todo().ID,
			Title:     "Committed mid-compose",
		})
		suite.Require().NoError(err)
	}

	b, err := boards.GetBoard(suite.ctx, owner, suite.f.project.ID, board.Filter{})
	suite.Require().NoError(err)
	suite.Zero(b.TaskCount())

	b, err = boards.GetBoard(suite.ctx, owner, suite.f.project.ID, board.Filter{})
	suite.Require().NoError(err)
	suite.Equal(1, b.TaskCount())
}

func (suite *BoardServiceTestSuite) TestWarmRecent() {
	res, err := suite.boards.WarmRecent(suite.ctx, 2, 2)
	suite.Require().NoError(err)
	suite.Equal(cache.WarmupResult{Warmed: 2}, res)
	suite.Equal(2, suite.cache.Len())

	res, err = suite.boards.WarmRecent(suite.ctx, 10, 2)
	suite.Require().NoError(err)
	suite.Equal(3, res.Warmed)
	suite.Equal(3, suite.cache.Len())

	// A warmed board is served without recomposing.
	testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Sneaky", 0)
	suite.Zero(suite.get(actorOf(suite.f.owner), board.Filter{}).TaskCount())
}

func (suite *BoardServiceTestSuite) TestWarmRecent_NoCache() {
	uncached := services.NewBoardService(suite.f.db, nil, time.Minute, nil)
	res, err := uncached.WarmRecent(suite.ctx, 10, 2)
	suite.Require().NoError(err)
	suite.Zero(res.Warmed)
}

func (suite *BoardServiceTestSuite) TestGetBoard_WritesThroughServicesInvalidate() {
	suite.get(actorOf(suite.f.owner), board.Filter{})

	task, err := suite.tasks.CreateTask(suite.ctx, actorOf(suite.f.owner), services.CreateTaskInput{
		ProjectID: suite.f.project.ID,
		SectionID: suite.f.todo().ID,
		Title:     "Draft copy",
	})
	suite.Require().NoError(err)

	b := suite.get(actorOf(suite.f.owner), board.Filter{})
	suite.Require().Len(b.Sections[0].Cards, 1)
	suite.Equal(task.ID, b.Sections[0].Cards[0].ID)

	_, err = suite.tasks.UpdateTask(suite.ctx, actorOf(suite.f.owner), task.ID, services.UpdateTaskInput{Completed: ptr(true)})
	suite.Require().NoError(err)
	suite.True(suite.get(actorOf(suite.f.owner), board.Filter{}).Sections[0].Cards[0].Completed)
}

func (suite *BoardServiceTestSuite) TestGetBoard_Filters() {
	owner := actorOf(suite.f.owner)
	_, err := suite.tasks.CreateTask(suite.ctx, owner, services.CreateTaskInput{
		ProjectID: suite.f.project.ID, SectionID: suite.f.todo().ID, Title: "Fix login bug", Priority: "urgent",
		AssigneeID: ptr(suite.f.member.ID),
	})
	suite.Require().NoError(err)
	_, err = suite.tasks.CreateTask(suite.ctx, owner, services.CreateTaskInput{
		ProjectID: suite.f.project.ID, SectionID: suite.f.inProgress().ID, Title: "Write release notes", Priority: "low",
	})
	suite.Require().NoError(err)

	tests := []struct {
		name   string
		filter board.Filter
		want   []string
	}{
		{"none", board.Filter{}, []string{"Fix login bug", "Write release notes"}},
		{"priority", board.Filter{Priority: "urgent"}, []string{"Fix login bug"}},
		{"assignee", board.Filter{AssigneeID: suite.f.member.ID.String()}, []string{"Fix login bug"}},
		{"unassigned", board.Filter{AssigneeID: board.Unassigned}, []string{"Write release notes"}},
		{"search", board.Filter{SearchText: "RELEASE"}, []string{"Write release notes"}},
		{"all means unset", board.Filter{Priority: board.All, Status: board.All}, []string{"Fix login bug", "Write release notes"}},
		{"completed", board.Filter{Status: board.StatusCompleted}, nil},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			b := suite.get(owner, tt.filter)
			suite.Len(b.Sections, 3, "filtering keeps empty sections")
			var titles []string
			for _, s := range b.Sections {
				for _, c := range s.Cards {
					titles = append(titles, c.Title)
				}
			}
			suite.Equal(tt.want, titles)
		})
	}

	// The cached entry is the unfiltered board.
	suite.Equal(2, suite.get(owner, board.Filter{}).TaskCount())
}

func (suite *BoardServiceTestSuite) TestGetBoard_RejectsUnknownStatus() {
	_, err := suite.boards.GetBoard(suite.ctx, actorOf(suite.f.owner), suite.f.project.ID, board.Filter{Status: "done"})
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))
	suite.Zero(suite.cache.Len())
}

func (suite *BoardServiceTestSuite) TestGetBoard_Access() {
	_, err := suite.boards.GetBoard(suite.ctx, actorOf(suite.f.outsider), suite.f.project.ID, board.Filter{})
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	_, err = suite.boards.GetBoard(suite.ctx, actorOf(suite.f.owner), uuid.Must(uuid.NewV4()), board.Filter{})
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	_, err = suite.boards.GetBoard(suite.ctx, services.Actor{}, suite.f.project.ID, board.Filter{})
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))
}

func (suite *BoardServiceTestSuite) TestOverview() {
	owner := actorOf(suite.f.owner)
	first, err := suite.tasks.CreateTask(suite.ctx, owner, services.CreateTaskInput{
		ProjectID: suite.f.project.ID, SectionID: suite.f.todo().ID, Title: "One",
	})
	suite.Require().NoError(err)
	_, err = suite.tasks.CreateTask(suite.ctx, owner, services.CreateTaskInput{
		ProjectID: suite.f.project.ID, SectionID: suite.f.todo().ID, Title: "Two",
	})
	suite.Require().NoError(err)
	_, err = suite.tasks.UpdateTask(suite.ctx, owner, first.ID, services.UpdateTaskInput{Completed: ptr(true)})
	suite.Require().NoError(err)

	overview, err := suite.boards.Overview(suite.ctx, actorOf(suite.f.member), suite.f.project.ID)
	suite.Require().NoError(err)

	suite.Equal(2, overview.Total)
	suite.Equal(1, overview.Completed)
	suite.Require().Len(overview.Sections, 3)
	suite.Equal(2, overview.Sections[0].Total)
	suite.Equal(1, overview.Sections[0].Completed)
	suite.Len(overview.Activity, 3)
	for _, item := range overview.Activity {
		suite.Equal("Olivia", item.User.Name)
		suite.NotEmpty(item.TaskTitle)
	}
}

func TestBoardServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BoardServiceTestSuite))
}
