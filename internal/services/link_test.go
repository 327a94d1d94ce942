package services_test

import (
	"context"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/board"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
)

type LinkServiceTestSuite struct {
	suite.Suite
	f      *fixture
	ctx    context.Context
	links  *services.LinkServiceImpl
	boards *services.BoardServiceImpl
	task   models.Task
}

func (suite *LinkServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.links = services.NewLinkService(suite.f.deps)
	suite.boards = services.NewBoardService(suite.f.db, nil, 0, nil)
	suite.task = testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Launch checklist", 0)
}

func (suite *LinkServiceTestSuite) board(projectID uuid.UUID) *board.Board {
	b, err := suite.boards.GetBoard(suite.ctx, actorOf(suite.f.owner), projectID, board.Filter{})
	suite.Require().NoError(err)
	return b
}

func findCard(b *board.Board, taskID uuid.UUID) (string, *board.Card) {
	for _, s := range b.Sections {
		for i := range s.Cards {
			if s.Cards[i].ID == taskID {
				return s.Name, &s.Cards[i]
			}
		}
	}
	return "", nil
}

// Linking shows the task in the target board without touching the origin.
func (suite *LinkServiceTestSuite) TestLink_ShowsTaskInTargetSection() {
	originBefore := suite.board(suite.f.project.ID)

	link, err := suite.links.LinkTask(suite.ctx, actorOf(suite.f.member), suite.task.ID, suite.f.other.ID, suite.f.backlog.ID)
	suite.Require().NoError(err)
	suite.Equal(suite.f.backlog.ID, link.SectionID)

	section, card := findCard(suite.board(suite.f.other.ID), suite.task.ID)
	suite.Require().NotNil(card)
	suite.Equal("Backlog", section)
	suite.True(card.Linked)
	suite.Require().NotNil(card.LinkedFrom)
	suite.Equal(suite.f.project.ID, card.LinkedFrom.ID)
	suite.Equal("Website", card.LinkedFrom.Name)

	suite.Equal(originBefore, suite.board(suite.f.project.ID))
	section, card = findCard(suite.board(suite.f.project.ID), suite.task.ID)
	suite.Equal("To Do", section)
	suite.False(card.Linked)

	logs := suite.f.activity(suite.T(), suite.task.ID, models.ActionAddedToProject)
	suite.Require().Len(logs, 1)
	details, err := logs[0].Payload()
	suite.Require().NoError(err)
	suite.Equal(models.AddedToProjectDetails{ProjectID: suite.f.other.ID, SectionID: suite.f.backlog.ID}, details)
	suite.ElementsMatch([]uuid.UUID{suite.f.project.ID, suite.f.other.ID}, suite.f.boards.take())
}

func (suite *LinkServiceTestSuite) TestLinkThenUnlink_RestoresBoards() {
	originBefore := suite.board(suite.f.project.ID)
	targetBefore := suite.board(suite.f.other.ID)

	_, err := suite.links.LinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID, suite.f.backlog.ID)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.links.UnlinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID))

	suite.Equal(originBefore, suite.board(suite.f.project.ID))
	suite.Equal(targetBefore, suite.board(suite.f.other.ID))
	suite.Len(suite.f.activity(suite.T(), suite.task.ID, models.ActionRemovedFromProject), 1)
}

func (suite *LinkServiceTestSuite) TestLink_SecondAttemptConflicts() {
	_, err := suite.links.LinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID, suite.f.backlog.ID)
	suite.Require().NoError(err)

	_, err = suite.links.LinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID, suite.f.other.Sections[0].ID)
	suite.Equal(apperr.KindConflict, apperr.KindOf(err))
	suite.Equal(int64(1), testutil.Count(suite.T(), suite.f.db, &models.TaskProject{}, ""))
}

func (suite *LinkServiceTestSuite) TestLink_Preconditions() {
	missing := uuid.Must(uuid.NewV4())
	tests := []struct {
		name      string
		actor     services.Actor
		taskID    uuid.UUID
		projectID uuid.UUID
		sectionID uuid.UUID
		kind      apperr.Kind
	}{
		{"no actor", services.Actor{}, suite.task.ID, suite.f.other.ID, suite.f.backlog.ID, apperr.KindUnauthenticated},
		{"missing task", actorOf(suite.f.owner), missing, suite.f.other.ID, suite.f.backlog.ID, apperr.KindNotFound},
		{"missing project", actorOf(suite.f.owner), suite.task.ID, missing, suite.f.backlog.ID, apperr.KindNotFound},
		{"other team", actorOf(suite.f.owner), suite.task.ID, suite.f.foreign.ID, suite.f.foreign.Sections[0].ID, apperr.KindForbidden},
		{"actor outside team", actorOf(suite.f.outsider), suite.task.ID, suite.f.other.ID, suite.f.backlog.ID, apperr.KindForbidden},
		{"origin project", actorOf(suite.f.owner), suite.task.ID, suite.f.project.ID, suite.f.todo().ID, apperr.KindInvalidOperation},
		{"section of another project", actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID, suite.f.todo().ID, apperr.KindNotFound},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.links.LinkTask(suite.ctx, tt.actor, tt.taskID, tt.projectID, tt.sectionID)
			suite.Require().Error(err)
			suite.Equal(tt.kind, apperr.KindOf(err))
		})
	}
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.TaskProject{}, ""))
}

func (suite *LinkServiceTestSuite) TestUnlink_Errors() {
	err := suite.links.UnlinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.project.ID)
	suite.Equal(apperr.KindInvalidOperation, apperr.KindOf(err))

	err = suite.links.UnlinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	err = suite.links.UnlinkTask(suite.ctx, actorOf(suite.f.owner), uuid.Must(uuid.NewV4()), suite.f.other.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
}

func (suite *LinkServiceTestSuite) TestListProjectOptions() {
	_, err := suite.links.LinkTask(suite.ctx, actorOf(suite.f.owner), suite.task.ID, suite.f.other.ID, suite.f.backlog.ID)
	suite.Require().NoError(err)

	options, err := suite.links.ListProjectOptions(suite.ctx, actorOf(suite.f.member), suite.task.ID)
	suite.Require().NoError(err)
	suite.Require().Len(options, 2, "projects of other teams are not offered")

	suite.Equal("Marketing", options[0].Name)
	suite.True(options[0].IsLinked)
	suite.False(options[0].IsOrigin)
	suite.Require().NotNil(options[0].LinkedSectionID)
	suite.Equal(suite.f.backlog.ID, *options[0].LinkedSectionID)
	suite.Equal("Backlog", options[0].LinkedSectionName)
	suite.Len(options[0].Sections, 4)
	suite.Equal("Backlog", options[0].Sections[3].Name)

	suite.Equal("Website", options[1].Name)
	suite.True(options[1].IsOrigin)
	suite.False(options[1].IsLinked)
	suite.Nil(options[1].LinkedSectionID)
}

func TestLinkServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LinkServiceTestSuite))
}
