package services_test

import (
	"context"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/board"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/stretchr/testify/suite"
)

type TagServiceTestSuite struct {
	suite.Suite
	f    *fixture
	ctx  context.Context
	tags *services.TagServiceImpl
	task models.Task
}

func (suite *TagServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.tags = services.NewTagService(suite.f.deps)
	suite.task = testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Fix header", 0)
}

func (suite *TagServiceTestSuite) TestCreateTag() {
	tag, err := suite.tags.CreateTag(suite.ctx, actorOf(suite.f.owner), " bug ", "")
	suite.Require().NoError(err)
	suite.Equal("bug", tag.Name)
	suite.Equal(models.DefaultTagColor, tag.Color)

	_, err = suite.tags.CreateTag(suite.ctx, actorOf(suite.f.member), "bug", "#000000")
	suite.Equal(apperr.KindConflict, apperr.KindOf(err))

	_, err = suite.tags.CreateTag(suite.ctx, actorOf(suite.f.member), "", "")
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))
}

func (suite *TagServiceTestSuite) TestTagTask_ShowsOnBoard() {
	owner := actorOf(suite.f.owner)
	tag, err := suite.tags.CreateTag(suite.ctx, owner, "bug", "#ef4444")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.tags.AddTagToTask(suite.ctx, owner, suite.task.ID, tag.ID))
	err = suite.tags.AddTagToTask(suite.ctx, owner, suite.task.ID, tag.ID)
	suite.Equal(apperr.KindConflict, apperr.KindOf(err))

	b, err := services.NewBoardService(suite.f.db, nil, 0, nil).GetBoard(suite.ctx, owner, suite.f.project.ID, board.Filter{})
	suite.Require().NoError(err)
	suite.Require().Len(b.Sections[0].Cards, 1)
	suite.Equal([]board.TagRef{{ID: tag.ID, Name: "bug", Color: "#ef4444"}}, b.Sections[0].Cards[0].Tags)

	list, err := suite.tags.ListTags(suite.ctx, owner)
	suite.Require().NoError(err)
	suite.Require().Len(list, 1)
	suite.Equal(1, list[0].TaskCount)

	logs := suite.f.activity(suite.T(), suite.task.ID, models.ActionUpdated)
	suite.Require().Len(logs, 1)
	details, err := logs[0].Payload()
	suite.Require().NoError(err)
	suite.Equal(models.UpdatedDetails{Fields: []string{"tags"}}, details)
}

func (suite *TagServiceTestSuite) TestRemoveTag() {
	owner := actorOf(suite.f.owner)
	tag, err := suite.tags.CreateTag(suite.ctx, owner, "bug", "")
	suite.Require().NoError(err)

	err = suite.tags.RemoveTagFromTask(suite.ctx, owner, suite.task.ID, tag.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	suite.Require().NoError(suite.tags.AddTagToTask(suite.ctx, owner, suite.task.ID, tag.ID))
	suite.Require().NoError(suite.tags.RemoveTagFromTask(suite.ctx, owner, suite.task.ID, tag.ID))
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.TaskTag{}, ""))

	err = suite.tags.AddTagToTask(suite.ctx, actorOf(suite.f.outsider), suite.task.ID, tag.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TagServiceTestSuite) TestDeleteTag_InvalidatesTaggedBoards() {
	owner := actorOf(suite.f.owner)
	tag, err := suite.tags.CreateTag(suite.ctx, owner, "bug", "")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.tags.AddTagToTask(suite.ctx, owner, suite.task.ID, tag.ID))
	suite.f.boards.take()

	suite.Require().NoError(suite.tags.DeleteTag(suite.ctx, owner, tag.ID))
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.TaskTag{}, ""))
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.Tag{}, ""))
	suite.Equal(suite.f.project.ID, suite.f.boards.take()[0])
}

func TestTagServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TagServiceTestSuite))
}
