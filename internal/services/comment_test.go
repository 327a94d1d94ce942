package services_test

import (
	"context"
	"strings"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
)

type CommentServiceTestSuite struct {
	suite.Suite
	f        *fixture
	ctx      context.Context
	comments *services.CommentServiceImpl
	task     models.Task
}

func (suite *CommentServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.comments = services.NewCommentService(suite.f.deps)
	suite.task = testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Ship it", 0)
}

func (suite *CommentServiceTestSuite) assignTo(u models.User) {
	suite.Require().NoError(suite.f.db.Model(&suite.task).Update("assignee_id", u.ID).Error)
}

func (suite *CommentServiceTestSuite) TestAddComment_NotifiesCreatorAndAssigneeOnce() {
	suite.assignTo(suite.f.owner)

	comment, err := suite.comments.AddComment(suite.ctx, actorOf(suite.f.member), suite.task.ID, "  Looks good  ")
	suite.Require().NoError(err)
	suite.Equal("Looks good", comment.Content)

	notes := suite.f.notifications(suite.T(), suite.f.owner)
	suite.Require().Len(notes, 1, "creator and assignee are the same person")
	suite.Equal(models.NotificationCommented, notes[0].Type)
	suite.Equal(`Mateo commented on "Ship it"`, notes[0].Message)
	suite.Require().NotNil(notes[0].TaskID)
	suite.Equal(suite.task.ID, *notes[0].TaskID)
	suite.Empty(suite.f.notifications(suite.T(), suite.f.member))
}

func (suite *CommentServiceTestSuite) TestAddComment_AuthorIsNotNotified() {
	suite.assignTo(suite.f.member)

	_, err := suite.comments.AddComment(suite.ctx, actorOf(suite.f.owner), suite.task.ID, "Please review")
	suite.Require().NoError(err)

	suite.Empty(suite.f.notifications(suite.T(), suite.f.owner))
	suite.Len(suite.f.notifications(suite.T(), suite.f.member), 1)
}

func (suite *CommentServiceTestSuite) TestAddComment_ActivityExcerpt() {
	long := strings.Repeat("x", 250)
	_, err := suite.comments.AddComment(suite.ctx, actorOf(suite.f.owner), suite.task.ID, long)
	suite.Require().NoError(err)

	logs := suite.f.activity(suite.T(), suite.task.ID, models.ActionCommented)
	suite.Require().Len(logs, 1)
	details, err := logs[0].Payload()
	suite.Require().NoError(err)
	suite.Len(details.(models.CommentedDetails).Content, 100)
}

func (suite *CommentServiceTestSuite) TestAddComment_Errors() {
	_, err := suite.comments.AddComment(suite.ctx, actorOf(suite.f.owner), suite.task.ID, "   ")
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))

	_, err = suite.comments.AddComment(suite.ctx, actorOf(suite.f.outsider), suite.task.ID, "hi")
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	_, err = suite.comments.AddComment(suite.ctx, actorOf(suite.f.owner), uuid.Must(uuid.NewV4()), "hi")
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.Comment{}, ""))
}

func (suite *CommentServiceTestSuite) TestDeleteComment_AuthorOnly() {
	comment, err := suite.comments.AddComment(suite.ctx, actorOf(suite.f.member), suite.task.ID, "mine")
	suite.Require().NoError(err)

	err = suite.comments.DeleteComment(suite.ctx, actorOf(suite.f.owner), comment.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	suite.Require().NoError(suite.comments.DeleteComment(suite.ctx, actorOf(suite.f.member), comment.ID))
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.Comment{}, ""))
}

func (suite *CommentServiceTestSuite) TestAttachments() {
	_, err := suite.comments.AddAttachment(suite.ctx, actorOf(suite.f.member), suite.task.ID, services.AttachmentInput{Filename: "spec.pdf"})
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))

	_, err = suite.comments.AddAttachment(suite.ctx, actorOf(suite.f.member), suite.task.ID, services.AttachmentInput{
		Filename: "spec.pdf", URL: "https://files.example.com/spec.pdf", Size: -1,
	})
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))

	att, err := suite.comments.AddAttachment(suite.ctx, actorOf(suite.f.member), suite.task.ID, services.AttachmentInput{
		Filename: "spec.pdf", URL: "https://files.example.com/spec.pdf", Size: 2048, MimeType: "application/pdf",
	})
	suite.Require().NoError(err)

	logs := suite.f.activity(suite.T(), suite.task.ID, models.ActionAttachmentAdded)
	suite.Require().Len(logs, 1)
	details, err := logs[0].Payload()
	suite.Require().NoError(err)
	suite.Equal(models.AttachmentAddedDetails{Filename: "spec.pdf"}, details)

	err = suite.comments.DeleteAttachment(suite.ctx, actorOf(suite.f.owner), att.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
	suite.Require().NoError(suite.comments.DeleteAttachment(suite.ctx, actorOf(suite.f.member), att.ID))
	suite.Contains(suite.f.boards.take(), suite.f.project.ID)
}

func TestCommentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CommentServiceTestSuite))
}
