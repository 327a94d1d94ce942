package services_test

import (
	"context"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
)

type NotificationServiceTestSuite struct {
	suite.Suite
	f     *fixture
	ctx   context.Context
	inbox *services.NotificationServiceImpl
	mine  []models.Notification
}

func (suite *NotificationServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.inbox = services.NewNotificationService(suite.f.db)

	suite.mine = nil
	for _, msg := range []string{"first", "second", "third"} {
		n := models.Notification{Type: models.NotificationAssigned, Message: msg, UserID: suite.f.member.ID}
		suite.Require().NoError(suite.f.db.Create(&n).Error)
		suite.mine = append(suite.mine, n)
	}
	other := models.Notification{Type: models.NotificationCommented, Message: "not yours", UserID: suite.f.owner.ID}
	suite.Require().NoError(suite.f.db.Create(&other).Error)
}

func (suite *NotificationServiceTestSuite) TestList_OnlyOwnNotifications() {
	list, err := suite.inbox.List(suite.ctx, actorOf(suite.f.member))
	suite.Require().NoError(err)
	suite.Len(list, 3)
	for _, n := range list {
		suite.Equal(suite.f.member.ID, n.UserID)
	}
}

func (suite *NotificationServiceTestSuite) TestMarkRead() {
	member := actorOf(suite.f.member)
	suite.Require().NoError(suite.inbox.MarkRead(suite.ctx, member, suite.mine[0].ID))

	unread, err := suite.inbox.UnreadCount(suite.ctx, member)
	suite.Require().NoError(err)
	suite.Equal(int64(2), unread)

	n, err := suite.inbox.MarkAllRead(suite.ctx, member)
	suite.Require().NoError(err)
	suite.Equal(int64(2), n)

	unread, err = suite.inbox.UnreadCount(suite.ctx, member)
	suite.Require().NoError(err)
	suite.Zero(unread)

	owner, err := suite.inbox.UnreadCount(suite.ctx, actorOf(suite.f.owner))
	suite.Require().NoError(err)
	suite.Equal(int64(1), owner, "other inboxes are untouched")
}

func (suite *NotificationServiceTestSuite) TestOtherUsersNotificationsAreNotFound() {
	owner := actorOf(suite.f.owner)

	err := suite.inbox.MarkRead(suite.ctx, owner, suite.mine[0].ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	err = suite.inbox.Delete(suite.ctx, owner, suite.mine[0].ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))

	err = suite.inbox.Delete(suite.ctx, owner, uuid.Must(uuid.NewV4()))
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
}

func (suite *NotificationServiceTestSuite) TestDelete() {
	suite.Require().NoError(suite.inbox.Delete(suite.ctx, actorOf(suite.f.member), suite.mine[1].ID))
	suite.Equal(int64(2), testutil.Count(suite.T(), suite.f.db, &models.Notification{}, "user_id = ?", suite.f.member.ID))
}

func (suite *NotificationServiceTestSuite) TestRequiresActor() {
	_, err := suite.inbox.List(suite.ctx, services.Actor{})
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestNotificationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}
