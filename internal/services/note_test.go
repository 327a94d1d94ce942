package services_test

import (
	"context"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/services"

	"github.com/stretchr/testify/suite"
)

type NoteServiceTestSuite struct {
	suite.Suite
	f     *fixture
	ctx   context.Context
	notes *services.NoteServiceImpl
}

func (suite *NoteServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.notes = services.NewNoteService(suite.f.db)
}

func (suite *NoteServiceTestSuite) TestPinnedFirst() {
	me := actorOf(suite.f.member)
	first, err := suite.notes.CreateNote(suite.ctx, me, "", "scratch")
	suite.Require().NoError(err)
	suite.Equal("Untitled", first.Title)
	_, err = suite.notes.CreateNote(suite.ctx, me, "Later", "")
	suite.Require().NoError(err)

	pinned, err := suite.notes.TogglePin(suite.ctx, me, first.ID)
	suite.Require().NoError(err)
	suite.True(pinned.Pinned)

	list, err := suite.notes.ListNotes(suite.ctx, me)
	suite.Require().NoError(err)
	suite.Require().Len(list, 2)
	suite.Equal(first.ID, list[0].ID)

	others, err := suite.notes.ListNotes(suite.ctx, actorOf(suite.f.owner))
	suite.Require().NoError(err)
	suite.Empty(others)
}

func (suite *NoteServiceTestSuite) TestPrivateToAuthor() {
	note, err := suite.notes.CreateNote(suite.ctx, actorOf(suite.f.member), "Mine", "")
	suite.Require().NoError(err)
	owner := actorOf(suite.f.owner)

	_, err = suite.notes.UpdateNote(suite.ctx, owner, note.ID, ptr("Theirs"), nil)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
	_, err = suite.notes.TogglePin(suite.ctx, owner, note.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
	suite.Equal(apperr.KindNotFound, apperr.KindOf(suite.notes.DeleteNote(suite.ctx, owner, note.ID)))

	updated, err := suite.notes.UpdateNote(suite.ctx, actorOf(suite.f.member), note.ID, nil, ptr("body"))
	suite.Require().NoError(err)
	suite.Equal("Mine", updated.Title)
	suite.Equal("body", updated.Content)

	_, err = suite.notes.UpdateNote(suite.ctx, actorOf(suite.f.member), note.ID, ptr(" "), nil)
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))

	suite.Require().NoError(suite.notes.DeleteNote(suite.ctx, actorOf(suite.f.member), note.ID))
}

func TestNoteServiceTestSuite(t *testing.T) {
	suite.Run(t, new(NoteServiceTestSuite))
}
