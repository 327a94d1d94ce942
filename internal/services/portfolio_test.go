package services_test

import (
	"context"
	"testing"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/stretchr/testify/suite"
)

type PortfolioServiceTestSuite struct {
	suite.Suite
	f          *fixture
	ctx        context.Context
	portfolios *services.PortfolioServiceImpl
}

func (suite *PortfolioServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
	suite.ctx = context.Background()
	suite.portfolios = services.NewPortfolioService(suite.f.db)
}

func (suite *PortfolioServiceTestSuite) TestSummaryTotals() {
	owner := actorOf(suite.f.owner)
	portfolio, err := suite.portfolios.CreatePortfolio(suite.ctx, owner, suite.f.team.ID, services.PortfolioInput{Name: ptr("Q3 launches")})
	suite.Require().NoError(err)
	suite.Equal(models.DefaultProjectColor, portfolio.Color)

	done := testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Done", 0)
	suite.Require().NoError(suite.f.db.Model(&done).Update("completed", true).Error)
	testutil.CreateTask(suite.T(), suite.f.db, suite.f.todo(), suite.f.owner, "Open", 1)

	suite.Require().NoError(suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID))
	suite.Require().NoError(suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.other.ID))

	list, err := suite.portfolios.ListPortfolios(suite.ctx, actorOf(suite.f.member), suite.f.team.ID)
	suite.Require().NoError(err)
	suite.Require().Len(list, 1)
	suite.Require().Len(list[0].Projects, 2)
	suite.Equal(services.PortfolioProjectSummary{
		ProjectID: suite.f.project.ID, Name: "Website", Color: suite.f.project.Color, Total: 2, Completed: 1,
	}, list[0].Projects[0])
	suite.Zero(list[0].Projects[1].Total)
}

func (suite *PortfolioServiceTestSuite) TestAddProject_Errors() {
	owner := actorOf(suite.f.owner)
	portfolio, err := suite.portfolios.CreatePortfolio(suite.ctx, owner, suite.f.team.ID, services.PortfolioInput{Name: ptr("Q3")})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID))

	err = suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID)
	suite.Equal(apperr.KindConflict, apperr.KindOf(err))

	err = suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.foreign.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	err = suite.portfolios.AddProject(suite.ctx, actorOf(suite.f.outsider), portfolio.ID, suite.f.foreign.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	suite.Require().NoError(suite.portfolios.RemoveProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID))
	err = suite.portfolios.RemoveProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
}

func (suite *PortfolioServiceTestSuite) TestUpdateAndDelete() {
	owner := actorOf(suite.f.owner)
	portfolio, err := suite.portfolios.CreatePortfolio(suite.ctx, owner, suite.f.team.ID, services.PortfolioInput{Name: ptr("Q3")})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.portfolios.AddProject(suite.ctx, owner, portfolio.ID, suite.f.project.ID))

	updated, err := suite.portfolios.UpdatePortfolio(suite.ctx, actorOf(suite.f.member), portfolio.ID, services.PortfolioInput{
		Name: ptr("Q4"), Description: ptr("Holiday push"),
	})
	suite.Require().NoError(err)
	suite.Equal("Q4", updated.Name)
	suite.Equal("Holiday push", updated.Description)

	_, err = suite.portfolios.CreatePortfolio(suite.ctx, owner, suite.f.team.ID, services.PortfolioInput{})
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))

	suite.Require().NoError(suite.portfolios.DeletePortfolio(suite.ctx, owner, portfolio.ID))
	suite.Zero(testutil.Count(suite.T(), suite.f.db, &models.PortfolioProject{}, ""))
	suite.Equal(int64(1), testutil.Count(suite.T(), suite.f.db, &models.Project{}, "id = ?", suite.f.project.ID), "projects survive")
}

func TestPortfolioServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PortfolioServiceTestSuite))
}
