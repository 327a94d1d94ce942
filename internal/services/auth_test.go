package services_test

import (
	"context"
	"testing"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/config"
	"teamflow/backend/internal/models"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthServiceTestSuite struct {
	suite.Suite
	db   *gorm.DB
	ctx  context.Context
	auth *services.AuthServiceImpl
	now  time.Time
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.ctx = context.Background()
	suite.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	suite.auth = services.NewAuthService(suite.db, config.AuthConfig{
		JWTSecret:       "test-secret",
		Issuer:          "teamflow-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		BCryptCost:      bcrypt.MinCost,
	})
	suite.auth.SetClock(func() time.Time { return suite.now })
}

func (suite *AuthServiceTestSuite) register(email string) *models.User {
	user, err := suite.auth.Register(suite.ctx, services.RegistrationRequest{
		Name:     "Ada Lovelace",
		Email:    email,
		Password: "correct horse",
	})
	suite.Require().NoError(err)
	return user
}

func (suite *AuthServiceTestSuite) TestRegister_CreatesWorkspace() {
	user := suite.register("  Ada@Example.com ")

	suite.Equal("ada@example.com", user.Email)
	suite.NotEqual("correct horse", user.PasswordHash)
	suite.True(services.VerifyPassword(user.PasswordHash, "correct horse"))

	var member models.TeamMember
	suite.Require().NoError(suite.db.Preload("Team").Where("user_id = ?", user.ID).First(&member).Error)
	suite.Equal(models.RoleOwner, member.Role)
	suite.Require().NotNil(member.Team)
	suite.Equal("Ada Lovelace's Team", member.Team.Name)

	var project models.Project
	suite.Require().NoError(suite.db.Where("team_id = ?", member.TeamID).First(&project).Error)
	suite.Equal("My First Project", project.Name)
	suite.Equal(int64(len(models.DefaultSectionNames)),
		testutil.Count(suite.T(), suite.db, &models.Section{}, "project_id = ?", project.ID))
}

func (suite *AuthServiceTestSuite) TestRegister_Validation() {
	suite.register("ada@example.com")

	tests := []struct {
		name string
		req  services.RegistrationRequest
		kind apperr.Kind
	}{
		{"blank name", services.RegistrationRequest{Name: " ", Email: "x@example.com", Password: "long enough"}, apperr.KindValidation},
		{"bad email", services.RegistrationRequest{Name: "X", Email: "not-an-email", Password: "long enough"}, apperr.KindValidation},
		{"short password", services.RegistrationRequest{Name: "X", Email: "x@example.com", Password: "short"}, apperr.KindValidation},
		{"duplicate email", services.RegistrationRequest{Name: "X", Email: "ADA@example.com", Password: "long enough"}, apperr.KindConflict},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.auth.Register(suite.ctx, tt.req)
			suite.Equal(tt.kind, apperr.KindOf(err))
		})
	}
	suite.Equal(int64(1), testutil.Count(suite.T(), suite.db, &models.User{}, ""))
}

func (suite *AuthServiceTestSuite) TestLogin_IssuesVerifiableToken() {
	user := suite.register("ada@example.com")

	pair, err := suite.auth.Login(suite.ctx, "ADA@example.com", "correct horse")
	suite.Require().NoError(err)
	suite.Equal(int64(900), pair.ExpiresIn)
	suite.Require().NotNil(pair.User)
	suite.Equal(user.ID, pair.User.ID)

	actor, err := suite.auth.ParseAccessToken(pair.AccessToken)
	suite.Require().NoError(err)
	suite.Equal(user.ID, actor.ID)
	suite.Equal("Ada Lovelace", actor.Name)
}

func (suite *AuthServiceTestSuite) TestLogin_WrongCredentials() {
	suite.register("ada@example.com")

	_, err := suite.auth.Login(suite.ctx, "ada@example.com", "wrong password")
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))

	_, err = suite.auth.Login(suite.ctx, "nobody@example.com", "correct horse")
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))
	suite.EqualError(err, "invalid email or password")
}

func (suite *AuthServiceTestSuite) TestParseAccessToken_Rejects() {
	suite.register("ada@example.com")
	pair, err := suite.auth.Login(suite.ctx, "ada@example.com", "correct horse")
	suite.Require().NoError(err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": pair.User.ID.String(),
		"iss":     "teamflow-test",
		"exp":     suite.now.Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	suite.Require().NoError(err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": pair.User.ID.String(),
		"iss":     "teamflow-test",
	}).SignedString([]byte("test-secret"))
	suite.Require().NoError(err)

	for name, token := range map[string]string{
		"garbage":   "not.a.token",
		"forged":    forged,
		"no expiry": noExpiry,
	} {
		_, err := suite.auth.ParseAccessToken(token)
		suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err), name)
	}

	suite.now = suite.now.Add(16 * time.Minute)
	_, err = suite.auth.ParseAccessToken(pair.AccessToken)
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err), "expired")
}

func (suite *AuthServiceTestSuite) TestRefresh_RotatesToken() {
	suite.register("ada@example.com")
	first, err := suite.auth.Login(suite.ctx, "ada@example.com", "correct horse")
	suite.Require().NoError(err)

	second, err := suite.auth.Refresh(suite.ctx, first.RefreshToken)
	suite.Require().NoError(err)
	suite.NotEqual(first.RefreshToken, second.RefreshToken)

	_, err = suite.auth.Refresh(suite.ctx, first.RefreshToken)
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err), "old token is revoked")
	suite.Equal(int64(1), testutil.Count(suite.T(), suite.db, &models.Token{}, ""))
}

func (suite *AuthServiceTestSuite) TestRefresh_Expired() {
	suite.register("ada@example.com")
	pair, err := suite.auth.Login(suite.ctx, "ada@example.com", "correct horse")
	suite.Require().NoError(err)

	suite.now = suite.now.Add(25 * time.Hour)
	_, err = suite.auth.Refresh(suite.ctx, pair.RefreshToken)
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))
	suite.Zero(testutil.Count(suite.T(), suite.db, &models.Token{}, ""))

	_, err = suite.auth.Refresh(suite.ctx, "not-a-uuid")
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))
}

func (suite *AuthServiceTestSuite) TestLogout() {
	suite.register("ada@example.com")
	pair, err := suite.auth.Login(suite.ctx, "ada@example.com", "correct horse")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.auth.Logout(suite.ctx, pair.RefreshToken))
	_, err = suite.auth.Refresh(suite.ctx, pair.RefreshToken)
	suite.Equal(apperr.KindUnauthenticated, apperr.KindOf(err))

	suite.Equal(apperr.KindValidation, apperr.KindOf(suite.auth.Logout(suite.ctx, "nope")))
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
