package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/config"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultTeamSuffix  = "'s Team"
	defaultProjectName = "My First Project"
)

type RegistrationRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseAccessToken(token string) (Actor, error)
}

type AuthServiceImpl struct {
	db  *gorm.DB
	cfg config.AuthConfig
	now func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.AuthConfig) *AuthServiceImpl {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BCryptCost < bcrypt.MinCost || cfg.BCryptCost > bcrypt.MaxCost {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{db: db, cfg: cfg, now: time.Now}
}

func invalidCredentials() error {
	return &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "invalid email or password"}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user with a personal team and a starter project.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if len(req.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	db := s.db.WithContext(ctx)
	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BCryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := models.User{Name: name, Email: email, PasswordHash: string(hash)}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperr.Internal(tx.Error)
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return nil, apperr.FromDB(err, "user")
	}

	team := models.Team{Name: name + defaultTeamSuffix}
	if err := tx.Create(&team).Error; err != nil {
		tx.Rollback()
		return nil, apperr.Internal(err)
	}
	if err := tx.Create(&models.TeamMember{TeamID: team.ID, UserID: user.ID, Role: models.RoleOwner}).Error; err != nil {
		tx.Rollback()
		return nil, apperr.Internal(err)
	}
	if _, err := createProject(tx, team.ID, user.ID, CreateProjectInput{Name: defaultProjectName}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, apperr.Internal(err)
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, invalidCredentials()
	}

	pair, err := s.issue(db, &user)
	if err != nil {
		return nil, err
	}
	pair.User = &user
	return pair, nil
}

// Refresh rotates a refresh token: the old one is revoked as the new pair
// is issued.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	id, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil, apperr.Unauthenticated()
	}

	var pair *TokenPair
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		if err := tx.Where("refresh_token = ?", id).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Unauthenticated()
			}
			return apperr.Internal(err)
		}
		if err := tx.Delete(&token).Error; err != nil {
			return apperr.Internal(err)
		}
		if token.Expired(s.now()) {
			return nil
		}

		var user models.User
		if err := tx.First(&user, "id = ?", token.UserID).Error; err != nil {
			return apperr.FromDB(err, "user")
		}
		pair, err = s.issue(tx, &user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, apperr.Unauthenticated()
	}
	return pair, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	id, err := uuid.FromString(refreshToken)
	if err != nil {
		return apperr.Validation("invalid refresh token")
	}
	if err := s.db.WithContext(ctx).Where("refresh_token = ?", id).Delete(&models.Token{}).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *AuthServiceImpl) issue(db *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"name":    user.Name,
		"iss":     s.cfg.Issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(s.cfg.AccessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, apperr.Internal(err)
	}

	token := models.Token{
		UserID:       user.ID,
		RefreshToken: uuid.Must(uuid.NewV4()),
		ExpiresAt:    now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := db.Create(&token).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: token.RefreshToken.String(),
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// ParseAccessToken verifies an access token and resolves the actor it was
// issued to.
func (s *AuthServiceImpl) ParseAccessToken(tokenString string) (Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return Actor{}, &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "invalid token", Err: err}
	}

	raw, _ := claims["user_id"].(string)
	id, err := uuid.FromString(raw)
	if err != nil || id == uuid.Nil {
		return Actor{}, &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "invalid token", Err: fmt.Errorf("user_id claim: %q", raw)}
	}
	name, _ := claims["name"].(string)
	return Actor{ID: id, Name: name}, nil
}
