package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TeamService interface {
	ListTeams(ctx context.Context, actor Actor) ([]models.Team, error)
	CreateTeam(ctx context.Context, actor Actor, name string) (*models.Team, error)
	InviteMember(ctx context.Context, actor Actor, teamID uuid.UUID, email string, role models.TeamRole) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, actor Actor, teamID, userID uuid.UUID) error
	DeleteTeam(ctx context.Context, actor Actor, teamID uuid.UUID) error
}

type TeamServiceImpl struct {
	Deps
}

func NewTeamService(deps Deps) *TeamServiceImpl {
	return &TeamServiceImpl{Deps: deps.withDefaults()}
}

func (s *TeamServiceImpl) ListTeams(ctx context.Context, actor Actor) ([]models.Team, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var teams []models.Team
	err := s.DB.WithContext(ctx).
		Preload("Members", orderBy("created_at ASC")).
		Preload("Members.User").
		Where("id IN (?)", s.DB.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", actor.ID)).
		Order("name ASC").
		Find(&teams).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return teams, nil
}

func (s *TeamServiceImpl) CreateTeam(ctx context.Context, actor Actor, name string) (*models.Team, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}

	team := models.Team{Name: name}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return apperr.Internal(err)
		}
		owner := models.TeamMember{TeamID: team.ID, UserID: actor.ID, Role: models.RoleOwner}
		if err := tx.Create(&owner).Error; err != nil {
			return apperr.Internal(err)
		}
		team.Members = []models.TeamMember{owner}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TeamServiceImpl) InviteMember(ctx context.Context, actor Actor, teamID uuid.UUID, email string, role models.TeamRole) (*models.TeamMember, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() || role == models.RoleOwner {
		return nil, apperr.Validation("invalid role %q", role)
	}

	var member models.TeamMember
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireManager(tx, actor, teamID); err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
			return apperr.FromDB(err, "user")
		}
		existing, err := membership(tx, teamID, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("user is already a member of this team")
		}

		member = models.TeamMember{TeamID: teamID, UserID: user.ID, Role: role}
		if err := tx.Create(&member).Error; err != nil {
			return apperr.FromDB(err, "team member")
		}
		member.User = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *TeamServiceImpl) RemoveMember(ctx context.Context, actor Actor, teamID, userID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	var projectIDs []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireManager(tx, actor, teamID); err != nil {
			return err
		}
		target, err := membership(tx, teamID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("team member")
		}
		if target.Role == models.RoleOwner {
			return apperr.InvalidOperation("the team owner cannot be removed")
		}
		if err := tx.Delete(target).Error; err != nil {
			return apperr.Internal(err)
		}

		// Work assigned inside the team goes back to unassigned.
		if err := tx.Model(&models.Project{}).Where("team_id = ?", teamID).Pluck("id", &projectIDs).Error; err != nil {
			return apperr.Internal(err)
		}
		if len(projectIDs) == 0 {
			return nil
		}
		teamTasks := tx.Model(&models.Task{}).Select("id").Where("project_id IN ?", projectIDs)
		if err := tx.Model(&models.Subtask{}).
			Where("assignee_id = ? AND task_id IN (?)", userID, teamTasks).
			Update("assignee_id", nil).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Model(&models.Task{}).
			Where("assignee_id = ? AND project_id IN ?", userID, projectIDs).
			Update("assignee_id", nil).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Links never cross teams, so the team's own boards are all that change.
	s.afterCommit(ctx, nil, projectIDs...)
	return nil
}

// DeleteTeam removes the team with its projects, ideas and portfolios.
func (s *TeamServiceImpl) DeleteTeam(ctx context.Context, actor Actor, teamID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var projectIDs []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, "id = ?", teamID).Error; err != nil {
			return apperr.FromDB(err, "team")
		}
		m, err := requireMember(tx, team.ID, actor.ID)
		if err != nil {
			return err
		}
		if m.Role != models.RoleOwner {
			return apperr.Forbidden("only the team owner can delete the team")
		}

		if err := tx.Model(&models.Project{}).Where("team_id = ?", team.ID).Pluck("id", &projectIDs).Error; err != nil {
			return apperr.Internal(err)
		}
		if _, err := deleteProjects(tx, projectIDs); err != nil {
			return err
		}

		ideas := tx.Model(&models.Idea{}).Select("id").Where("team_id = ?", team.ID)
		if err := tx.Where("idea_id IN (?)", ideas).Delete(&models.IdeaVote{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Where("idea_id IN (?)", ideas).Delete(&models.IdeaComment{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.Idea{}).Error; err != nil {
			return apperr.Internal(err)
		}

		portfolios := tx.Model(&models.Portfolio{}).Select("id").Where("team_id = ?", team.ID)
		if err := tx.Where("portfolio_id IN (?)", portfolios).Delete(&models.PortfolioProject{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.Portfolio{}).Error; err != nil {
			return apperr.Internal(err)
		}

		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Delete(&team).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, projectIDs...)
	return nil
}

func (s *TeamServiceImpl) requireManager(tx *gorm.DB, actor Actor, teamID uuid.UUID) error {
	var team models.Team
	if err := tx.First(&team, "id = ?", teamID).Error; err != nil {
		return apperr.FromDB(err, "team")
	}
	m, err := requireMember(tx, teamID, actor.ID)
	if err != nil {
		return err
	}
	if !m.Role.CanManage() {
		return apperr.Forbidden("only team owners and admins can manage members")
	}
	return nil
}
