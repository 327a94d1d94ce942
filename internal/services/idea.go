package services

import (
	"context"
	"strings"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type IdeaService interface {
	ListIdeas(ctx context.Context, actor Actor, teamID uuid.UUID) ([]models.Idea, error)
	GetIdea(ctx context.Context, actor Actor, ideaID uuid.UUID) (*models.Idea, error)
	CreateIdea(ctx context.Context, actor Actor, teamID uuid.UUID, title, description string) (*models.Idea, error)
	UpdateIdea(ctx context.Context, actor Actor, ideaID uuid.UUID, title, description *string) (*models.Idea, error)
	DeleteIdea(ctx context.Context, actor Actor, ideaID uuid.UUID) error
	ToggleVote(ctx context.Context, actor Actor, ideaID uuid.UUID) (*models.Idea, error)
	AddIdeaComment(ctx context.Context, actor Actor, ideaID uuid.UUID, content string) (*models.IdeaComment, error)
	DeleteIdeaComment(ctx context.Context, actor Actor, commentID uuid.UUID) error
}

type IdeaServiceImpl struct {
	Deps
}

func NewIdeaService(deps Deps) *IdeaServiceImpl {
	return &IdeaServiceImpl{Deps: deps.withDefaults()}
}

func (s *IdeaServiceImpl) ListIdeas(ctx context.Context, actor Actor, teamID uuid.UUID) ([]models.Idea, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if _, err := requireMember(db, teamID, actor.ID); err != nil {
		return nil, err
	}

	var ideas []models.Idea
	err := db.Preload("Creator").
		Where("team_id = ?", teamID).
		Order("upvotes DESC").
		Order("created_at DESC").
		Find(&ideas).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := markVoted(db, actor.ID, ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

func markVoted(db *gorm.DB, userID uuid.UUID, ideas []models.Idea) error {
	if len(ideas) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}
	var voted []uuid.UUID
	if err := db.Model(&models.IdeaVote{}).Where("user_id = ? AND idea_id IN ?", userID, ids).Pluck("idea_id", &voted).Error; err != nil {
		return apperr.Internal(err)
	}
	set := make(map[uuid.UUID]bool, len(voted))
	for _, id := range voted {
		set[id] = true
	}
	for i := range ideas {
		ideas[i].VotedByMe = set[ideas[i].ID]
	}
	return nil
}

func (s *IdeaServiceImpl) ideaForActor(tx *gorm.DB, actor Actor, ideaID uuid.UUID) (*models.Idea, error) {
	var idea models.Idea
	if err := tx.First(&idea, "id = ?", ideaID).Error; err != nil {
		return nil, apperr.FromDB(err, "idea")
	}
	if _, err := requireMember(tx, idea.TeamID, actor.ID); err != nil {
		return nil, err
	}
	return &idea, nil
}

func (s *IdeaServiceImpl) GetIdea(ctx context.Context, actor Actor, ideaID uuid.UUID) (*models.Idea, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if _, err := s.ideaForActor(db, actor, ideaID); err != nil {
		return nil, err
	}
	var idea models.Idea
	err := db.Preload("Creator").
		Preload("Comments", orderBy("created_at ASC")).
		Preload("Comments.Author").
		First(&idea, "id = ?", ideaID).Error
	if err != nil {
		return nil, apperr.FromDB(err, "idea")
	}
	ideas := []models.Idea{idea}
	if err := markVoted(db, actor.ID, ideas); err != nil {
		return nil, err
	}
	return &ideas[0], nil
}

func (s *IdeaServiceImpl) CreateIdea(ctx context.Context, actor Actor, teamID uuid.UUID, title, description string) (*models.Idea, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)

	db := s.DB.WithContext(ctx)
	if _, err := requireMember(db, teamID, actor.ID); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, apperr.Validation("idea title is required")
	}
	idea := models.Idea{Title: title, Description: strings.TrimSpace(description), TeamID: teamID, CreatorID: actor.ID}
	if err := db.Create(&idea).Error; err != nil {
		return nil, apperr.FromDB(err, "idea")
	}
	return &idea, nil
}

func (s *IdeaServiceImpl) UpdateIdea(ctx context.Context, actor Actor, ideaID uuid.UUID, title, description *string) (*models.Idea, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var idea *models.Idea
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		idea, err = s.ideaForActor(tx, actor, ideaID)
		if err != nil {
			return err
		}
		if idea.CreatorID != actor.ID {
			return apperr.Forbidden("only the creator can edit an idea")
		}
		changes := map[string]any{}
		if title != nil {
			t := strings.TrimSpace(*title)
			if t == "" {
				return apperr.Validation("idea title is required")
			}
			idea.Title = t
			changes["title"] = t
		}
		if description != nil {
			idea.Description = strings.TrimSpace(*description)
			changes["description"] = idea.Description
		}
		if len(changes) == 0 {
			return nil
		}
		return tx.Model(idea).Updates(changes).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "idea")
	}
	return idea, nil
}

func (s *IdeaServiceImpl) DeleteIdea(ctx context.Context, actor Actor, ideaID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idea, err := s.ideaForActor(tx, actor, ideaID)
		if err != nil {
			return err
		}
		if idea.CreatorID != actor.ID {
			return apperr.Forbidden("only the creator can delete an idea")
		}
		if err := tx.Where("idea_id = ?", idea.ID).Delete(&models.IdeaVote{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Where("idea_id = ?", idea.ID).Delete(&models.IdeaComment{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Delete(idea).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
}

// ToggleVote adds or removes the actor's vote. The vote row and the
// counter change in the same transaction.
func (s *IdeaServiceImpl) ToggleVote(ctx context.Context, actor Actor, ideaID uuid.UUID) (*models.Idea, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var idea *models.Idea
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		idea, err = s.ideaForActor(tx, actor, ideaID)
		if err != nil {
			return err
		}

		res := tx.Where("idea_id = ? AND user_id = ?", idea.ID, actor.ID).Delete(&models.IdeaVote{})
		if res.Error != nil {
			return apperr.Internal(res.Error)
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.IdeaVote{IdeaID: idea.ID, UserID: actor.ID}).Error; err != nil {
				return apperr.FromDB(err, "vote")
			}
			delta = 1
		}
		if err := tx.Model(&models.Idea{}).Where("id = ?", idea.ID).Update("upvotes", gorm.Expr("upvotes + ?", delta)).Error; err != nil {
			return apperr.Internal(err)
		}
		idea.Upvotes += delta
		idea.VotedByMe = delta > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idea, nil
}

func (s *IdeaServiceImpl) AddIdeaComment(ctx context.Context, actor Actor, ideaID uuid.UUID, content string) (*models.IdeaComment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)

	var comment models.IdeaComment
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idea, err := s.ideaForActor(tx, actor, ideaID)
		if err != nil {
			return err
		}
		if content == "" {
			return apperr.Validation("comment content is required")
		}
		comment = models.IdeaComment{Content: content, IdeaID: idea.ID, AuthorID: actor.ID}
		if err := tx.Create(&comment).Error; err != nil {
			return apperr.FromDB(err, "idea comment")
		}
		ev.Notify(idea.CreatorID, models.NotificationCommented, activity.IdeaCommentedMessage(actor.Name, idea.Title), activity.IdeasLink(), nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev)
	return &comment, nil
}

func (s *IdeaServiceImpl) DeleteIdeaComment(ctx context.Context, actor Actor, commentID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.IdeaComment
		if err := tx.First(&comment, "id = ?", commentID).Error; err != nil {
			return apperr.FromDB(err, "idea comment")
		}
		if _, err := s.ideaForActor(tx, actor, comment.IdeaID); err != nil {
			return err
		}
		if comment.AuthorID != actor.ID {
			return apperr.Forbidden("only the author can delete a comment")
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
}
