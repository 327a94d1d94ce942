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

const commentExcerptLength = 100

type CommentService interface {
	AddComment(ctx context.Context, actor Actor, taskID uuid.UUID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor Actor, commentID uuid.UUID) error
	AddAttachment(ctx context.Context, actor Actor, taskID uuid.UUID, in AttachmentInput) (*models.Attachment, error)
	DeleteAttachment(ctx context.Context, actor Actor, attachmentID uuid.UUID) error
}

type AttachmentInput struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type CommentServiceImpl struct {
	Deps
}

func NewCommentService(deps Deps) *CommentServiceImpl {
	return &CommentServiceImpl{Deps: deps.withDefaults()}
}

// AddComment notifies the task's creator and assignee, once each.
func (s *CommentServiceImpl) AddComment(ctx context.Context, actor Actor, taskID uuid.UUID, content string) (*models.Comment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)

	var comment models.Comment
	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		if content == "" {
			return apperr.Validation("comment content is required")
		}

		comment = models.Comment{Content: content, TaskID: task.ID, AuthorID: actor.ID}
		if err := tx.Create(&comment).Error; err != nil {
			return apperr.FromDB(err, "comment")
		}

		ev.Record(task.ID, models.CommentedDetails{Content: activity.Excerpt(content, commentExcerptLength)})
		message := activity.CommentedMessage(actor.Name, task.Title)
		link := activity.ProjectLink(task.ProjectID)
		ev.Notify(task.CreatorID, models.NotificationCommented, message, link, &task.ID)
		if task.AssigneeID != nil {
			ev.Notify(*task.AssigneeID, models.NotificationCommented, message, link, &task.ID)
		}

		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, boards...)
	return &comment, nil
}

func (s *CommentServiceImpl) DeleteComment(ctx context.Context, actor Actor, commentID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, "id = ?", commentID).Error; err != nil {
			return apperr.FromDB(err, "comment")
		}
		task, err := taskForActor(tx, actor, comment.TaskID)
		if err != nil {
			return err
		}
		if comment.AuthorID != actor.ID {
			return apperr.Forbidden("only the author can delete a comment")
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return apperr.Internal(err)
		}
		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}

func (s *CommentServiceImpl) AddAttachment(ctx context.Context, actor Actor, taskID uuid.UUID, in AttachmentInput) (*models.Attachment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var attachment models.Attachment
	var boards []uuid.UUID
	ev := activity.NewEvent(actor.ID)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := taskForActor(tx, actor, taskID)
		if err != nil {
			return err
		}
		filename := strings.TrimSpace(in.Filename)
		url := strings.TrimSpace(in.URL)
		if filename == "" || url == "" {
			return apperr.Validation("filename and url are required")
		}
		if in.Size < 0 {
			return apperr.Validation("size must not be negative")
		}

		attachment = models.Attachment{
			Filename:     filename,
			URL:          url,
			Size:         in.Size,
			MimeType:     in.MimeType,
			TaskID:       task.ID,
			UploadedByID: actor.ID,
		}
		if err := tx.Create(&attachment).Error; err != nil {
			return apperr.FromDB(err, "attachment")
		}
		ev.Record(task.ID, models.AttachmentAddedDetails{Filename: filename})

		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, ev, boards...)
	return &attachment, nil
}

func (s *CommentServiceImpl) DeleteAttachment(ctx context.Context, actor Actor, attachmentID uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}

	var boards []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attachment models.Attachment
		if err := tx.First(&attachment, "id = ?", attachmentID).Error; err != nil {
			return apperr.FromDB(err, "attachment")
		}
		task, err := taskForActor(tx, actor, attachment.TaskID)
		if err != nil {
			return err
		}
		if attachment.UploadedByID != actor.ID {
			return apperr.Forbidden("only the uploader can delete an attachment")
		}
		if err := tx.Delete(&attachment).Error; err != nil {
			return apperr.Internal(err)
		}
		boards, err = boardProjects(tx, task)
		return err
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, nil, boards...)
	return nil
}
