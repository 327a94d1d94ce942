package services

import (
	"context"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const inboxLimit = 50

// NotificationService is the recipient's inbox. Notifications of other
// users are reported as not found.
type NotificationService interface {
	List(ctx context.Context, actor Actor) ([]models.Notification, error)
	UnreadCount(ctx context.Context, actor Actor) (int64, error)
	MarkRead(ctx context.Context, actor Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, actor Actor) (int64, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
}

type NotificationServiceImpl struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationServiceImpl {
	return &NotificationServiceImpl{db: db}
}

func (s *NotificationServiceImpl) List(ctx context.Context, actor Actor) ([]models.Notification, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", actor.ID).
		Order("created_at DESC").
		Limit(inboxLimit).
		Find(&notifications).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return notifications, nil
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	if err := actor.validate(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", actor.ID, false).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, actor.ID).
		Update("read", true)
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	if err := actor.validate(); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", actor.ID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, apperr.Internal(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := actor.validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.ID).Delete(&models.Notification{})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}
