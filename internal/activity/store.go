package activity

import (
	"context"
	"fmt"
	"time"

	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/models"

	"gorm.io/gorm"
)

// Delivery pushes created notifications to an out-of-band channel such as
// email.
type Delivery interface {
	Deliver(ctx context.Context, notifications []models.Notification) error
}

type Store struct {
	db       *gorm.DB
	delivery Delivery
	logger   *logging.Logger
}

func NewStore(db *gorm.DB, logger *logging.Logger) *Store {
	return &Store{db: db, logger: logger.WithComponent("activity")}
}

// WithDelivery returns a copy of the store that hands new notifications to d.
func (s *Store) WithDelivery(d Delivery) *Store {
	clone := *s
	clone.delivery = d
	return &clone
}

// Write appends every entry and notification of ev in one transaction. Rows
// are stamped with the time the event recorded them.
func (s *Store) Write(ctx context.Context, ev Event) ([]models.Notification, error) {
	if ev.Empty() {
		return nil, nil
	}
	now := time.Now().UTC()
	stamp := func(at time.Time) time.Time {
		if at.IsZero() {
			return now
		}
		return at
	}

	logs := make([]models.ActivityLog, 0, len(ev.Entries))
	for _, entry := range ev.Entries {
		action, raw, err := models.EncodeDetails(entry.Details)
		if err != nil {
			return nil, err
		}
		logs = append(logs, models.ActivityLog{
			Action:    action,
			Details:   raw,
			TaskID:    entry.TaskID,
			UserID:    ev.ActorID,
			CreatedAt: stamp(entry.At),
		})
	}

	notifications := make([]models.Notification, 0, len(ev.Notices))
	for _, n := range ev.Notices {
		notifications = append(notifications, models.Notification{
			Type:      n.Type,
			Message:   n.Message,
			Link:      n.Link,
			UserID:    n.Recipient,
			TaskID:    n.TaskID,
			CreatedAt: stamp(n.At),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(logs) > 0 {
			if err := tx.Create(&logs).Error; err != nil {
				return fmt.Errorf("create activity logs: %w", err)
			}
		}
		if len(notifications) > 0 {
			if err := tx.Create(&notifications).Error; err != nil {
				return fmt.Errorf("create notifications: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.delivery != nil && len(notifications) > 0 {
		if err := s.delivery.Deliver(ctx, notifications); err != nil {
			s.logger.Warn("notification delivery failed", "count", len(notifications), "error", err)
		}
	}
	return notifications, nil
}
