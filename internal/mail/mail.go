// Package mail sends notification emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"html"
	"strings"

	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m
}

// Send dials per message; gomail has no context support so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.compose(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// Notifier turns inbox notifications into emails for their recipients.
type Notifier struct {
	db      *gorm.DB
	sender  Sender
	baseURL string
}

func NewNotifier(db *gorm.DB, sender Sender, baseURL string) *Notifier {
	return &Notifier{db: db, sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *Notifier) Deliver(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(notifications))
	for _, notification := range notifications {
		ids = append(ids, notification.UserID)
	}
	var users []models.User
	if err := n.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var errs []string
	for _, notification := range notifications {
		user, ok := byID[notification.UserID]
		if !ok || user.Email == "" {
			continue
		}
		if err := n.sender.Send(ctx, n.Render(user, notification)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d emails failed: %s", len(errs), len(notifications), strings.Join(errs, "; "))
	}
	return nil
}

func (n *Notifier) Render(user models.User, notification models.Notification) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hi %s,</p>\n", html.EscapeString(user.Name))
	fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(notification.Message))
	if notification.Link != "" {
		href := n.baseURL + notification.Link
		fmt.Fprintf(&body, "<p><a href=\"%s\">Open in Teamflow</a></p>\n", html.EscapeString(href))
	}
	return Message{
		To:      user.Email,
		Subject: subjects[notification.Type],
		HTML:    body.String(),
	}
}

var subjects = map[models.NotificationType]string{
	models.NotificationAssigned:  "You have a new task",
	models.NotificationCompleted: "A task you created was completed",
	models.NotificationCommented: "New comment",
}
