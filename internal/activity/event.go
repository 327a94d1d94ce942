// Package activity records task activity and derives inbox notifications
// from mutating operations. Writes happen after the primary transaction has
// committed and never fail the operation that produced them.
package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"teamflow/backend/internal/models"

	"github.com/gofrs/uuid"
)

// Entry is one activity log row to append. At is when the change happened,
// not when the row is written.
type Entry struct {
	TaskID  uuid.UUID
	Details models.ActivityDetails
	At      time.Time
}

type entryJSON struct {
	TaskID  uuid.UUID             `json:"task_id"`
	Action  models.ActivityAction `json:"action"`
	Details json.RawMessage       `json:"details"`
	At      time.Time             `json:"at"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	action, raw, err := models.EncodeDetails(e.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{TaskID: e.TaskID, Action: action, Details: json.RawMessage(raw), At: e.At})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var v entryJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	details, err := models.DecodeDetails(v.Action, string(v.Details))
	if err != nil {
		return err
	}
	e.TaskID = v.TaskID
	e.Details = details
	e.At = v.At
	return nil
}

// Notice is one notification to create.
type Notice struct {
	Recipient uuid.UUID               `json:"recipient"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Link      string                  `json:"link,omitempty"`
	TaskID    *uuid.UUID              `json:"task_id,omitempty"`
	At        time.Time               `json:"at"`
}

// Event collects the side effects of a single operation.
type Event struct {
	ActorID uuid.UUID `json:"actor_id"`
	Entries []Entry   `json:"entries"`
	Notices []Notice  `json:"notices"`
}

func NewEvent(actorID uuid.UUID) *Event {
	return &Event{ActorID: actorID}
}

func (e *Event) Record(taskID uuid.UUID, details models.ActivityDetails) {
	e.Entries = append(e.Entries, Entry{TaskID: taskID, Details: details, At: time.Now().UTC()})
}

// Notify queues a notification unless the recipient is the actor or already
// has a notice of the same type in this event. It reports whether the
// notice was kept.
func (e *Event) Notify(recipient uuid.UUID, typ models.NotificationType, message, link string, taskID *uuid.UUID) bool {
	if recipient == uuid.Nil || recipient == e.ActorID {
		return false
	}
	for _, n := range e.Notices {
		if n.Recipient == recipient && n.Type == typ {
			return false
		}
	}
	e.Notices = append(e.Notices, Notice{
		Recipient: recipient,
		Type:      typ,
		Message:   message,
		Link:      link,
		TaskID:    taskID,
		At:        time.Now().UTC(),
	})
	return true
}

func (e *Event) Empty() bool {
	return e == nil || (len(e.Entries) == 0 && len(e.Notices) == 0)
}

// TaskIDs returns the distinct tasks the event touches, in first-seen order.
func (e *Event) TaskIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, entry := range e.Entries {
		if !seen[entry.TaskID] {
			seen[entry.TaskID] = true
			ids = append(ids, entry.TaskID)
		}
	}
	return ids
}

func ProjectLink(projectID uuid.UUID) string {
	return fmt.Sprintf("/dashboard/projects/%s", projectID)
}

func IdeasLink() string {
	return "/dashboard/ideas"
}

func AssignedMessage(taskTitle string) string {
	return fmt.Sprintf("You were assigned to %q", taskTitle)
}

func CompletedMessage(actorName, taskTitle string) string {
	return fmt.Sprintf("%s completed %q", actorName, taskTitle)
}

func CommentedMessage(actorName, taskTitle string) string {
	return fmt.Sprintf("%s commented on %q", actorName, taskTitle)
}

func IdeaCommentedMessage(actorName, ideaTitle string) string {
	return fmt.Sprintf("%s commented on your idea %q", actorName, ideaTitle)
}

// Excerpt truncates comment content for activity details.
func Excerpt(content string, limit int) string {
	r := []rune(content)
	if len(r) <= limit {
		return content
	}
	return string(r[:limit])
}
