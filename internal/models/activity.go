package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ActivityAction string

const (
	ActionCreated            ActivityAction = "created"
	ActionCompleted          ActivityAction = "completed"
	ActionUncompleted        ActivityAction = "uncompleted"
	ActionAssigned           ActivityAction = "assigned"
	ActionMoved              ActivityAction = "moved"
	ActionUpdated            ActivityAction = "updated"
	ActionCommented          ActivityAction = "commented"
	ActionSubtaskAdded       ActivityAction = "subtask_added"
	ActionSubtaskCompleted   ActivityAction = "subtask_completed"
	ActionSubtaskUncompleted ActivityAction = "subtask_uncompleted"
	ActionAttachmentAdded    ActivityAction = "attachment_added"
	ActionAddedToProject     ActivityAction = "added_to_project"
	ActionRemovedFromProject ActivityAction = "removed_from_project"
)

// ActivityLog rows are append-only.
type ActivityLog struct {
	ID        uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	Action    ActivityAction `json:"action" gorm:"not null"`
	Details   string         `json:"-" gorm:"type:text"`
	TaskID    uuid.UUID      `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`

	Task *Task `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Payload decodes the stored details into their typed variant.
func (a *ActivityLog) Payload() (ActivityDetails, error) {
	return DecodeDetails(a.Action, a.Details)
}

type NotificationType string

const (
	NotificationAssigned  NotificationType = "assigned"
	NotificationCompleted NotificationType = "completed"
	NotificationCommented NotificationType = "commented"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	Type      NotificationType `json:"type" gorm:"not null"`
	Message   string           `json:"message" gorm:"not null"`
	Link      string           `json:"link,omitempty"`
	UserID    uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	TaskID    *uuid.UUID       `json:"task_id,omitempty" gorm:"type:uuid;index"`
	Read      bool             `json:"read" gorm:"not null;default:false"`
	CreatedAt time.Time        `json:"created_at" gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

// ActivityDetails is the typed payload of one activity action. Each
// variant belongs to exactly one action.
type ActivityDetails interface {
	Action() ActivityAction
}

type CreatedDetails struct {
	Title string `json:"title"`
}

type CompletedDetails struct{}

type UncompletedDetails struct{}

type AssignedDetails struct {
	AssigneeID         *uuid.UUID `json:"assignee_id"`
	PreviousAssigneeID *uuid.UUID `json:"previous_assignee_id,omitempty"`
}

type MovedDetails struct {
	FromSectionID uuid.UUID `json:"from_section_id"`
	ToSectionID   uuid.UUID `json:"to_section_id"`
	Position      int       `json:"position"`
}

type UpdatedDetails struct {
	Fields []string `json:"fields"`
}

type CommentedDetails struct {
	Content string `json:"content"`
}

type SubtaskAddedDetails struct {
	SubtaskTitle string `json:"subtask_title"`
}

type SubtaskCompletedDetails struct {
	SubtaskTitle string `json:"subtask_title"`
}

type SubtaskUncompletedDetails struct {
	SubtaskTitle string `json:"subtask_title"`
}

type AttachmentAddedDetails struct {
	Filename string `json:"filename"`
}

type AddedToProjectDetails struct {
	ProjectID uuid.UUID `json:"project_id"`
	SectionID uuid.UUID `json:"section_id"`
}

type RemovedFromProjectDetails struct {
	ProjectID uuid.UUID `json:"project_id"`
}

func (CreatedDetails) Action() ActivityAction            { return ActionCreated }
func (CompletedDetails) Action() ActivityAction          { return ActionCompleted }
func (UncompletedDetails) Action() ActivityAction        { return ActionUncompleted }
func (AssignedDetails) Action() ActivityAction           { return ActionAssigned }
func (MovedDetails) Action() ActivityAction              { return ActionMoved }
func (UpdatedDetails) Action() ActivityAction            { return ActionUpdated }
func (CommentedDetails) Action() ActivityAction          { return ActionCommented }
func (SubtaskAddedDetails) Action() ActivityAction       { return ActionSubtaskAdded }
func (SubtaskCompletedDetails) Action() ActivityAction   { return ActionSubtaskCompleted }
func (SubtaskUncompletedDetails) Action() ActivityAction { return ActionSubtaskUncompleted }
func (AttachmentAddedDetails) Action() ActivityAction    { return ActionAttachmentAdded }
func (AddedToProjectDetails) Action() ActivityAction     { return ActionAddedToProject }
func (RemovedFromProjectDetails) Action() ActivityAction { return ActionRemovedFromProject }

var detailDecoders = map[ActivityAction]func([]byte) (ActivityDetails, error){
	ActionCreated:            decodeAs[CreatedDetails],
	ActionCompleted:          decodeAs[CompletedDetails],
	ActionUncompleted:        decodeAs[UncompletedDetails],
	ActionAssigned:           decodeAs[AssignedDetails],
	ActionMoved:              decodeAs[MovedDetails],
	ActionUpdated:            decodeAs[UpdatedDetails],
	ActionCommented:          decodeAs[CommentedDetails],
	ActionSubtaskAdded:       decodeAs[SubtaskAddedDetails],
	ActionSubtaskCompleted:   decodeAs[SubtaskCompletedDetails],
	ActionSubtaskUncompleted: decodeAs[SubtaskUncompletedDetails],
	ActionAttachmentAdded:    decodeAs[AttachmentAddedDetails],
	ActionAddedToProject:     decodeAs[AddedToProjectDetails],
	ActionRemovedFromProject: decodeAs[RemovedFromProjectDetails],
}

func decodeAs[T ActivityDetails](raw []byte) (ActivityDetails, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeDetails serialises a payload for the details column.
func EncodeDetails(d ActivityDetails) (ActivityAction, string, error) {
	if d == nil {
		return "", "", fmt.Errorf("activity details are required")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", "", fmt.Errorf("encode %s details: %w", d.Action(), err)
	}
	return d.Action(), string(raw), nil
}

// DecodeDetails is the inverse of EncodeDetails. Unknown actions are an error.
func DecodeDetails(action ActivityAction, raw string) (ActivityDetails, error) {
	decode, ok := detailDecoders[action]
	if !ok {
		return nil, fmt.Errorf("unknown activity action %q", action)
	}
	d, err := decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", action, err)
	}
	return d, nil
}
