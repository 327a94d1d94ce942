package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ParsePriority accepts any casing; empty input yields the default.
func ParsePriority(s string) (Priority, bool) {
	if strings.TrimSpace(s) == "" {
		return PriorityMedium, true
	}
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Task is anchored to its origin section and project. Appearances in other
// projects are TaskProject rows, never copies.
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority" gorm:"not null;default:'medium'"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Position    int        `json:"position" gorm:"not null;default:0;index:idx_task_section_position,priority:2"`
	SectionID   uuid.UUID  `json:"section_id" gorm:"type:uuid;not null;index:idx_task_section_position,priority:1"`
	ProjectID   uuid.UUID  `json:"project_id" gorm:"type:uuid;not null;index"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" gorm:"type:uuid;index"`
	CreatorID   uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Section     *Section      `json:"section,omitempty" gorm:"foreignKey:SectionID"`
	Project     *Project      `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Assignee    *User         `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`
	Creator     *User         `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Comments    []Comment     `json:"comments,omitempty" gorm:"foreignKey:TaskID"`
	Attachments []Attachment  `json:"attachments,omitempty" gorm:"foreignKey:TaskID"`
	Subtasks    []Subtask     `json:"subtasks,omitempty" gorm:"foreignKey:TaskID"`
	Tags        []Tag         `json:"tags,omitempty" gorm:"many2many:task_tags"`
	Links       []TaskProject `json:"links,omitempty" gorm:"foreignKey:TaskID"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Overdue reports whether an incomplete task is past its due date.
func (t *Task) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// TaskProject places a task into a section of a project other than its origin.
type TaskProject struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;uniqueIndex:idx_task_project"`
	ProjectID uuid.UUID `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:idx_task_project;index"`
	SectionID uuid.UUID `json:"section_id" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"created_at"`

	Task    *Task    `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Section *Section `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

func (l *TaskProject) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

type Comment struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	AuthorID  uuid.UUID `json:"author_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

type Attachment struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Filename     string    `json:"filename" gorm:"not null"`
	URL          string    `json:"url" gorm:"not null"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	TaskID       uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	UploadedByID uuid.UUID `json:"uploaded_by_id" gorm:"type:uuid;not null"`
	CreatedAt    time.Time `json:"created_at"`

	UploadedBy *User `json:"uploaded_by,omitempty" gorm:"foreignKey:UploadedByID"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

type Subtask struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title      string     `json:"title" gorm:"not null"`
	Completed  bool       `json:"completed" gorm:"not null;default:false"`
	Position   int        `json:"position" gorm:"not null;default:0"`
	TaskID     uuid.UUID  `json:"task_id" gorm:"type:uuid;not null;index"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty" gorm:"type:uuid"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Assignee *User `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`
}

func (s *Subtask) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

const DefaultTagColor = "#6b7280"

type Tag struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Color     string    `json:"color" gorm:"not null;default:'#6b7280'"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TaskTag is the join row behind Task.Tags.
type TaskTag struct {
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;primaryKey"`
	TagID     uuid.UUID `json:"tag_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}
