package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Idea struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description,omitempty"`
	Upvotes     int       `json:"upvotes" gorm:"not null;default:0"`
	TeamID      uuid.UUID `json:"team_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Creator  *User         `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Comments []IdeaComment `json:"comments,omitempty" gorm:"foreignKey:IdeaID"`
	// VotedByMe is computed per reader.
	VotedByMe bool `json:"voted_by_me" gorm:"-"`
}

func (i *Idea) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

type IdeaVote struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	IdeaID    uuid.UUID `json:"idea_id" gorm:"type:uuid;not null;uniqueIndex:idx_idea_vote"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_idea_vote"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *IdeaVote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

type IdeaComment struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	IdeaID    uuid.UUID `json:"idea_id" gorm:"type:uuid;not null;index"`
	AuthorID  uuid.UUID `json:"author_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

func (c *IdeaComment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Note is private to its owner.
type Note struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Title     string    `json:"title" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text"`
	Pinned    bool      `json:"pinned" gorm:"not null;default:false"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

type GoalStatus string

const (
	GoalOnTrack  GoalStatus = "on_track"
	GoalAtRisk   GoalStatus = "at_risk"
	GoalOffTrack GoalStatus = "off_track"
	GoalAchieved GoalStatus = "achieved"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalOnTrack, GoalAtRisk, GoalOffTrack, GoalAchieved:
		return true
	}
	return false
}

type Goal struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty"`
	Status      GoalStatus `json:"status" gorm:"not null;default:'on_track'"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	OwnerID     uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

type Portfolio struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color" gorm:"not null;default:'#6366f1'"`
	TeamID      uuid.UUID `json:"team_id" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Projects []PortfolioProject `json:"projects,omitempty" gorm:"foreignKey:PortfolioID"`
}

func (p *Portfolio) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type PortfolioProject struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	PortfolioID uuid.UUID `json:"portfolio_id" gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_project"`
	ProjectID   uuid.UUID `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_project"`
	CreatedAt   time.Time `json:"created_at"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (p *PortfolioProject) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{}, &Token{}, &Team{}, &TeamMember{},
		&Project{}, &Section{}, &Task{}, &TaskProject{},
		&Comment{}, &Attachment{}, &Subtask{}, &Tag{}, &TaskTag{},
		&ActivityLog{}, &Notification{},
		&Idea{}, &IdeaVote{}, &IdeaComment{}, &Note{}, &Goal{},
		&Portfolio{}, &PortfolioProject{},
	}
}
