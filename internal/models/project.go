package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const DefaultProjectColor = "#6366f1"

// DefaultSectionNames are created, in order, with every new project.
var DefaultSectionNames = []string{"To Do", "In Progress", "Done"}

type Project struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color" gorm:"not null;default:'#6366f1'"`
	TeamID      uuid.UUID `json:"team_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Team     *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	Creator  *User     `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:ProjectID"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type Section struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	ProjectID uuid.UUID `json:"project_id" gorm:"type:uuid;not null;index"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (s *Section) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// DefaultSections builds the starter sections of a new project.
func DefaultSections(projectID uuid.UUID) []Section {
	sections := make([]Section, len(DefaultSectionNames))
	for i, name := range DefaultSectionNames {
		sections[i] = Section{Name: name, ProjectID: projectID, Position: i}
	}
	return sections
}
