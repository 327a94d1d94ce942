package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
)

func (r TeamRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may invite or remove members.
func (r TeamRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type Team struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members  []TeamMember `json:"members,omitempty" gorm:"foreignKey:TeamID"`
	Projects []Project    `json:"projects,omitempty" gorm:"foreignKey:TeamID"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type TeamMember struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TeamID    uuid.UUID `json:"team_id" gorm:"type:uuid;not null;uniqueIndex:idx_team_member"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_team_member"`
	Role      TeamRole  `json:"role" gorm:"not null;default:'member'"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Team *Team `json:"team,omitempty" gorm:"foreignKey:TeamID"`
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
