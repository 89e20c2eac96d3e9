package models

import "gorm.io/gorm"

// Space member roles. Role gates administrative actions only; any member,
// regardless of role, gets edit access to resources inside the space.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Space is a shared workspace. Every resource placed in a space becomes
// editable by all of its members.
type Space struct {
	gorm.Model
	Name      string `gorm:"not null" json:"name"`
	CreatorID uint   `gorm:"not null;index" json:"creator_id"`

	// Relations
	Creator User          `json:"-"`
	Members []SpaceMember `gorm:"foreignKey:SpaceID" json:"members,omitempty"`
}

// SpaceMember ties a user to a space with a role. A space must keep at
// least one admin member for as long as it exists.
type SpaceMember struct {
	gorm.Model
	SpaceID uint   `gorm:"not null;uniqueIndex:idx_space_member,priority:1" json:"space_id"`
	UserID  uint   `gorm:"not null;uniqueIndex:idx_space_member,priority:2;index" json:"user_id"`
	Role    string `gorm:"default:'member'" json:"role"` // admin, member

	// Relations
	Space Space `json:"-"`
	User  User  `json:"-"`
}

// IsAdmin reports whether the membership carries the admin role.
func (m *SpaceMember) IsAdmin() bool {
	return m.Role == RoleAdmin
}
