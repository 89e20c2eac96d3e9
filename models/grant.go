package models

import (
	"time"

	"gorm.io/gorm"
)

// ResourceType tags the kind of resource a grant points at.
type ResourceType string

const (
	ResourceSpace    ResourceType = "space"
	ResourceCategory ResourceType = "category"
	ResourceProject  ResourceType = "project"
	ResourceTask     ResourceType = "task"
)

// Valid reports whether t is one of the known resource kinds.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceSpace, ResourceCategory, ResourceProject, ResourceTask:
		return true
	}
	return false
}

// ResourceRef is a typed reference to a resource. Grant rows and the access
// engine only ever pass resources around as refs, so a grant can never point
// at a kind that doesn't exist.
type ResourceRef struct {
	Type ResourceType `json:"resource_type"`
	ID   uint         `json:"resource_id"`
}

// Valid reports whether the ref names a known kind and a plausible id.
func (r ResourceRef) Valid() bool {
	return r.Type.Valid() && r.ID != 0
}

// Permission levels. Edit is strictly more capable than view.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// NormalizePermission maps any stored value onto exactly view or edit.
// Anything that isn't edit is view.
func NormalizePermission(raw string) Permission {
	if Permission(raw) == PermissionEdit {
		return PermissionEdit
	}
	return PermissionView
}

// UserShare grants a specific user view or edit on a resource. At most one
// share may exist per (target user, resource).
type UserShare struct {
	gorm.Model
	GrantorID    uint         `gorm:"not null;index" json:"grantor_id"`
	TargetUserID uint         `gorm:"not null;uniqueIndex:idx_share_target,priority:1" json:"target_user_id"`
	ResourceType ResourceType `gorm:"type:varchar(16);not null;uniqueIndex:idx_share_target,priority:2" json:"resource_type"`
	ResourceID   uint         `gorm:"not null;uniqueIndex:idx_share_target,priority:3" json:"resource_id"`
	Permission   string       `gorm:"default:'view'" json:"permission"`

	// Relations
	Grantor    User `json:"-"`
	TargetUser User `json:"-"`
}

// Ref returns the resource the share points at.
func (s *UserShare) Ref() ResourceRef {
	return ResourceRef{Type: s.ResourceType, ID: s.ResourceID}
}

// ShareLink grants whoever presents its token view or edit on a resource,
// optionally until an expiry instant.
type ShareLink struct {
	gorm.Model
	OwnerID      uint         `gorm:"not null;index" json:"owner_id"`
	Token        string       `gorm:"uniqueIndex;not null" json:"token"`
	ResourceType ResourceType `gorm:"type:varchar(16);not null;index:idx_link_resource,priority:1" json:"resource_type"`
	ResourceID   uint         `gorm:"not null;index:idx_link_resource,priority:2" json:"resource_id"`
	Permission   string       `gorm:"default:'view'" json:"permission"`
	ExpiresAt    *time.Time   `json:"expires_at"`

	// Relations
	Owner User `json:"-"`
}

// Ref returns the resource the link points at.
func (l *ShareLink) Ref() ResourceRef {
	return ResourceRef{Type: l.ResourceType, ID: l.ResourceID}
}

// Expired reports whether the link has lapsed at the given instant. A link
// without an expiry never expires.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}
