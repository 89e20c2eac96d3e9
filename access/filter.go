package access

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"ganttly/models"
)

const (
	memberSpacesSQL = "SELECT space_id FROM space_members WHERE user_id = ? AND deleted_at IS NULL"
	sharedSQL       = "SELECT resource_id FROM user_shares WHERE resource_type = ? AND target_user_id = ? AND deleted_at IS NULL"
	linkedSQL       = "SELECT resource_id FROM share_links WHERE resource_type = ? AND token = ? AND deleted_at IS NULL AND (expires_at IS NULL OR expires_at > ?)"
)

// ListFilter builds per-type GORM scopes that restrict a listing query to the
// rows the principal may access. The conditions are generated from the same
// level tables the resolver walks, so a row is listed exactly when CanAccess
// would allow it.
type ListFilter struct {
	now func() time.Time
}

// NewListFilter creates a ListFilter.
func NewListFilter() *ListFilter {
	return &ListFilter{now: time.Now}
}

// Spaces scopes a spaces query to those visible to p.
func (f *ListFilter) Spaces(p Principal) func(*gorm.DB) *gorm.DB {
	return f.Scope(p, models.ResourceSpace)
}

// Categories scopes a categories query to those visible to p.
func (f *ListFilter) Categories(p Principal) func(*gorm.DB) *gorm.DB {
	return f.Scope(p, models.ResourceCategory)
}

// Projects scopes a projects query to those visible to p. The scope joins
// categories to resolve each project's effective space.
func (f *ListFilter) Projects(p Principal) func(*gorm.DB) *gorm.DB {
	return f.Scope(p, models.ResourceProject)
}

// Tasks scopes a tasks query to those visible to p. The scope joins projects
// and categories to resolve each task's effective space.
func (f *ListFilter) Tasks(p Principal) func(*gorm.DB) *gorm.DB {
	return f.Scope(p, models.ResourceTask)
}

// Scope returns the visibility scope for an arbitrary resource type.
func (f *ListFilter) Scope(p Principal, t models.ResourceType) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch t {
		case models.ResourceProject:
			tx = tx.Joins("JOIN categories ON categories.id = projects.category_id AND categories.deleted_at IS NULL")
		case models.ResourceTask:
			tx = tx.Joins("JOIN projects ON projects.id = tasks.project_id AND projects.deleted_at IS NULL").
				Joins("JOIN categories ON categories.id = projects.category_id AND categories.deleted_at IS NULL")
		}

		if p.Anonymous() {
			return tx.Where("1 = 0")
		}

		var conds []string
		var args []interface{}

		if p.UserID != nil {
			if col := ownerColumn(t); col != "" {
				conds = append(conds, col+" = ?")
				args = append(args, *p.UserID)
			}
			if col := levelColumn(t, levelSpace); col != "" {
				conds = append(conds, fmt.Sprintf("%s IN (%s)", col, memberSpacesSQL))
				args = append(args, *p.UserID)
			} else if t == models.ResourceSpace {
				conds = append(conds, fmt.Sprintf("spaces.id IN (%s)", memberSpacesSQL))
				args = append(args, *p.UserID)
			}
			for _, l := range shareLevels(t) {
				col := levelColumn(t, l)
				if col == "" {
					continue
				}
				conds = append(conds, fmt.Sprintf("%s IN (%s)", col, sharedSQL))
				args = append(args, levelType(t, l), *p.UserID)
			}
		}

		if p.ShareToken != "" {
			for _, l := range linkLevels(t) {
				col := levelColumn(t, l)
				if col == "" {
					continue
				}
				conds = append(conds, fmt.Sprintf("%s IN (%s)", col, linkedSQL))
				args = append(args, levelType(t, l), p.ShareToken, f.now())
			}
		}

		if len(conds) == 0 {
			return tx.Where("1 = 0")
		}
		return tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// ownerColumn is the owner id column for the type, empty when ownership does
// not participate in listing (spaces are reached through membership).
func ownerColumn(t models.ResourceType) string {
	switch t {
	case models.ResourceCategory:
		return "categories.owner_id"
	case models.ResourceProject:
		return "projects.owner_id"
	case models.ResourceTask:
		return "tasks.owner_id"
	}
	return ""
}

// levelColumn is the SQL expression holding the id of the resource at the
// given level for rows of type t, empty when the level does not apply.
func levelColumn(t models.ResourceType, l level) string {
	switch t {
	case models.ResourceSpace:
		if l == levelSelf {
			return "spaces.id"
		}
	case models.ResourceCategory:
		switch l {
		case levelSelf:
			return "categories.id"
		case levelSpace:
			return "categories.space_id"
		}
	case models.ResourceProject:
		switch l {
		case levelSelf:
			return "projects.id"
		case levelSpace:
			return "COALESCE(projects.space_id, categories.space_id)"
		case levelCategory:
			return "projects.category_id"
		}
	case models.ResourceTask:
		switch l {
		case levelSelf:
			return "tasks.id"
		case levelSpace:
			return "COALESCE(projects.space_id, categories.space_id)"
		case levelProject:
			return "tasks.project_id"
		case levelCategory:
			return "projects.category_id"
		}
	}
	return ""
}

// levelType is the grant resource_type consulted at the given level.
func levelType(t models.ResourceType, l level) models.ResourceType {
	switch l {
	case levelSpace:
		return models.ResourceSpace
	case levelProject:
		return models.ResourceProject
	case levelCategory:
		return models.ResourceCategory
	}
	return t
}
