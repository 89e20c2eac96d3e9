package access

import (
	"time"

	"gorm.io/gorm"

	"ganttly/models"
)

// Principal is the actor behind a request: an authenticated user, an
// anonymous holder of a share-link token, both, or neither.
type Principal struct {
	UserID     *uint
	ShareToken string
}

// Anonymous reports whether the principal carries no identity at all.
func (p Principal) Anonymous() bool {
	return p.UserID == nil && p.ShareToken == ""
}

// Decision is the outcome of an access check. Permission is meaningful only
// when Allowed is true and is always exactly view or edit.
type Decision struct {
	Allowed    bool              `json:"allowed"`
	Permission models.Permission `json:"permission"`
}

// Denied is the zero decision: no access, view level.
var Denied = Decision{Allowed: false, Permission: models.PermissionView}

func allowed(perm models.Permission) Decision {
	return Decision{Allowed: true, Permission: perm}
}

// Resolver answers "may this principal touch this resource, and at what
// level". Checks run in a fixed order and the first matching grant wins;
// a principal holding both a view share and an edit-granting membership gets
// whichever the order reaches first, not the more permissive of the two.
type Resolver struct {
	db    *gorm.DB
	graph *Graph
	now   func() time.Time
}

// NewResolver creates a Resolver on the given store.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db, graph: NewGraph(db), now: time.Now}
}

// Graph exposes the resolver's ancestry view for callers that need raw
// containment data alongside decisions.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// CanAccess decides access for the principal on the referenced resource.
// A malformed ref, an absent principal, or a resource that does not exist
// all resolve to Denied; callers map that to 404 on read paths.
func (r *Resolver) CanAccess(p Principal, ref models.ResourceRef) Decision {
	if !ref.Valid() || p.Anonymous() {
		return Denied
	}

	anc, err := r.graph.Ancestors(ref)
	if err != nil {
		return Denied
	}

	// Share-link token path, outermost resource first.
	if p.ShareToken != "" {
		for _, l := range linkLevels(ref.Type) {
			at, ok := levelRef(ref, anc, l)
			if !ok {
				continue
			}
			if link, err := r.findLink(at, p.ShareToken); err == nil {
				return allowed(models.NormalizePermission(link.Permission))
			}
		}
	}

	if p.UserID == nil {
		return Denied
	}
	userID := *p.UserID

	// Spaces resolve directly: membership grants edit whatever the role.
	if ref.Type == models.ResourceSpace {
		if r.isMember(ref.ID, userID) {
			return allowed(models.PermissionEdit)
		}
		if share, err := r.findShare(ref, userID); err == nil {
			return allowed(models.NormalizePermission(share.Permission))
		}
		return Denied
	}

	// Owner and effective-space membership both grant edit outright.
	if anc.OwnerID != nil && *anc.OwnerID == userID {
		return allowed(models.PermissionEdit)
	}
	if anc.SpaceID != nil && r.isMember(*anc.SpaceID, userID) {
		return allowed(models.PermissionEdit)
	}

	for _, l := range shareLevels(ref.Type) {
		at, ok := levelRef(ref, anc, l)
		if !ok {
			continue
		}
		if share, err := r.findShare(at, userID); err == nil {
			return allowed(models.NormalizePermission(share.Permission))
		}
	}

	return Denied
}

func (r *Resolver) isMember(spaceID, userID uint) bool {
	var count int64
	r.db.Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Count(&count)
	return count > 0
}

func (r *Resolver) findShare(ref models.ResourceRef, userID uint) (*models.UserShare, error) {
	var share models.UserShare
	err := r.db.
		Where("resource_type = ? AND resource_id = ? AND target_user_id = ?", ref.Type, ref.ID, userID).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *Resolver) findLink(ref models.ResourceRef, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := r.db.
		Where("resource_type = ? AND resource_id = ? AND token = ?", ref.Type, ref.ID, token).
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}
