package access

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"ganttly/models"
)

// Domain errors surfaced by grant mutations. All of them mean the write was
// rejected before touching stored state.
var (
	ErrSelfShare      = errors.New("cannot share a resource with yourself")
	ErrDuplicateShare = errors.New("user already has a share on this resource")
	ErrAlreadyMember  = errors.New("user is already a member of this space")
	ErrNotMember      = errors.New("user is not a member of this space")
	ErrLastAdmin      = errors.New("space must keep at least one admin")
)

// GrantStore owns the three grant kinds: space memberships, user shares and
// share links. All invariants on them are enforced here, so the resolver can
// treat stored grants as well-formed.
type GrantStore struct {
	db *gorm.DB

	// Serializes the admin-count check against concurrent removals per
	// space. Two simultaneous leave calls must not both pass the check.
	spaceLocks sync.Map // spaceID -> *sync.Mutex
}

// NewGrantStore creates a GrantStore on the given store.
func NewGrantStore(db *gorm.DB) *GrantStore {
	return &GrantStore{db: db}
}

func (s *GrantStore) lockSpace(spaceID uint) func() {
	mu, _ := s.spaceLocks.LoadOrStore(spaceID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// --- user shares ---

// CreateUserShare grants targetUserID access to ref. The caller is
// responsible for checking the grantor holds edit on ref; the store rejects
// self-shares and duplicates.
func (s *GrantStore) CreateUserShare(grantorID, targetUserID uint, ref models.ResourceRef, permission string) (*models.UserShare, error) {
	if grantorID == targetUserID {
		return nil, ErrSelfShare
	}
	if !ref.Valid() {
		return nil, fmt.Errorf("invalid resource reference %q/%d", ref.Type, ref.ID)
	}

	var existing models.UserShare
	err := s.db.
		Where("target_user_id = ? AND resource_type = ? AND resource_id = ?", targetUserID, ref.Type, ref.ID).
		First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateShare
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	share := models.UserShare{
		GrantorID:    grantorID,
		TargetUserID: targetUserID,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		Permission:   string(models.NormalizePermission(permission)),
	}
	if err := s.db.Create(&share).Error; err != nil {
		return nil, err
	}
	return &share, nil
}

// SharesFor lists the user shares on a resource.
func (s *GrantStore) SharesFor(ref models.ResourceRef) ([]models.UserShare, error) {
	var shares []models.UserShare
	err := s.db.
		Where("resource_type = ? AND resource_id = ?", ref.Type, ref.ID).
		Find(&shares).Error
	return shares, err
}

// RevokeUserShare deletes a share. Only its grantor may revoke it; anyone
// else gets ErrRecordNotFound.
func (s *GrantStore) RevokeUserShare(grantorID, shareID uint) error {
	var share models.UserShare
	if err := s.db.Where("id = ? AND grantor_id = ?", shareID, grantorID).First(&share).Error; err != nil {
		return err
	}
	return s.db.Unscoped().Delete(&share).Error
}

// --- share links ---

// CreateShareLink mints a bearer link on ref with an unguessable token.
// expiresAt nil means the link never expires.
func (s *GrantStore) CreateShareLink(ownerID uint, ref models.ResourceRef, permission string, expiresAt *time.Time) (*models.ShareLink, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("invalid resource reference %q/%d", ref.Type, ref.ID)
	}

	token, err := newShareToken()
	if err != nil {
		return nil, err
	}
	link := models.ShareLink{
		OwnerID:      ownerID,
		Token:        token,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		Permission:   string(models.NormalizePermission(permission)),
		ExpiresAt:    expiresAt,
	}
	if err := s.db.Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// LinksFor lists the share links on a resource, expired ones included so the
// owner can see and clean them up.
func (s *GrantStore) LinksFor(ref models.ResourceRef) ([]models.ShareLink, error) {
	var links []models.ShareLink
	err := s.db.
		Where("resource_type = ? AND resource_id = ?", ref.Type, ref.ID).
		Find(&links).Error
	return links, err
}

// RevokeShareLink deletes a link. Only its owner may revoke it.
func (s *GrantStore) RevokeShareLink(ownerID, linkID uint) error {
	var link models.ShareLink
	if err := s.db.Where("id = ? AND owner_id = ?", linkID, ownerID).First(&link).Error; err != nil {
		return err
	}
	return s.db.Unscoped().Delete(&link).Error
}

// --- space membership ---

// AddMember inserts a membership row. Rejects when the user already belongs
// to the space.
func (s *GrantStore) AddMember(spaceID, userID uint, role string) (*models.SpaceMember, error) {
	if role != models.RoleAdmin {
		role = models.RoleMember
	}

	var existing models.SpaceMember
	err := s.db.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	member := models.SpaceMember{SpaceID: spaceID, UserID: userID, Role: role}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// Members lists a space's membership rows.
func (s *GrantStore) Members(spaceID uint) ([]models.SpaceMember, error) {
	var members []models.SpaceMember
	err := s.db.Where("space_id = ?", spaceID).Order("id").Find(&members).Error
	return members, err
}

// MemberRole returns the role userID holds in the space, or ErrNotMember.
func (s *GrantStore) MemberRole(spaceID, userID uint) (string, error) {
	var member models.SpaceMember
	err := s.db.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// RemoveMember deletes a membership. Removing the space's only admin is
// rejected; the count check and the delete run under the per-space lock so
// two concurrent removals cannot both pass it.
func (s *GrantStore) RemoveMember(spaceID, userID uint) error {
	unlock := s.lockSpace(spaceID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var member models.SpaceMember
		err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return err
		}

		if member.IsAdmin() {
			var admins int64
			if err := tx.Model(&models.SpaceMember{}).
				Where("space_id = ? AND role = ?", spaceID, models.RoleAdmin).
				Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		return tx.Unscoped().Delete(&member).Error
	})
}

// SetMemberRole changes a member's role. Demoting the only admin is rejected
// under the same guard as removal.
func (s *GrantStore) SetMemberRole(spaceID, userID uint, role string) error {
	if role != models.RoleAdmin {
		role = models.RoleMember
	}

	unlock := s.lockSpace(spaceID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var member models.SpaceMember
		err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return err
		}
		if member.Role == role {
			return nil
		}

		if member.IsAdmin() && role != models.RoleAdmin {
			var admins int64
			if err := tx.Model(&models.SpaceMember{}).
				Where("space_id = ? AND role = ?", spaceID, models.RoleAdmin).
				Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		return tx.Model(&member).Update("role", role).Error
	})
}

// --- cleanup ---

// PurgeGrants removes every share and link referencing the given resources.
// It is meant to run inside the transaction that deletes the resources
// themselves, so no grant can outlive what it points at.
func PurgeGrants(tx *gorm.DB, refs ...models.ResourceRef) error {
	for _, ref := range refs {
		if err := tx.Unscoped().
			Where("resource_type = ? AND resource_id = ?", ref.Type, ref.ID).
			Delete(&models.UserShare{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().
			Where("resource_type = ? AND resource_id = ?", ref.Type, ref.ID).
			Delete(&models.ShareLink{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// newShareToken returns 32 bytes of hex-encoded randomness.
func newShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
