package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"ganttly/access"
	"ganttly/models"
	"ganttly/utils"
)

// ShareController manages user shares and share links on top of the grant
// store. Creating either requires the grantor to currently hold edit on the
// target resource; on a space that means the admin role specifically.
type ShareController struct {
	DB       *gorm.DB
	Store    *access.GrantStore
	Resolver *access.Resolver
	Logger   *log.Logger
}

func NewShareController(db *gorm.DB, logger *log.Logger) *ShareController {
	return &ShareController{
		DB:       db,
		Store:    access.NewGrantStore(db),
		Resolver: access.NewResolver(db),
		Logger:   logger,
	}
}

type CreateShareRequest struct {
	ResourceType string `json:"resource_type" validate:"required,oneof=space category project task"`
	ResourceID   uint   `json:"resource_id" validate:"required"`
	TargetUserID uint   `json:"target_user_id" validate:"required"`
	Permission   string `json:"permission" validate:"omitempty,oneof=view edit"`
}

type CreateShareLinkRequest struct {
	ResourceType string     `json:"resource_type" validate:"required,oneof=space category project task"`
	ResourceID   uint       `json:"resource_id" validate:"required"`
	Permission   string     `json:"permission" validate:"omitempty,oneof=view edit"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// CreateShare grants another user access to a resource.
func (sc *ShareController) CreateShare(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateShareRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ref := models.ResourceRef{Type: models.ResourceType(req.ResourceType), ID: req.ResourceID}
	if ok, err := sc.requireGrantorRights(c, user, ref); !ok {
		return err
	}

	var target models.User
	if err := sc.DB.First(&target, req.TargetUserID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown user",
		})
	}

	share, err := sc.Store.CreateUserShare(user.ID, req.TargetUserID, ref, req.Permission)
	switch {
	case errors.Is(err, access.ErrSelfShare):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, access.ErrDuplicateShare):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		utils.LogError("share_create_failed", err, map[string]interface{}{
			"grantor_id":    user.ID,
			"resource_type": req.ResourceType,
			"resource_id":   req.ResourceID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create share",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(share)
}

// GetShares lists the shares on a resource. Edit access required: viewers
// must not enumerate who else a resource was shared with.
func (sc *ShareController) GetShares(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	ref, ok := queryRef(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resource_type and resource_id are required",
		})
	}
	if ok, err := sc.requireGrantorRights(c, user, ref); !ok {
		return err
	}

	shares, err := sc.Store.SharesFor(ref)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch shares",
		})
	}
	return c.JSON(shares)
}

// RevokeShare deletes a share the caller granted.
func (sc *ShareController) RevokeShare(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	shareID := parseID(c, "id")

	if err := sc.Store.RevokeUserShare(user.ID, shareID); err != nil {
		return notFound(c, "Share")
	}
	return c.JSON(fiber.Map{"message": "Share revoked"})
}

// CreateShareLink mints a bearer link on a resource.
func (sc *ShareController) CreateShareLink(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateShareLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expires_at must be in the future",
		})
	}

	ref := models.ResourceRef{Type: models.ResourceType(req.ResourceType), ID: req.ResourceID}
	if ok, err := sc.requireGrantorRights(c, user, ref); !ok {
		return err
	}

	link, err := sc.Store.CreateShareLink(user.ID, ref, req.Permission, req.ExpiresAt)
	if err != nil {
		utils.LogError("share_link_create_failed", err, map[string]interface{}{
			"owner_id":      user.ID,
			"resource_type": req.ResourceType,
			"resource_id":   req.ResourceID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create share link",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(link)
}

// GetShareLinks lists the links on a resource. Edit access required.
func (sc *ShareController) GetShareLinks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	ref, ok := queryRef(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resource_type and resource_id are required",
		})
	}
	if ok, err := sc.requireGrantorRights(c, user, ref); !ok {
		return err
	}

	links, err := sc.Store.LinksFor(ref)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch share links",
		})
	}
	return c.JSON(links)
}

// RevokeShareLink deletes a link the caller owns.
func (sc *ShareController) RevokeShareLink(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	linkID := parseID(c, "id")

	if err := sc.Store.RevokeShareLink(user.ID, linkID); err != nil {
		return notFound(c, "Share link")
	}
	return c.JSON(fiber.Map{"message": "Share link revoked"})
}

// requireGrantorRights enforces the sharing precondition: edit on the
// resource, and for spaces the admin role rather than plain membership.
// ok is false when a response has been written.
func (sc *ShareController) requireGrantorRights(c *fiber.Ctx, user *models.User, ref models.ResourceRef) (bool, error) {
	if ref.Type == models.ResourceSpace {
		role, err := sc.Store.MemberRole(ref.ID, user.ID)
		if err != nil {
			return false, notFound(c, "Resource")
		}
		if role != models.RoleAdmin {
			return false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin role required",
			})
		}
		return true, nil
	}

	principal := access.Principal{UserID: &user.ID}
	decision := sc.Resolver.CanAccess(principal, ref)
	if !decision.Allowed {
		return false, notFound(c, "Resource")
	}
	if decision.Permission != models.PermissionEdit {
		return false, viewOnly(c)
	}
	return true, nil
}

func queryRef(c *fiber.Ctx) (models.ResourceRef, bool) {
	ref := models.ResourceRef{
		Type: models.ResourceType(c.Query("resource_type")),
		ID:   uint(c.QueryInt("resource_id")),
	}
	return ref, ref.Valid()
}
