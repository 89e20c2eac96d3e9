package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"ganttly/access"
	"ganttly/middleware"
	"ganttly/models"
	"ganttly/utils"
)

// SpaceController implements space lifecycle and membership administration.
type SpaceController struct {
	DB       *gorm.DB
	Store    *access.GrantStore
	Resolver *access.Resolver
	Filter   *access.ListFilter
	Logger   *log.Logger
}

func NewSpaceController(db *gorm.DB, logger *log.Logger) *SpaceController {
	return &SpaceController{
		DB:       db,
		Store:    access.NewGrantStore(db),
		Resolver: access.NewResolver(db),
		Filter:   access.NewListFilter(),
		Logger:   logger,
	}
}

type CreateSpaceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type RenameSpaceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type InviteMemberRequest struct {
	UserID uint   `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=admin member"`
}

type MemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

// CreateSpace creates a space with the caller as its first admin member.
func (sc *SpaceController) CreateSpace(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateSpaceRequest
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

	space := models.Space{Name: req.Name, CreatorID: user.ID}
	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&space).Error; err != nil {
			return err
		}
		member := models.SpaceMember{SpaceID: space.ID, UserID: user.ID, Role: models.RoleAdmin}
		return tx.Create(&member).Error
	})
	if err != nil {
		utils.LogError("space_create_failed", err, map[string]interface{}{"user_id": user.ID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create space",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(space)
}

// GetSpaces lists the spaces visible to the principal.
func (sc *SpaceController) GetSpaces(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)

	var spaces []models.Space
	if err := sc.DB.Scopes(sc.Filter.Spaces(principal)).Order("spaces.id").Find(&spaces).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch spaces",
		})
	}
	return c.JSON(spaces)
}

// GetSpace returns one space with its members.
func (sc *SpaceController) GetSpace(c *fiber.Ctx) error {
	spaceID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceSpace, ID: spaceID}

	decision := sc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Space")
	}

	var space models.Space
	if err := sc.DB.Preload("Members").First(&space, spaceID).Error; err != nil {
		return notFound(c, "Space")
	}

	return c.JSON(fiber.Map{
		"space":      space,
		"permission": decision.Permission,
	})
}

// RenameSpace changes the space name. Admin members only.
func (sc *SpaceController) RenameSpace(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")

	var req RenameSpaceRequest
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

	if ok, err := sc.requireAdmin(c, spaceID, user.ID); !ok {
		return err
	}

	var space models.Space
	if err := sc.DB.First(&space, spaceID).Error; err != nil {
		return notFound(c, "Space")
	}
	if err := sc.DB.Model(&space).Update("name", req.Name).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rename space",
		})
	}
	return c.JSON(space)
}

// DeleteSpace removes a space, its memberships and every grant referencing
// it, and detaches its categories and projects. Admin members only.
func (sc *SpaceController) DeleteSpace(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")

	if ok, err := sc.requireAdmin(c, spaceID, user.ID); !ok {
		return err
	}

	var space models.Space
	if err := sc.DB.First(&space, spaceID).Error; err != nil {
		return notFound(c, "Space")
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("space_id = ?", spaceID).Delete(&models.SpaceMember{}).Error; err != nil {
			return err
		}
		if err := access.PurgeGrants(tx, models.ResourceRef{Type: models.ResourceSpace, ID: spaceID}); err != nil {
			return err
		}
		// Resources survive the space; they fall back to owner-only access
		if err := tx.Model(&models.Category{}).Where("space_id = ?", spaceID).Update("space_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("space_id = ?", spaceID).Update("space_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&space).Error
	})
	if err != nil {
		utils.LogError("space_delete_failed", err, map[string]interface{}{"space_id": spaceID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete space",
		})
	}

	return c.JSON(fiber.Map{"message": "Space deleted"})
}

// GetMembers lists a space's members for any principal allowed on the space.
func (sc *SpaceController) GetMembers(c *fiber.Ctx) error {
	spaceID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceSpace, ID: spaceID}

	if !sc.Resolver.CanAccess(middleware.GetPrincipal(c), ref).Allowed {
		return notFound(c, "Space")
	}

	members, err := sc.Store.Members(spaceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch members",
		})
	}
	return c.JSON(members)
}

// InviteMember adds a user to the space. Admin members only.
func (sc *SpaceController) InviteMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")

	var req InviteMemberRequest
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

	if ok, err := sc.requireAdmin(c, spaceID, user.ID); !ok {
		return err
	}

	var target models.User
	if err := sc.DB.First(&target, req.UserID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown user",
		})
	}

	member, err := sc.Store.AddMember(spaceID, req.UserID, req.Role)
	if errors.Is(err, access.ErrAlreadyMember) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add member",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}

// RemoveMember kicks a member out of the space. Admin members only; the
// store rejects removing the last admin.
func (sc *SpaceController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")
	targetID := parseID(c, "userID")

	if ok, err := sc.requireAdmin(c, spaceID, user.ID); !ok {
		return err
	}

	return sc.removeMembership(c, spaceID, targetID)
}

// LeaveSpace is self-service removal, under the same last-admin guard.
func (sc *SpaceController) LeaveSpace(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")

	if _, err := sc.Store.MemberRole(spaceID, user.ID); err != nil {
		return notFound(c, "Space")
	}

	return sc.removeMembership(c, spaceID, user.ID)
}

// UpdateMemberRole promotes or demotes a member. Admin members only; the
// store rejects demoting the last admin.
func (sc *SpaceController) UpdateMemberRole(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	spaceID := parseID(c, "id")
	targetID := parseID(c, "userID")

	var req MemberRoleRequest
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

	if ok, err := sc.requireAdmin(c, spaceID, user.ID); !ok {
		return err
	}

	err := sc.Store.SetMemberRole(spaceID, targetID, req.Role)
	switch {
	case errors.Is(err, access.ErrNotMember):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, access.ErrLastAdmin):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update member role",
		})
	}

	return c.JSON(fiber.Map{"message": "Member role updated"})
}

func (sc *SpaceController) removeMembership(c *fiber.Ctx, spaceID, userID uint) error {
	err := sc.Store.RemoveMember(spaceID, userID)
	switch {
	case errors.Is(err, access.ErrNotMember):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, access.ErrLastAdmin):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove member",
		})
	}
	return c.JSON(fiber.Map{"message": "Member removed"})
}

// requireAdmin replies 404 for outsiders (the space must stay invisible to
// them) and 403 for non-admin members. ok is false when a response has been
// written and the handler must stop.
func (sc *SpaceController) requireAdmin(c *fiber.Ctx, spaceID, userID uint) (bool, error) {
	role, err := sc.Store.MemberRole(spaceID, userID)
	if err != nil {
		return false, notFound(c, "Space")
	}
	if role != models.RoleAdmin {
		return false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin role required",
		})
	}
	return true, nil
}
