package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"ganttly/access"
	"ganttly/middleware"
	"ganttly/models"
	"ganttly/utils"
)

// CategoryController implements category CRUD behind the access resolver.
type CategoryController struct {
	DB       *gorm.DB
	Store    *access.GrantStore
	Resolver *access.Resolver
	Filter   *access.ListFilter
	Logger   *log.Logger
}

func NewCategoryController(db *gorm.DB, logger *log.Logger) *CategoryController {
	return &CategoryController{
		DB:       db,
		Store:    access.NewGrantStore(db),
		Resolver: access.NewResolver(db),
		Filter:   access.NewListFilter(),
		Logger:   logger,
	}
}

type CreateCategoryRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	SpaceID  *uint  `json:"space_id"`
	Position int    `json:"position"`
}

type UpdateCategoryRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	SpaceID  *uint   `json:"space_id"`
	Position *int    `json:"position"`
}

// CreateCategory creates a category owned by the caller, optionally placed
// in a space the caller belongs to.
func (cc *CategoryController) CreateCategory(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateCategoryRequest
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

	if req.SpaceID != nil {
		if _, err := cc.Store.MemberRole(*req.SpaceID, user.ID); err != nil {
			return notFound(c, "Space")
		}
	}

	ownerID := user.ID
	category := models.Category{
		OwnerID:  &ownerID,
		SpaceID:  req.SpaceID,
		Name:     req.Name,
		Position: req.Position,
	}
	if err := cc.DB.Create(&category).Error; err != nil {
		utils.LogError("category_create_failed", err, map[string]interface{}{"user_id": user.ID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create category",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(category)
}

// GetCategories lists the categories visible to the principal.
func (cc *CategoryController) GetCategories(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)

	var categories []models.Category
	err := cc.DB.Scopes(cc.Filter.Categories(principal)).
		Order("categories.position, categories.id").
		Find(&categories).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch categories",
		})
	}
	return c.JSON(categories)
}

// GetCategory returns one category.
func (cc *CategoryController) GetCategory(c *fiber.Ctx) error {
	categoryID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceCategory, ID: categoryID}

	decision := cc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Category")
	}

	var category models.Category
	if err := cc.DB.First(&category, categoryID).Error; err != nil {
		return notFound(c, "Category")
	}

	return c.JSON(fiber.Map{
		"category":   category,
		"permission": decision.Permission,
	})
}

// UpdateCategory changes name, position or space placement. Edit access
// required; moving into a space additionally requires membership there.
func (cc *CategoryController) UpdateCategory(c *fiber.Ctx) error {
	categoryID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceCategory, ID: categoryID}

	decision := cc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Category")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var req UpdateCategoryRequest
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

	var category models.Category
	if err := cc.DB.First(&category, categoryID).Error; err != nil {
		return notFound(c, "Category")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if req.SpaceID != nil {
		user, _ := c.Locals("user").(*models.User)
		if user == nil {
			return viewOnly(c)
		}
		if _, err := cc.Store.MemberRole(*req.SpaceID, user.ID); err != nil {
			return notFound(c, "Space")
		}
		updates["space_id"] = *req.SpaceID
	}

	if len(updates) > 0 {
		if err := cc.DB.Model(&category).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update category",
			})
		}
	}
	return c.JSON(category)
}

// DeleteCategory removes the category, its projects and tasks, and every
// grant referencing any of them, in one transaction.
func (cc *CategoryController) DeleteCategory(c *fiber.Ctx) error {
	categoryID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceCategory, ID: categoryID}

	decision := cc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Category")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var category models.Category
	if err := cc.DB.First(&category, categoryID).Error; err != nil {
		return notFound(c, "Category")
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		return deleteCategoryTree(tx, &category)
	})
	if err != nil {
		utils.LogError("category_delete_failed", err, map[string]interface{}{"category_id": categoryID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete category",
		})
	}

	return c.JSON(fiber.Map{"message": "Category deleted"})
}

func deleteCategoryTree(tx *gorm.DB, category *models.Category) error {
	var projects []models.Project
	if err := tx.Where("category_id = ?", category.ID).Find(&projects).Error; err != nil {
		return err
	}
	for i := range projects {
		if err := deleteProjectTree(tx, &projects[i]); err != nil {
			return err
		}
	}
	if err := access.PurgeGrants(tx, models.ResourceRef{Type: models.ResourceCategory, ID: category.ID}); err != nil {
		return err
	}
	return tx.Delete(category).Error
}
