package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"ganttly/access"
	"ganttly/middleware"
	"ganttly/models"
	"ganttly/utils"
)

// ProjectController implements project CRUD and the timeline endpoint.
type ProjectController struct {
	DB       *gorm.DB
	Store    *access.GrantStore
	Resolver *access.Resolver
	Filter   *access.ListFilter
	Logger   *log.Logger
}

func NewProjectController(db *gorm.DB, logger *log.Logger) *ProjectController {
	return &ProjectController{
		DB:       db,
		Store:    access.NewGrantStore(db),
		Resolver: access.NewResolver(db),
		Filter:   access.NewListFilter(),
		Logger:   logger,
	}
}

type CreateProjectRequest struct {
	CategoryID uint       `json:"category_id" validate:"required"`
	Name       string     `json:"name" validate:"required,max=200"`
	SpaceID    *uint      `json:"space_id"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name      *string    `json:"name" validate:"omitempty,max=200"`
	SpaceID   *uint      `json:"space_id"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// CreateProject creates a project under a category the principal may edit.
func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
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

	categoryRef := models.ResourceRef{Type: models.ResourceCategory, ID: req.CategoryID}
	decision := pc.Resolver.CanAccess(middleware.GetPrincipal(c), categoryRef)
	if !decision.Allowed {
		return notFound(c, "Category")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	project := models.Project{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		SpaceID:    req.SpaceID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}
	if user, ok := c.Locals("user").(*models.User); ok {
		ownerID := user.ID
		project.OwnerID = &ownerID

		if req.SpaceID != nil {
			if _, err := pc.Store.MemberRole(*req.SpaceID, user.ID); err != nil {
				return notFound(c, "Space")
			}
		}
	} else if req.SpaceID != nil {
		// Anonymous principals cannot place projects in spaces
		return viewOnly(c)
	}

	if err := pc.DB.Create(&project).Error; err != nil {
		utils.LogError("project_create_failed", err, map[string]interface{}{"category_id": req.CategoryID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create project",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetProjects lists visible projects, optionally restricted to a category.
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)

	query := pc.DB.Scopes(pc.Filter.Projects(principal))
	if categoryID := c.QueryInt("category_id"); categoryID > 0 {
		query = query.Where("projects.category_id = ?", categoryID)
	}

	var projects []models.Project
	if err := query.Order("projects.id").Find(&projects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch projects",
		})
	}
	return c.JSON(projects)
}

// GetProject returns one project.
func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	projectID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceProject, ID: projectID}

	decision := pc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Project")
	}

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return notFound(c, "Project")
	}

	return c.JSON(fiber.Map{
		"project":    project,
		"permission": decision.Permission,
	})
}

// GetTimeline returns the project's tasks ordered for chart rendering.
func (pc *ProjectController) GetTimeline(c *fiber.Ctx) error {
	projectID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceProject, ID: projectID}

	decision := pc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Project")
	}

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return notFound(c, "Project")
	}

	var tasks []models.Task
	err := pc.DB.Where("project_id = ?", projectID).
		Order("start_date IS NULL, start_date, position, id").
		Find(&tasks).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch timeline",
		})
	}

	return c.JSON(fiber.Map{
		"project":    project,
		"tasks":      tasks,
		"permission": decision.Permission,
	})
}

// UpdateProject changes project fields. Edit access required.
func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	projectID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceProject, ID: projectID}

	decision := pc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Project")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var req UpdateProjectRequest
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

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return notFound(c, "Project")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.SpaceID != nil {
		user, _ := c.Locals("user").(*models.User)
		if user == nil {
			return viewOnly(c)
		}
		if _, err := pc.Store.MemberRole(*req.SpaceID, user.ID); err != nil {
			return notFound(c, "Space")
		}
		updates["space_id"] = *req.SpaceID
	}

	if len(updates) > 0 {
		if err := pc.DB.Model(&project).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update project",
			})
		}
	}
	return c.JSON(project)
}

// DeleteProject removes the project, its tasks and every grant referencing
// them, in one transaction.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	projectID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceProject, ID: projectID}

	decision := pc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Project")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return notFound(c, "Project")
	}

	err := pc.DB.Transaction(func(tx *gorm.DB) error {
		return deleteProjectTree(tx, &project)
	})
	if err != nil {
		utils.LogError("project_delete_failed", err, map[string]interface{}{"project_id": projectID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete project",
		})
	}

	return c.JSON(fiber.Map{"message": "Project deleted"})
}

func deleteProjectTree(tx *gorm.DB, project *models.Project) error {
	var tasks []models.Task
	if err := tx.Where("project_id = ?", project.ID).Find(&tasks).Error; err != nil {
		return err
	}

	refs := make([]models.ResourceRef, 0, len(tasks)+1)
	for _, task := range tasks {
		refs = append(refs, models.ResourceRef{Type: models.ResourceTask, ID: task.ID})
	}
	refs = append(refs, models.ResourceRef{Type: models.ResourceProject, ID: project.ID})

	if err := access.PurgeGrants(tx, refs...); err != nil {
		return err
	}
	if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
		return err
	}
	return tx.Delete(project).Error
}
