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

// TaskController implements task CRUD behind the access resolver.
type TaskController struct {
	DB       *gorm.DB
	Resolver *access.Resolver
	Filter   *access.ListFilter
	Logger   *log.Logger
}

func NewTaskController(db *gorm.DB, logger *log.Logger) *TaskController {
	return &TaskController{
		DB:       db,
		Resolver: access.NewResolver(db),
		Filter:   access.NewListFilter(),
		Logger:   logger,
	}
}

type CreateTaskRequest struct {
	ProjectID    uint       `json:"project_id" validate:"required"`
	ParentTaskID *uint      `json:"parent_task_id"`
	Name         string     `json:"name" validate:"required,max=500"`
	StartDate    *time.Time `json:"start_date"`
	DueDate      *time.Time `json:"due_date"`
	Position     int        `json:"position"`
}

type UpdateTaskRequest struct {
	Name         *string    `json:"name" validate:"omitempty,max=500"`
	ParentTaskID *uint      `json:"parent_task_id"`
	StartDate    *time.Time `json:"start_date"`
	DueDate      *time.Time `json:"due_date"`
	Progress     *int       `json:"progress" validate:"omitempty,min=0,max=100"`
	Position     *int       `json:"position"`
	Done         *bool      `json:"done"`
}

// CreateTask creates a task in a project the principal may edit. A parent
// task must belong to the same project.
func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	var req CreateTaskRequest
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

	projectRef := models.ResourceRef{Type: models.ResourceProject, ID: req.ProjectID}
	decision := tc.Resolver.CanAccess(middleware.GetPrincipal(c), projectRef)
	if !decision.Allowed {
		return notFound(c, "Project")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	if req.ParentTaskID != nil {
		var parent models.Task
		if err := tc.DB.First(&parent, *req.ParentTaskID).Error; err != nil || parent.ProjectID != req.ProjectID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Parent task must belong to the same project",
			})
		}
	}

	task := models.Task{
		ProjectID:    req.ProjectID,
		ParentTaskID: req.ParentTaskID,
		Name:         req.Name,
		StartDate:    req.StartDate,
		DueDate:      req.DueDate,
		Position:     req.Position,
	}
	if user, ok := c.Locals("user").(*models.User); ok {
		ownerID := user.ID
		task.OwnerID = &ownerID
	}

	if err := tc.DB.Create(&task).Error; err != nil {
		utils.LogError("task_create_failed", err, map[string]interface{}{"project_id": req.ProjectID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create task",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetTasks lists visible tasks, optionally restricted to a project.
func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)

	query := tc.DB.Scopes(tc.Filter.Tasks(principal))
	if projectID := c.QueryInt("project_id"); projectID > 0 {
		query = query.Where("tasks.project_id = ?", projectID)
	}

	var tasks []models.Task
	if err := query.Order("tasks.position, tasks.id").Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}
	return c.JSON(tasks)
}

// GetTask returns one task with its subtasks.
func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	taskID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceTask, ID: taskID}

	decision := tc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Task")
	}

	var task models.Task
	if err := tc.DB.Preload("Subtasks").First(&task, taskID).Error; err != nil {
		return notFound(c, "Task")
	}

	return c.JSON(fiber.Map{
		"task":       task,
		"permission": decision.Permission,
	})
}

// UpdateTask changes task fields. Edit access required.
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	taskID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceTask, ID: taskID}

	decision := tc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Task")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var req UpdateTaskRequest
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

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		return notFound(c, "Task")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.Progress != nil {
		updates["progress"] = *req.Progress
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if req.Done != nil {
		updates["done"] = *req.Done
	}
	if req.ParentTaskID != nil {
		var parent models.Task
		if err := tc.DB.First(&parent, *req.ParentTaskID).Error; err != nil || parent.ProjectID != task.ProjectID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Parent task must belong to the same project",
			})
		}
		updates["parent_task_id"] = *req.ParentTaskID
	}

	if len(updates) > 0 {
		if err := tc.DB.Model(&task).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update task",
			})
		}
	}
	return c.JSON(task)
}

// DeleteTask removes the task, reparents its subtasks to the top level, and
// purges grants referencing it, in one transaction.
func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	taskID := parseID(c, "id")
	ref := models.ResourceRef{Type: models.ResourceTask, ID: taskID}

	decision := tc.Resolver.CanAccess(middleware.GetPrincipal(c), ref)
	if !decision.Allowed {
		return notFound(c, "Task")
	}
	if decision.Permission != models.PermissionEdit {
		return viewOnly(c)
	}

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		return notFound(c, "Task")
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("parent_task_id = ?", task.ID).
			Update("parent_task_id", nil).Error; err != nil {
			return err
		}
		if err := access.PurgeGrants(tx, ref); err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		utils.LogError("task_delete_failed", err, map[string]interface{}{"task_id": taskID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete task",
		})
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}
