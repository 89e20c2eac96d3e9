package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "ganttly/controllers"
	"ganttly/middleware"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize controllers with their respective loggers
	spaceController := controller.NewSpaceController(db, log.New(os.Stdout, "SPACE: ", log.LstdFlags))
	categoryController := controller.NewCategoryController(db, log.New(os.Stdout, "CATEGORY: ", log.LstdFlags))
	projectController := controller.NewProjectController(db, log.New(os.Stdout, "PROJECT: ", log.LstdFlags))
	taskController := controller.NewTaskController(db, log.New(os.Stdout, "TASK: ", log.LstdFlags))
	shareController := controller.NewShareController(db, log.New(os.Stdout, "SHARE: ", log.LstdFlags))

	// Resource routes accept either a JWT, a share token, or both. The
	// access resolver decides per request; the limiter slows down token
	// guessing on this surface.
	api := app.Group("/api/v1",
		middleware.Principal(),
		middleware.ShareTokenRateLimiter(),
		logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))

	// Space routes. Lifecycle and membership are account-only surfaces.
	space := api.Group("/spaces")
	space.Get("/", spaceController.GetSpaces)
	space.Get("/:id", spaceController.GetSpace)
	space.Get("/:id/members", spaceController.GetMembers)

	spaceAdmin := app.Group("/api/v1/spaces", middleware.Protected())
	spaceAdmin.Post("/", spaceController.CreateSpace)
	spaceAdmin.Put("/:id", spaceController.RenameSpace)
	spaceAdmin.Delete("/:id", spaceController.DeleteSpace)
	spaceAdmin.Post("/:id/members", spaceController.InviteMember)
	spaceAdmin.Delete("/:id/members/:userID", spaceController.RemoveMember)
	spaceAdmin.Put("/:id/members/:userID", spaceController.UpdateMemberRole)
	spaceAdmin.Post("/:id/leave", spaceController.LeaveSpace)

	// Category routes
	category := api.Group("/categories")
	category.Post("/", middleware.Protected(), categoryController.CreateCategory)
	category.Get("/", categoryController.GetCategories)
	category.Get("/:id", categoryController.GetCategory)
	category.Put("/:id", categoryController.UpdateCategory)
	category.Delete("/:id", categoryController.DeleteCategory)

	// Project routes
	project := api.Group("/projects")
	project.Post("/", projectController.CreateProject)
	project.Get("/", projectController.GetProjects)
	project.Get("/:id", projectController.GetProject)
	project.Get("/:id/timeline", projectController.GetTimeline)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)

	// Task routes
	task := api.Group("/tasks")
	task.Post("/", taskController.CreateTask)
	task.Get("/", taskController.GetTasks)
	task.Get("/:id", taskController.GetTask)
	task.Put("/:id", taskController.UpdateTask)
	task.Delete("/:id", taskController.DeleteTask)

	// Sharing routes (grantors are always authenticated users)
	share := app.Group("/api/v1/shares", middleware.Protected())
	share.Post("/", shareController.CreateShare)
	share.Get("/", shareController.GetShares)
	share.Delete("/:id", shareController.RevokeShare)

	link := app.Group("/api/v1/share-links", middleware.Protected())
	link.Post("/", shareController.CreateShareLink)
	link.Get("/", shareController.GetShareLinks)
	link.Delete("/:id", shareController.RevokeShareLink)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
