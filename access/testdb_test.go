package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ganttly/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A fresh pool connection would see a fresh empty in-memory database,
	// so pin everything to a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Space{},
		&models.SpaceMember{},
		&models.Category{},
		&models.Project{},
		&models.Task{},
		&models.UserShare{},
		&models.ShareLink{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "x", IsActive: true, TokenVersion: 1}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// createSpace creates a space with the creator as its admin member.
func createSpace(t *testing.T, db *gorm.DB, creator *models.User, name string) *models.Space {
	t.Helper()
	space := models.Space{Name: name, CreatorID: creator.ID}
	require.NoError(t, db.Create(&space).Error)
	member := models.SpaceMember{SpaceID: space.ID, UserID: creator.ID, Role: models.RoleAdmin}
	require.NoError(t, db.Create(&member).Error)
	return &space
}

func addMember(t *testing.T, db *gorm.DB, space *models.Space, user *models.User, role string) {
	t.Helper()
	member := models.SpaceMember{SpaceID: space.ID, UserID: user.ID, Role: role}
	require.NoError(t, db.Create(&member).Error)
}

func createCategory(t *testing.T, db *gorm.DB, owner *models.User, spaceID *uint, name string) *models.Category {
	t.Helper()
	category := models.Category{Name: name, SpaceID: spaceID}
	if owner != nil {
		id := owner.ID
		category.OwnerID = &id
	}
	require.NoError(t, db.Create(&category).Error)
	return &category
}

func createProject(t *testing.T, db *gorm.DB, owner *models.User, category *models.Category, spaceID *uint, name string) *models.Project {
	t.Helper()
	project := models.Project{Name: name, CategoryID: category.ID, SpaceID: spaceID}
	if owner != nil {
		id := owner.ID
		project.OwnerID = &id
	}
	require.NoError(t, db.Create(&project).Error)
	return &project
}

func createTask(t *testing.T, db *gorm.DB, owner *models.User, project *models.Project, name string) *models.Task {
	t.Helper()
	task := models.Task{Name: name, ProjectID: project.ID}
	if owner != nil {
		id := owner.ID
		task.OwnerID = &id
	}
	require.NoError(t, db.Create(&task).Error)
	return &task
}

func createShare(t *testing.T, db *gorm.DB, grantor, target *models.User, ref models.ResourceRef, permission string) *models.UserShare {
	t.Helper()
	share, err := NewGrantStore(db).CreateUserShare(grantor.ID, target.ID, ref, permission)
	require.NoError(t, err)
	return share
}

func createLink(t *testing.T, db *gorm.DB, owner *models.User, ref models.ResourceRef, permission string, expiresAt *time.Time) *models.ShareLink {
	t.Helper()
	link, err := NewGrantStore(db).CreateShareLink(owner.ID, ref, permission, expiresAt)
	require.NoError(t, err)
	return link
}

func userPrincipal(user *models.User) Principal {
	id := user.ID
	return Principal{UserID: &id}
}

func tokenPrincipal(token string) Principal {
	return Principal{ShareToken: token}
}

func spaceRef(space *models.Space) models.ResourceRef {
	return models.ResourceRef{Type: models.ResourceSpace, ID: space.ID}
}

func categoryRef(category *models.Category) models.ResourceRef {
	return models.ResourceRef{Type: models.ResourceCategory, ID: category.ID}
}

func projectRef(project *models.Project) models.ResourceRef {
	return models.ResourceRef{Type: models.ResourceProject, ID: project.ID}
}

func taskRef(task *models.Task) models.ResourceRef {
	return models.ResourceRef{Type: models.ResourceTask, ID: task.ID}
}

func past() *time.Time {
	ts := time.Now().Add(-time.Hour)
	return &ts
}

func future() *time.Time {
	ts := time.Now().Add(24 * time.Hour)
	return &ts
}
