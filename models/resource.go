package models

import (
	"time"

	"gorm.io/gorm"
)

// Category groups projects. It may live inside a space; projects and tasks
// under it inherit that space unless the project overrides it.
type Category struct {
	gorm.Model
	OwnerID  *uint  `gorm:"index" json:"owner_id"`
	SpaceID  *uint  `gorm:"index" json:"space_id"`
	Name     string `gorm:"not null" json:"name"`
	Position int    `gorm:"default:0" json:"position"`

	// Relations
	Owner    *User     `json:"-"`
	Space    *Space    `json:"-"`
	Projects []Project `gorm:"foreignKey:CategoryID" json:"projects,omitempty"`
}

// Project is a plannable unit on the chart. SpaceID, when set, overrides the
// category's space for access purposes.
type Project struct {
	gorm.Model
	OwnerID    *uint  `gorm:"index" json:"owner_id"`
	CategoryID uint   `gorm:"not null;index" json:"category_id"`
	SpaceID    *uint  `gorm:"index" json:"space_id"`
	Name       string `gorm:"not null" json:"name"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	// Relations
	Owner    *User    `json:"-"`
	Category Category `json:"-"`
	Space    *Space   `json:"-"`
	Tasks    []Task   `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

// Task is a bar on the chart. ParentTaskID nests subtasks for display only;
// access is always resolved through the project.
type Task struct {
	gorm.Model
	OwnerID      *uint  `gorm:"index" json:"owner_id"`
	ProjectID    uint   `gorm:"not null;index" json:"project_id"`
	ParentTaskID *uint  `gorm:"index" json:"parent_task_id"`
	Name         string `gorm:"not null" json:"name"`

	StartDate *time.Time `json:"start_date"`
	DueDate   *time.Time `json:"due_date"`
	Progress  int        `gorm:"default:0" json:"progress"` // 0-100
	Position  int        `gorm:"default:0" json:"position"`
	Done      bool       `gorm:"default:false" json:"done"`

	// Relations
	Owner    *User   `json:"-"`
	Project  Project `json:"-"`
	Parent   *Task   `gorm:"foreignKey:ParentTaskID" json:"-"`
	Subtasks []Task  `gorm:"foreignKey:ParentTaskID" json:"subtasks,omitempty"`
}
