package access

import (
	"errors"

	"gorm.io/gorm"

	"ganttly/models"
)

// ErrNotFound is returned when a referenced resource does not exist. Callers
// surface it as a 404, never a 403, so probing ids leaks nothing.
var ErrNotFound = errors.New("resource not found")

// Graph resolves a resource's ancestry: its owner and the project, category
// and space enclosing it. It is read-only.
type Graph struct {
	db *gorm.DB
}

// NewGraph creates a Graph on the given store.
func NewGraph(db *gorm.DB) *Graph {
	return &Graph{db: db}
}

// Ancestry describes where a resource sits in the containment tree. SpaceID
// is the effective space: the resource's own space if set, else the one
// inherited through its category.
type Ancestry struct {
	OwnerID    *uint
	ProjectID  *uint
	CategoryID *uint
	SpaceID    *uint
}

// Ancestors resolves the ancestry of the referenced resource. It returns
// ErrNotFound when the resource, or any link on its containment chain, does
// not exist.
func (g *Graph) Ancestors(ref models.ResourceRef) (Ancestry, error) {
	switch ref.Type {
	case models.ResourceSpace:
		var space models.Space
		if err := g.db.First(&space, ref.ID).Error; err != nil {
			return Ancestry{}, notFound(err)
		}
		id := space.ID
		return Ancestry{OwnerID: &space.CreatorID, SpaceID: &id}, nil

	case models.ResourceCategory:
		var category models.Category
		if err := g.db.First(&category, ref.ID).Error; err != nil {
			return Ancestry{}, notFound(err)
		}
		id := category.ID
		return Ancestry{OwnerID: category.OwnerID, CategoryID: &id, SpaceID: category.SpaceID}, nil

	case models.ResourceProject:
		var project models.Project
		if err := g.db.First(&project, ref.ID).Error; err != nil {
			return Ancestry{}, notFound(err)
		}
		return g.projectAncestry(&project)

	case models.ResourceTask:
		var task models.Task
		if err := g.db.First(&task, ref.ID).Error; err != nil {
			return Ancestry{}, notFound(err)
		}
		var project models.Project
		if err := g.db.First(&project, task.ProjectID).Error; err != nil {
			return Ancestry{}, notFound(err)
		}
		anc, err := g.projectAncestry(&project)
		if err != nil {
			return Ancestry{}, err
		}
		anc.OwnerID = task.OwnerID
		return anc, nil
	}

	return Ancestry{}, ErrNotFound
}

func (g *Graph) projectAncestry(project *models.Project) (Ancestry, error) {
	var category models.Category
	if err := g.db.First(&category, project.CategoryID).Error; err != nil {
		return Ancestry{}, notFound(err)
	}

	projectID := project.ID
	categoryID := category.ID
	spaceID := project.SpaceID
	if spaceID == nil {
		spaceID = category.SpaceID
	}

	return Ancestry{
		OwnerID:    project.OwnerID,
		ProjectID:  &projectID,
		CategoryID: &categoryID,
		SpaceID:    spaceID,
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
