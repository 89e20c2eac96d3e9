package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganttly/models"
)

func TestGraphCategoryAncestry(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	owner := createUser(t, db, "owner@example.com")
	space := createSpace(t, db, owner, "Team")
	category := createCategory(t, db, owner, &space.ID, "Work")

	anc, err := graph.Ancestors(categoryRef(category))
	require.NoError(t, err)
	require.NotNil(t, anc.OwnerID)
	assert.Equal(t, owner.ID, *anc.OwnerID)
	require.NotNil(t, anc.CategoryID)
	assert.Equal(t, category.ID, *anc.CategoryID)
	require.NotNil(t, anc.SpaceID)
	assert.Equal(t, space.ID, *anc.SpaceID)
	assert.Nil(t, anc.ProjectID)
}

func TestGraphProjectInheritsCategorySpace(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	owner := createUser(t, db, "owner@example.com")
	space := createSpace(t, db, owner, "Team")
	category := createCategory(t, db, owner, &space.ID, "Work")
	project := createProject(t, db, owner, category, nil, "Launch")

	anc, err := graph.Ancestors(projectRef(project))
	require.NoError(t, err)
	require.NotNil(t, anc.SpaceID)
	assert.Equal(t, space.ID, *anc.SpaceID, "project without its own space inherits the category's")
	require.NotNil(t, anc.CategoryID)
	assert.Equal(t, category.ID, *anc.CategoryID)
}

func TestGraphProjectSpaceOverridesCategory(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	owner := createUser(t, db, "owner@example.com")
	categorySpace := createSpace(t, db, owner, "Category Space")
	projectSpace := createSpace(t, db, owner, "Project Space")
	category := createCategory(t, db, owner, &categorySpace.ID, "Work")
	project := createProject(t, db, owner, category, &projectSpace.ID, "Launch")

	anc, err := graph.Ancestors(projectRef(project))
	require.NoError(t, err)
	require.NotNil(t, anc.SpaceID)
	assert.Equal(t, projectSpace.ID, *anc.SpaceID)
}

func TestGraphTaskAncestry(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	owner := createUser(t, db, "owner@example.com")
	taskOwner := createUser(t, db, "taskowner@example.com")
	space := createSpace(t, db, owner, "Team")
	category := createCategory(t, db, owner, &space.ID, "Work")
	project := createProject(t, db, owner, category, nil, "Launch")
	task := createTask(t, db, taskOwner, project, "Ship it")

	anc, err := graph.Ancestors(taskRef(task))
	require.NoError(t, err)
	require.NotNil(t, anc.OwnerID)
	assert.Equal(t, taskOwner.ID, *anc.OwnerID, "task ancestry carries the task's own owner")
	require.NotNil(t, anc.ProjectID)
	assert.Equal(t, project.ID, *anc.ProjectID)
	require.NotNil(t, anc.CategoryID)
	assert.Equal(t, category.ID, *anc.CategoryID)
	require.NotNil(t, anc.SpaceID)
	assert.Equal(t, space.ID, *anc.SpaceID)
}

func TestGraphNoSpaceAnywhere(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	owner := createUser(t, db, "owner@example.com")
	category := createCategory(t, db, owner, nil, "Personal")
	project := createProject(t, db, owner, category, nil, "Side project")

	anc, err := graph.Ancestors(projectRef(project))
	require.NoError(t, err)
	assert.Nil(t, anc.SpaceID)
}

func TestGraphNotFound(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	for _, ref := range []models.ResourceRef{
		{Type: models.ResourceCategory, ID: 999},
		{Type: models.ResourceProject, ID: 999},
		{Type: models.ResourceTask, ID: 999},
		{Type: models.ResourceSpace, ID: 999},
	} {
		_, err := graph.Ancestors(ref)
		assert.ErrorIs(t, err, ErrNotFound, "ref %v", ref)
	}
}

func TestGraphUnknownType(t *testing.T) {
	db := newTestDB(t)
	graph := NewGraph(db)

	_, err := graph.Ancestors(models.ResourceRef{Type: "folder", ID: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}
