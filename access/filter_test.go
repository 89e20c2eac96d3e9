package access

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ganttly/models"
)

// world is a fixture covering every grant source: ownership, membership,
// direct shares, space shares, ancestor shares and links at several levels,
// with and without expiry.
type world struct {
	db       *gorm.DB
	resolver *Resolver
	filter   *ListFilter

	principals map[string]Principal
}

func buildWorld(t *testing.T) *world {
	db := newTestDB(t)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	c := createUser(t, db, "c@example.com")
	d := createUser(t, db, "d@example.com")

	teamSpace := createSpace(t, db, a, "Team")
	addMember(t, db, teamSpace, b, models.RoleMember)
	sideSpace := createSpace(t, db, c, "Side")

	// Personal tree, no space
	personal := createCategory(t, db, a, nil, "Personal")
	personalProject := createProject(t, db, a, personal, nil, "Home")
	personalTask := createTask(t, db, a, personalProject, "Chores")

	// Team tree inside teamSpace
	teamCategory := createCategory(t, db, a, &teamSpace.ID, "Team Work")
	teamProject := createProject(t, db, a, teamCategory, nil, "Release")
	createTask(t, db, a, teamProject, "Cut branch")

	// Project that overrides its category's space
	overrideProject := createProject(t, db, a, teamCategory, &sideSpace.ID, "Skunkworks")
	createTask(t, db, b, overrideProject, "Prototype")

	// Ownerless category reachable only through grants
	orphan := createCategory(t, db, nil, nil, "Orphan")
	orphanProject := createProject(t, db, nil, orphan, nil, "Drifting")
	orphanTask := createTask(t, db, nil, orphanProject, "Flotsam")

	// Direct shares at every level
	createShare(t, db, a, c, categoryRef(personal), "view")
	createShare(t, db, a, c, projectRef(teamProject), "edit")
	createShare(t, db, a, d, taskRef(personalTask), "view")
	createShare(t, db, a, d, spaceRef(teamSpace), "view")
	createShare(t, db, c, a, categoryRef(orphan), "edit")

	// Links: one live on the orphan project, one expired on the team
	// category, one live on the team space
	liveLink := createLink(t, db, a, projectRef(orphanProject), "view", future())
	expiredLink := createLink(t, db, a, categoryRef(teamCategory), "edit", past())
	spaceLink := createLink(t, db, a, spaceRef(teamSpace), "view", nil)
	createLink(t, db, a, taskRef(orphanTask), "edit", nil)

	bID := b.ID
	principals := map[string]Principal{
		"owner-admin":    userPrincipal(a),
		"member":         userPrincipal(b),
		"share-holder":   userPrincipal(c),
		"outsider":       userPrincipal(d),
		"anon":           {},
		"anon-live":      tokenPrincipal(liveLink.Token),
		"anon-expired":   tokenPrincipal(expiredLink.Token),
		"anon-space":     tokenPrincipal(spaceLink.Token),
		"member-token":   {UserID: &bID, ShareToken: liveLink.Token},
		"anon-bad-token": tokenPrincipal("deadbeef"),
	}

	return &world{
		db:         db,
		resolver:   NewResolver(db),
		filter:     NewListFilter(),
		principals: principals,
	}
}

// TestFilterMatchesResolver is the consistency contract: a row appears in a
// filtered listing exactly when the single-item check allows it, for every
// principal and every resource type.
func TestFilterMatchesResolver(t *testing.T) {
	w := buildWorld(t)

	for name, principal := range w.principals {
		t.Run(name, func(t *testing.T) {
			w.checkSpaces(t, principal)
			w.checkCategories(t, principal)
			w.checkProjects(t, principal)
			w.checkTasks(t, principal)
		})
	}
}

func (w *world) checkSpaces(t *testing.T, p Principal) {
	var listed []models.Space
	require.NoError(t, w.db.Scopes(w.filter.Spaces(p)).Find(&listed).Error)
	listedIDs := spaceIDs(listed)

	var all []models.Space
	require.NoError(t, w.db.Find(&all).Error)
	for _, space := range all {
		ref := models.ResourceRef{Type: models.ResourceSpace, ID: space.ID}
		expectConsistent(t, w.resolver.CanAccess(p, ref).Allowed, listedIDs[space.ID], ref)
	}
}

func (w *world) checkCategories(t *testing.T, p Principal) {
	var listed []models.Category
	require.NoError(t, w.db.Scopes(w.filter.Categories(p)).Find(&listed).Error)
	listedIDs := map[uint]bool{}
	for _, row := range listed {
		listedIDs[row.ID] = true
	}

	var all []models.Category
	require.NoError(t, w.db.Find(&all).Error)
	for _, category := range all {
		ref := models.ResourceRef{Type: models.ResourceCategory, ID: category.ID}
		expectConsistent(t, w.resolver.CanAccess(p, ref).Allowed, listedIDs[category.ID], ref)
	}
}

func (w *world) checkProjects(t *testing.T, p Principal) {
	var listed []models.Project
	require.NoError(t, w.db.Scopes(w.filter.Projects(p)).Find(&listed).Error)
	listedIDs := map[uint]bool{}
	for _, row := range listed {
		listedIDs[row.ID] = true
	}

	var all []models.Project
	require.NoError(t, w.db.Find(&all).Error)
	for _, project := range all {
		ref := models.ResourceRef{Type: models.ResourceProject, ID: project.ID}
		expectConsistent(t, w.resolver.CanAccess(p, ref).Allowed, listedIDs[project.ID], ref)
	}
}

func (w *world) checkTasks(t *testing.T, p Principal) {
	var listed []models.Task
	require.NoError(t, w.db.Scopes(w.filter.Tasks(p)).Find(&listed).Error)
	listedIDs := map[uint]bool{}
	for _, row := range listed {
		listedIDs[row.ID] = true
	}

	var all []models.Task
	require.NoError(t, w.db.Find(&all).Error)
	for _, task := range all {
		ref := models.ResourceRef{Type: models.ResourceTask, ID: task.ID}
		expectConsistent(t, w.resolver.CanAccess(p, ref).Allowed, listedIDs[task.ID], ref)
	}
}

func expectConsistent(t *testing.T, resolverAllows, listed bool, ref models.ResourceRef) {
	t.Helper()
	assert.Equal(t, resolverAllows, listed,
		fmt.Sprintf("%s/%d: resolver says %v but listing says %v", ref.Type, ref.ID, resolverAllows, listed))
}

func spaceIDs(spaces []models.Space) map[uint]bool {
	ids := map[uint]bool{}
	for _, space := range spaces {
		ids[space.ID] = true
	}
	return ids
}

func TestFilterAnonymousSeesNothing(t *testing.T) {
	w := buildWorld(t)

	var categories []models.Category
	require.NoError(t, w.db.Scopes(w.filter.Categories(Principal{})).Find(&categories).Error)
	assert.Empty(t, categories)

	var tasks []models.Task
	require.NoError(t, w.db.Scopes(w.filter.Tasks(Principal{})).Find(&tasks).Error)
	assert.Empty(t, tasks)
}

func TestFilterExpiredLinkHidesRows(t *testing.T) {
	db := newTestDB(t)
	filter := NewListFilter()

	a := createUser(t, db, "a@example.com")
	category := createCategory(t, db, a, nil, "C1")
	link := createLink(t, db, a, categoryRef(category), "view", future())

	var listed []models.Category
	require.NoError(t, db.Scopes(filter.Categories(tokenPrincipal(link.Token))).Find(&listed).Error)
	assert.Len(t, listed, 1)

	// Push the expiry into the past and the row disappears.
	require.NoError(t, db.Model(&models.ShareLink{}).Where("id = ?", link.ID).Update("expires_at", past()).Error)

	listed = nil
	require.NoError(t, db.Scopes(filter.Categories(tokenPrincipal(link.Token))).Find(&listed).Error)
	assert.Empty(t, listed)
}
