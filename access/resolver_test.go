package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ganttly/models"
)

func TestResolverNoPrincipal(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	owner := createUser(t, db, "a@example.com")
	category := createCategory(t, db, owner, nil, "C1")

	decision := resolver.CanAccess(Principal{}, categoryRef(category))
	assert.Equal(t, Denied, decision)
}

func TestResolverStrangerDenied(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")

	decision := resolver.CanAccess(userPrincipal(b), categoryRef(category))
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.PermissionView, decision.Permission)
}

func TestResolverOwnerSupremacy(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	// Even a conflicting view share cannot demote the owner.
	createShare(t, db, b, a, taskRef(task), "view")

	for _, ref := range []models.ResourceRef{categoryRef(category), projectRef(project), taskRef(task)} {
		decision := resolver.CanAccess(userPrincipal(a), ref)
		assert.True(t, decision.Allowed, "ref %v", ref)
		assert.Equal(t, models.PermissionEdit, decision.Permission, "ref %v", ref)
	}
}

func TestResolverDirectShareView(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")

	createShare(t, db, a, b, projectRef(project), "view")

	decision := resolver.CanAccess(userPrincipal(b), projectRef(project))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionView, decision.Permission)

	// The share on the project does not leak upward to the category.
	assert.False(t, resolver.CanAccess(userPrincipal(b), categoryRef(category)).Allowed)
}

func TestResolverMembershipSupremacy(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	space := createSpace(t, db, a, "S1")
	addMember(t, db, space, b, models.RoleMember)
	category := createCategory(t, db, a, &space.ID, "C2")
	project := createProject(t, db, a, category, nil, "P2")
	task := createTask(t, db, a, project, "T2")

	// A view share on the task cannot demote the membership: the space
	// check runs before share lookups.
	createShare(t, db, a, b, taskRef(task), "view")

	for _, ref := range []models.ResourceRef{spaceRef(space), categoryRef(category), projectRef(project), taskRef(task)} {
		decision := resolver.CanAccess(userPrincipal(b), ref)
		assert.True(t, decision.Allowed, "ref %v", ref)
		assert.Equal(t, models.PermissionEdit, decision.Permission, "ref %v", ref)
	}
}

func TestResolverSpaceShare(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	space := createSpace(t, db, a, "S1")
	category := createCategory(t, db, a, &space.ID, "C1")
	project := createProject(t, db, a, category, nil, "P1")

	// Sharing the space itself grants its permission on everything inside.
	createShare(t, db, a, b, spaceRef(space), "view")

	for _, ref := range []models.ResourceRef{spaceRef(space), categoryRef(category), projectRef(project)} {
		decision := resolver.CanAccess(userPrincipal(b), ref)
		assert.True(t, decision.Allowed, "ref %v", ref)
		assert.Equal(t, models.PermissionView, decision.Permission, "ref %v", ref)
	}
}

func TestResolverAncestorShares(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	c := createUser(t, db, "c@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	// A share on the category reaches both the project and the task.
	createShare(t, db, a, b, categoryRef(category), "edit")
	assert.Equal(t, models.PermissionEdit, resolver.CanAccess(userPrincipal(b), projectRef(project)).Permission)
	assert.Equal(t, models.PermissionEdit, resolver.CanAccess(userPrincipal(b), taskRef(task)).Permission)

	// A share on the project reaches the task but not the category.
	createShare(t, db, a, c, projectRef(project), "view")
	assert.True(t, resolver.CanAccess(userPrincipal(c), taskRef(task)).Allowed)
	assert.False(t, resolver.CanAccess(userPrincipal(c), categoryRef(category)).Allowed)
}

func TestResolverFirstMatchOrder(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	// B holds view directly on the task and edit on its project. The
	// direct share is checked first and wins, even though it grants less.
	createShare(t, db, a, b, taskRef(task), "view")
	createShare(t, db, a, b, projectRef(project), "edit")

	decision := resolver.CanAccess(userPrincipal(b), taskRef(task))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionView, decision.Permission)
}

func TestResolverPermissionNormalization(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")

	share := createShare(t, db, a, b, categoryRef(category), "view")
	// Corrupt the stored value behind the store's back.
	db.Model(share).Update("permission", "superadmin")

	decision := resolver.CanAccess(userPrincipal(b), categoryRef(category))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionView, decision.Permission)
}

func TestResolverEffectiveSpaceOverride(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	c := createUser(t, db, "c@example.com")
	categorySpace := createSpace(t, db, a, "CS")
	projectSpace := createSpace(t, db, a, "PS")
	addMember(t, db, categorySpace, b, models.RoleMember)
	addMember(t, db, projectSpace, c, models.RoleMember)

	category := createCategory(t, db, a, &categorySpace.ID, "C1")
	project := createProject(t, db, a, category, &projectSpace.ID, "P1")

	// The project's own space wins: members of the category's space have
	// no claim on it.
	assert.False(t, resolver.CanAccess(userPrincipal(b), projectRef(project)).Allowed)
	assert.True(t, resolver.CanAccess(userPrincipal(c), projectRef(project)).Allowed)
}

func TestResolverShareLinkOnResource(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	link := createLink(t, db, a, taskRef(task), "edit", nil)

	decision := resolver.CanAccess(tokenPrincipal(link.Token), taskRef(task))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionEdit, decision.Permission)

	// The token is scoped to the task; the project stays invisible.
	assert.False(t, resolver.CanAccess(tokenPrincipal(link.Token), projectRef(project)).Allowed)

	// A bogus token has no claim at all.
	assert.False(t, resolver.CanAccess(tokenPrincipal("nope"), taskRef(task)).Allowed)
}

func TestResolverShareLinkExpiry(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	category := createCategory(t, db, a, nil, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	expired := createLink(t, db, a, taskRef(task), "edit", past())
	live := createLink(t, db, a, taskRef(task), "view", future())

	decision := resolver.CanAccess(tokenPrincipal(expired.Token), taskRef(task))
	assert.Equal(t, Denied, decision, "expired link behaves as if it does not exist")

	decision = resolver.CanAccess(tokenPrincipal(live.Token), taskRef(task))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionView, decision.Permission)
}

func TestResolverShareLinkAncestors(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	space := createSpace(t, db, a, "S1")
	category := createCategory(t, db, a, &space.ID, "C1")
	project := createProject(t, db, a, category, nil, "P1")
	task := createTask(t, db, a, project, "T1")

	// A link on the space opens everything inside it.
	spaceLink := createLink(t, db, a, spaceRef(space), "view", nil)
	for _, ref := range []models.ResourceRef{spaceRef(space), categoryRef(category), projectRef(project), taskRef(task)} {
		assert.True(t, resolver.CanAccess(tokenPrincipal(spaceLink.Token), ref).Allowed, "ref %v", ref)
	}

	// A link on the category opens its tasks but not its projects: the
	// category hop in the token path exists only for tasks.
	categoryLink := createLink(t, db, a, categoryRef(category), "view", nil)
	assert.True(t, resolver.CanAccess(tokenPrincipal(categoryLink.Token), categoryRef(category)).Allowed)
	assert.True(t, resolver.CanAccess(tokenPrincipal(categoryLink.Token), taskRef(task)).Allowed)
	assert.False(t, resolver.CanAccess(tokenPrincipal(categoryLink.Token), projectRef(project)).Allowed)

	// A link on the project opens its tasks.
	projectLink := createLink(t, db, a, projectRef(project), "edit", nil)
	assert.True(t, resolver.CanAccess(tokenPrincipal(projectLink.Token), taskRef(task)).Allowed)
	assert.Equal(t, models.PermissionEdit, resolver.CanAccess(tokenPrincipal(projectLink.Token), taskRef(task)).Permission)
}

func TestResolverTokenBeatsUserGrants(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	category := createCategory(t, db, a, nil, "C1")

	createShare(t, db, a, b, categoryRef(category), "view")
	link := createLink(t, db, a, categoryRef(category), "edit", nil)

	// A user presenting a token is resolved through the token first.
	principal := userPrincipal(b)
	principal.ShareToken = link.Token
	decision := resolver.CanAccess(principal, categoryRef(category))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionEdit, decision.Permission)
}

func TestResolverNonexistentResource(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")

	for _, ref := range []models.ResourceRef{
		{Type: models.ResourceCategory, ID: 12345},
		{Type: models.ResourceProject, ID: 12345},
		{Type: models.ResourceTask, ID: 12345},
		{Type: models.ResourceSpace, ID: 12345},
		{Type: "widget", ID: 1},
		{Type: models.ResourceTask, ID: 0},
	} {
		assert.Equal(t, Denied, resolver.CanAccess(userPrincipal(a), ref), "ref %v", ref)
	}
}

func TestResolverSpaceShareOnSpaceResource(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db)

	a := createUser(t, db, "a@example.com")
	b := createUser(t, db, "b@example.com")
	space := createSpace(t, db, a, "S1")

	createShare(t, db, a, b, spaceRef(space), "edit")

	decision := resolver.CanAccess(userPrincipal(b), spaceRef(space))
	assert.True(t, decision.Allowed)
	assert.Equal(t, models.PermissionEdit, decision.Permission)
}
