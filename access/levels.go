package access

import "ganttly/models"

// level names a point in the containment tree at which a grant may attach.
type level int

const (
	levelSelf level = iota
	levelSpace
	levelProject
	levelCategory
)

// shareLevels is the ordered list of levels at which a direct user share is
// consulted for each resource type. The resolver walks it top to bottom and
// stops at the first hit; the list filter ORs every entry. Keeping both
// derived from this one table is what guarantees a row shows up in a listing
// exactly when the single-item check would allow it.
func shareLevels(t models.ResourceType) []level {
	switch t {
	case models.ResourceSpace:
		return []level{levelSelf}
	case models.ResourceCategory:
		return []level{levelSelf, levelSpace}
	case models.ResourceProject:
		return []level{levelSelf, levelSpace, levelCategory}
	case models.ResourceTask:
		return []level{levelSelf, levelSpace, levelProject, levelCategory}
	}
	return nil
}

// linkLevels is the share-link counterpart of shareLevels. Links on an
// ancestor category only ever apply to tasks, not to projects.
func linkLevels(t models.ResourceType) []level {
	switch t {
	case models.ResourceSpace:
		return []level{levelSelf}
	case models.ResourceCategory:
		return []level{levelSelf, levelSpace}
	case models.ResourceProject:
		return []level{levelSelf, levelSpace}
	case models.ResourceTask:
		return []level{levelSelf, levelSpace, levelProject, levelCategory}
	}
	return nil
}

// levelRef maps a level to the concrete resource it denotes for the given
// target and its ancestry. ok is false when the ancestry has no resource at
// that level (e.g. a category outside any space).
func levelRef(target models.ResourceRef, anc Ancestry, l level) (models.ResourceRef, bool) {
	switch l {
	case levelSelf:
		return target, true
	case levelSpace:
		if anc.SpaceID == nil {
			return models.ResourceRef{}, false
		}
		return models.ResourceRef{Type: models.ResourceSpace, ID: *anc.SpaceID}, true
	case levelProject:
		if anc.ProjectID == nil {
			return models.ResourceRef{}, false
		}
		return models.ResourceRef{Type: models.ResourceProject, ID: *anc.ProjectID}, true
	case levelCategory:
		if anc.CategoryID == nil {
			return models.ResourceRef{}, false
		}
		return models.ResourceRef{Type: models.ResourceCategory, ID: *anc.CategoryID}, true
	}
	return models.ResourceRef{}, false
}
