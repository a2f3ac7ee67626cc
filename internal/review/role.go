package review

import (
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// ResolveRole derives which view/authority a user has for a change, in
// priority order: author of the change, then impacted contributor, then
// owner (any other project member, typically with merge authority).
// A user who is both the author and an impacted contributor on other
// files is always the author.
func ResolveRole(change *models.Change, impacts []*models.Impact, userID string) models.Role {
	if userID == change.AuthorID {
		return models.RoleAuthor
	}
	for _, imp := range impacts {
		if imp.ContributorID == userID {
			return models.RoleContributor
		}
	}
	return models.RoleOwner
}
