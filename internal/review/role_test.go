package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

func TestResolveRole(t *testing.T) {
	change := &models.Change{ID: "chg1", AuthorID: "alice"}
	impacts := []*models.Impact{
		{ChangeID: "chg1", ContributorID: "bob"},
		{ChangeID: "chg1", ContributorID: "carol"},
	}

	assert.Equal(t, models.RoleAuthor, ResolveRole(change, impacts, "alice"))
	assert.Equal(t, models.RoleContributor, ResolveRole(change, impacts, "bob"))
	assert.Equal(t, models.RoleContributor, ResolveRole(change, impacts, "carol"))
	assert.Equal(t, models.RoleOwner, ResolveRole(change, impacts, "dave"))
}

func TestResolveRoleAuthorWins(t *testing.T) {
	// The author can also appear as an impacted contributor; author wins.
	change := &models.Change{ID: "chg1", AuthorID: "alice"}
	impacts := []*models.Impact{{ChangeID: "chg1", ContributorID: "alice"}}
	assert.Equal(t, models.RoleAuthor, ResolveRole(change, impacts, "alice"))
}
