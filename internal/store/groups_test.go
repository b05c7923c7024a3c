package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsCreate(t *testing.T) {
	g := NewGroups()

	group, err := g.Create("gophers", "  go talk  ", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "gophers", group.Name)
	assert.Equal(t, "go talk", group.Description)
	assert.Equal(t, "u1", group.CreatorID)
	assert.Equal(t, []string{"u1"}, group.Members)
	assert.False(t, group.CreatedAt.IsZero())
}

func TestGroupsCreateNameRules(t *testing.T) {
	g := NewGroups()

	_, err := g.Create("  ", "", "u1")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = g.Create("Gophers", "", "u1")
	require.NoError(t, err)

	_, err = g.Create("gophers", "", "u2")
	assert.ErrorIs(t, err, ErrNameTaken, "names are unique case-insensitively")

	_, err = g.Create("GOPHERS", "", "u2")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestGroupsJoin(t *testing.T) {
	g := NewGroups()
	group, _ := g.Create("gophers", "", "u1")

	_, err := g.Join("nope", "u2")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	joined, err := g.Join(group.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, joined.Members)

	_, err = g.Join(group.ID, "u2")
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestGroupsLeave(t *testing.T) {
	g := NewGroups()
	group, _ := g.Create("gophers", "", "u1")
	g.Join(group.ID, "u2")

	_, _, err := g.Leave("nope", "u1")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, _, err = g.Leave(group.ID, "u9")
	assert.ErrorIs(t, err, ErrNotMember)

	left, deleted, err := g.Leave(group.ID, "u1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []string{"u2"}, left.Members)

	_, deleted, err = g.Leave(group.ID, "u2")
	require.NoError(t, err)
	assert.True(t, deleted, "group is deleted when the last member leaves")

	_, ok := g.Get(group.ID)
	assert.False(t, ok)

	// The name is free again once the group is gone.
	_, err = g.Create("gophers", "", "u3")
	assert.NoError(t, err)
}

func TestGroupsDelete(t *testing.T) {
	g := NewGroups()
	group, _ := g.Create("gophers", "", "u1")
	g.Join(group.ID, "u2")

	_, err := g.Delete("nope", "u1")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = g.Delete(group.ID, "u2")
	assert.ErrorIs(t, err, ErrNotCreator)

	deleted, err := g.Delete(group.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, deleted.Members, "member list survives for notification")

	_, ok := g.Get(group.ID)
	assert.False(t, ok)
}

func TestGroupsList(t *testing.T) {
	g := NewGroups()
	g.Create("zig", "", "u1")
	g.Create("ada", "", "u1")
	g.Create("go", "", "u1")

	groups := g.List()
	require.Len(t, groups, 3)
	assert.Equal(t, "ada", groups[0].Name)
	assert.Equal(t, "go", groups[1].Name)
	assert.Equal(t, "zig", groups[2].Name)
}
