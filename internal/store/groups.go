package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-engine/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	ErrNotCreator    = errors.New("not the group creator")
)

// Groups is the directory of chat groups. Group names are unique
// case-insensitively. Not safe for concurrent use; callers serialize access.
type Groups struct {
	groups map[string]*models.Group
	byName map[string]string
}

// NewGroups builds an empty directory.
func NewGroups() *Groups {
	return &Groups{
		groups: make(map[string]*models.Group),
		byName: make(map[string]string),
	}
}

// Create makes a new group with the creator as its first member.
func (g *Groups) Create(name, description, creatorID string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	key := strings.ToLower(name)
	if _, ok := g.byName[key]; ok {
		return nil, ErrNameTaken
	}

	group := &models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatorID:   creatorID,
		Members:     []string{creatorID},
		CreatedAt:   time.Now(),
	}
	g.groups[group.ID] = group
	g.byName[key] = group.ID
	return group, nil
}

// Join adds the user to the group's member list.
func (g *Groups) Join(groupID, userID string) (*models.Group, error) {
	group, ok := g.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	if group.HasMember(userID) {
		return nil, ErrAlreadyMember
	}
	group.Members = append(group.Members, userID)
	return group, nil
}

// Leave removes the user from the group. When the last member leaves the
// group is deleted; the returned flag reports that.
func (g *Groups) Leave(groupID, userID string) (*models.Group, bool, error) {
	group, ok := g.groups[groupID]
	if !ok {
		return nil, false, ErrGroupNotFound
	}
	removed := false
	for i, id := range group.Members {
		if id == userID {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return nil, false, ErrNotMember
	}
	if len(group.Members) == 0 {
		g.remove(group)
		return group, true, nil
	}
	return group, false, nil
}

// Delete removes the group outright. Only the creator may delete it; the
// returned group still carries the member list so callers can notify and
// scrub memberships.
func (g *Groups) Delete(groupID, requesterID string) (*models.Group, error) {
	group, ok := g.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	if group.CreatorID != requesterID {
		return nil, ErrNotCreator
	}
	g.remove(group)
	return group, nil
}

// Get returns a group by id.
func (g *Groups) Get(groupID string) (*models.Group, bool) {
	group, ok := g.groups[groupID]
	return group, ok
}

// List returns every group sorted by name.
func (g *Groups) List() []*models.Group {
	groups := make([]*models.Group, 0, len(g.groups))
	for _, group := range g.groups {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func (g *Groups) remove(group *models.Group) {
	delete(g.groups, group.ID)
	delete(g.byName, strings.ToLower(group.Name))
}
