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
	ErrUserNotFound = errors.New("user not found")
	ErrNameTaken    = errors.New("name already taken")
	ErrNameRequired = errors.New("name required")
)

// Presence tracks every user this instance has seen and their online state.
// User records are never deleted; going offline only clears the online flag
// and stamps the last-seen time. Presence is not safe for concurrent use;
// callers serialize access.
type Presence struct {
	instance string
	users    map[string]*models.User
	byName   map[string]string
}

// NewPresence builds an empty registry tagging new users with the instance id.
func NewPresence(instance string) *Presence {
	return &Presence{
		instance: instance,
		users:    make(map[string]*models.User),
		byName:   make(map[string]string),
	}
}

// Register marks the named user online, reusing an existing offline record
// with that name or creating a new one. It fails with ErrNameTaken while
// another online user holds the name.
func (p *Presence) Register(name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if id, ok := p.byName[name]; ok {
		user := p.users[id]
		if user.Online {
			return nil, ErrNameTaken
		}
		user.Online = true
		return user, nil
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     name,
		Instance: p.instance,
		Groups:   []string{},
		Online:   true,
		JoinedAt: time.Now(),
	}
	p.users[user.ID] = user
	p.byName[name] = user.ID
	return user, nil
}

// Reconnect marks a known user online again.
func (p *Presence) Reconnect(userID string) (*models.User, error) {
	user, ok := p.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	user.Online = true
	return user, nil
}

// Disconnect marks the user offline and records the last-seen time. It is
// idempotent and reports whether the user was known.
func (p *Presence) Disconnect(userID string) (*models.User, bool) {
	user, ok := p.users[userID]
	if !ok {
		return nil, false
	}
	user.Online = false
	user.LastSeen = time.Now()
	return user, true
}

// Get returns a user by id.
func (p *Presence) Get(userID string) (*models.User, bool) {
	user, ok := p.users[userID]
	return user, ok
}

// ListOnline returns online users sorted by name, optionally excluding one id.
func (p *Presence) ListOnline(excluding string) []*models.User {
	var online []*models.User
	for _, user := range p.users {
		if user.Online && user.ID != excluding {
			online = append(online, user)
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].Name < online[j].Name })
	return online
}

// All returns every known user sorted by name.
func (p *Presence) All() []*models.User {
	users := make([]*models.User, 0, len(p.users))
	for _, user := range p.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

// AddGroup records group membership on the user side.
func (p *Presence) AddGroup(userID, groupID string) {
	user, ok := p.users[userID]
	if !ok || user.InGroup(groupID) {
		return
	}
	user.Groups = append(user.Groups, groupID)
}

// RemoveGroup scrubs a group id from the user's group list.
func (p *Presence) RemoveGroup(userID, groupID string) {
	user, ok := p.users[userID]
	if !ok {
		return
	}
	for i, id := range user.Groups {
		if id == groupID {
			user.Groups = append(user.Groups[:i], user.Groups[i+1:]...)
			return
		}
	}
}
