package models

import "time"

// Group represents a chat group and its membership.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   string    `json:"creatorId"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMember reports whether the user id is in the membership set.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that is safe to serialize after the engine releases
// its lock.
func (g *Group) Clone() Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return c
}
