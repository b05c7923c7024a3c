package models

import "time"

// User represents a chat participant known to this instance.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Instance string    `json:"instance"`
	Groups   []string  `json:"groups"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
	JoinedAt time.Time `json:"joinedAt"`
}

// InGroup reports whether the user belongs to the group.
func (u *User) InGroup(groupID string) bool {
	for _, id := range u.Groups {
		if id == groupID {
			return true
		}
	}
	return false
}

// UserSummary is the compact user view embedded in pushes and listings.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// Summary returns the compact view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Online: u.Online}
}

// Clone returns a copy that is safe to serialize after the engine releases
// its lock.
func (u *User) Clone() User {
	c := *u
	c.Groups = append([]string(nil), u.Groups...)
	return c
}
