package models

import (
	"strings"
	"time"
)

// User is the locally synthesized identity produced by the mock login.
// JSON names match the persisted session format.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	JoinDate string `json:"joinDate"` // RFC 3339
}

// FirstName is the first word of the display name, used for greetings
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Joined parses JoinDate; the zero time is returned if it is malformed
func (u User) Joined() time.Time {
	t, err := time.Parse(time.RFC3339, u.JoinDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Valid reports whether the record carries the fields a session needs
func (u User) Valid() bool {
	return u.ID != "" && u.Email != ""
}
