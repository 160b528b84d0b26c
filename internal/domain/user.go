package domain

import "time"

// User represents a registered identity, including both directions of the
// follow graph. Following and Followers are inverse views of the same edge
// set and are populated together on read.
type User struct {
	ID              string
	Name            string
	Username        string
	Email           string
	PasswordHash    string
	Bio             string
	ProfileImageRef string
	IsFrozen        bool
	Following       []string
	Followers       []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
