package domain

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a Account) EntityID() string {
	return a.ID
}

// Credentials are handed to us by the authentication provider and treated as opaque.
type Credentials struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the credentials carry an expiry that has passed.
// Credentials without an expiry never expire.
func (c Credentials) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
