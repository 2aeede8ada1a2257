package domain

import "time"

// User represents a staff account allowed into the dashboard.
type User struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email,omitempty"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	PasswordHash string            `json:"-"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

// Identity builds the immutable claim set copied into a new session.
func (u *User) Identity() Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{Username: u.Username, Email: u.Email, Role: u.Role}
}
