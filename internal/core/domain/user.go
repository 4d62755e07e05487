package domain

import (
	"strings"
	"time"
)

// UserType is the role a portal account acts under.
type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeEmployee UserType = "employee"
)

// ParseUserType normalises s and rejects anything but a known role.
func ParseUserType(s string) (UserType, error) {
	switch t := UserType(strings.ToLower(strings.TrimSpace(s))); t {
	case UserTypeAdmin, UserTypeEmployee:
		return t, nil
	default:
		return "", ErrInvalidUserType
	}
}

// User models a portal account as stored server side.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Type         UserType  `json:"type"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile returns the public snapshot of u handed to clients.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Type:      u.Type,
	}
}

// Profile is the user snapshot a client keeps for the lifetime of a session.
type Profile struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Type      UserType `json:"type"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Type == UserTypeAdmin
}

// NormalizeEmail is the canonical form used for lookups and rate-limit keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
