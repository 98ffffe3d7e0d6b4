package domain

import "time"

// Role enumerates the access levels an account can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the allowed values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the single domain entity managed by this service.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
