package auth

import "time"

// Role enumerates user roles understood by the API.
type Role string

const (
	// RoleAdmin may manage warehouses, reorder levels and all stock operations.
	RoleAdmin Role = "ADMIN"
	// RoleEditor may execute stock operations and author stock documents.
	RoleEditor Role = "EDITOR"
	// RoleViewer has read-only access.
	RoleViewer Role = "VIEWER"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// User represents an account able to authenticate against the API.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}
