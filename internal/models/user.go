package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RolePedagogue  UserRole = "PEDAGOGUE"
	RoleMonitor    UserRole = "MONITOR"
)

// ValidRole reports whether the role is one of the four known roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleInstructor, RolePedagogue, RoleMonitor:
		return true
	}
	return false
}

// UserStatus tracks the account lifecycle.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusPending  UserStatus = "pending"
	UserStatusInactive UserStatus = "inactive"
)

// User represents an application user stored in the users table.
// UnitID and CourseID are the home scope used by every authorization
// check; they are optional and only meaningful for non-admin roles.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	UnitID       *string    `db:"unit_id" json:"unit_id,omitempty"`
	CourseID     *string    `db:"course_id" json:"course_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Principal converts a stored user into the resolved caller identity.
func (u User) Principal() Principal {
	return Principal{
		UserID:   u.ID,
		FullName: u.FullName,
		Role:     u.Role,
		UnitID:   u.UnitID,
		CourseID: u.CourseID,
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	UnitID    string
	CourseID  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
