package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the resolved identity and scope of the caller. Every
// authorization decision downstream is a function of this value.
type Principal struct {
	UserID   string   `json:"user_id"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	UnitID   *string  `json:"unit_id,omitempty"`
	CourseID *string  `json:"course_id,omitempty"`
}

// IsAdmin is a convenience shortcut used throughout the services.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// HomeUnit returns the home unit id or empty string.
func (p Principal) HomeUnit() string {
	if p.UnitID == nil {
		return ""
	}
	return *p.UnitID
}

// HomeCourse returns the home course id or empty string.
func (p Principal) HomeCourse() string {
	if p.CourseID == nil {
		return ""
	}
	return *p.CourseID
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// ResetPasswordRequest is the admin-driven password reset payload.
type ResetPasswordRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// FirstAccessRequest is the self-service signup payload. The created
// account stays pending until an admin approves it.
type FirstAccessRequest struct {
	FullName string   `json:"full_name" validate:"required,min=3"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"required"`
	UnitID   *string  `json:"unit_id,omitempty"`
	CourseID *string  `json:"course_id,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	UnitID   *string  `json:"unit_id,omitempty"`
	CourseID *string  `json:"course_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
