package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. Accounts are soft-deactivated, never deleted.
type User struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	HashedPassword      string     `db:"hashed_password" json:"-"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	IsSuperuser         bool       `db:"is_superuser" json:"is_superuser"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	LastLogin           *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Role is reference data: admin, practitioner, patient, admission, viewer.
type Role struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Permission names a capability as resource_type + action, e.g. Patient.read.
type Permission struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	Action       string    `db:"action" json:"action"`
}

// Name returns the canonical "ResourceType.action" form used in checks.
func (p Permission) Name() string {
	return p.ResourceType + "." + p.Action
}

// UserRole is a role assignment. An expired assignment grants nothing but is
// kept for the audit trail.
type UserRole struct {
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	RoleID     uuid.UUID  `db:"role_id" json:"role_id"`
	RoleName   string     `db:"role_name" json:"role_name"`
	AssignedBy *uuid.UUID `db:"assigned_by" json:"assigned_by,omitempty"`
	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// Active reports whether the assignment grants its role at the given instant.
func (ur UserRole) Active(now time.Time) bool {
	return ur.ExpiresAt == nil || ur.ExpiresAt.After(now)
}

// RolePermission grants a permission to a role.
type RolePermission struct {
	RoleID       uuid.UUID `db:"role_id" json:"role_id"`
	PermissionID uuid.UUID `db:"permission_id" json:"permission_id"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`
}

// LoginRequest is the login endpoint payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the token refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CreateUserRequest is the admin user-creation payload.
type CreateUserRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// AssignRoleRequest assigns a role to a user, optionally time-boxed.
type AssignRoleRequest struct {
	RoleName  string     `json:"role_name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
