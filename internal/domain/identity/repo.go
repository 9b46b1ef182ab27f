package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository persists users and their login bookkeeping.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	UpdateLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error
}

// RoleRepository persists roles, permissions and both assignment tables.
// Permission resolution always walks User -> Role -> Permission; there is no
// direct user-to-permission shortcut.
type RoleRepository interface {
	CreateRole(ctx context.Context, r *Role) error
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)

	CreatePermission(ctx context.Context, p *Permission) error
	ListPermissions(ctx context.Context) ([]*Permission, error)
	GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	AssignRole(ctx context.Context, ur *UserRole) error
	RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error
	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]*UserRole, error)

	// ActiveRoleNames returns role names from non-expired assignments only.
	ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error)
	// ResolvePermissions unions permission names over non-expired assignments.
	ResolvePermissions(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error)
}
