package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, username, email, hashed_password, is_active, is_superuser,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.IsActive, &u.IsSuperuser,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("user not found")
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, username, email, hashed_password, is_active, is_superuser)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.Email, u.HashedPassword, u.IsActive, u.IsSuperuser)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *userRepoPG) UpdateLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL,
			last_login = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

func (r *userRepoPG) UpdateLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1`, id, attempts, lockedUntil)
	return err
}

func (r *userRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("user not found")
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`, id, hashed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("user not found")
	}
	return nil
}

// =========== Role Repository ===========

type roleRepoPG struct{ pool *pgxpool.Pool }

func NewRoleRepoPG(pool *pgxpool.Pool) RoleRepository { return &roleRepoPG{pool: pool} }

func (r *roleRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *roleRepoPG) CreateRole(ctx context.Context, role *Role) error {
	role.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO roles (id, name, description)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
		role.ID, role.Name, role.Description)
	return err
}

func (r *roleRepoPG) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description, created_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("role %q not found", name)
	}
	return &role, err
}

func (r *roleRepoPG) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, description, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (r *roleRepoPG) CreatePermission(ctx context.Context, p *Permission) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO permissions (id, resource_type, action)
		VALUES ($1,$2,$3)
		ON CONFLICT (resource_type, action) DO NOTHING`,
		p.ID, p.ResourceType, p.Action)
	return err
}

func (r *roleRepoPG) ListPermissions(ctx context.Context) ([]*Permission, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, resource_type, action FROM permissions ORDER BY resource_type, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ResourceType, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

func (r *roleRepoPG) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

func (r *roleRepoPG) AssignRole(ctx context.Context, ur *UserRole) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_by, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, role_id) DO UPDATE
			SET assigned_by = EXCLUDED.assigned_by,
			    assigned_at = NOW(),
			    expires_at = EXCLUDED.expires_at`,
		ur.UserID, ur.RoleID, ur.AssignedBy, ur.ExpiresAt)
	return err
}

func (r *roleRepoPG) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("role assignment not found")
	}
	return nil
}

func (r *roleRepoPG) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]*UserRole, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ur.user_id, ur.role_id, ro.name, ur.assigned_by, ur.assigned_at, ur.expires_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*UserRole
	for rows.Next() {
		var ur UserRole
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &ur.RoleName, &ur.AssignedBy, &ur.AssignedAt, &ur.ExpiresAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, &ur)
	}
	return assignments, rows.Err()
}

func (r *roleRepoPG) ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1 AND (ur.expires_at IS NULL OR ur.expires_at > $2)
		ORDER BY ro.name`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *roleRepoPG) ResolvePermissions(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT p.resource_type || '.' || p.action
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 AND (ur.expires_at IS NULL OR ur.expires_at > $2)`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
