package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// LockoutPolicy controls failed-login throttling.
type LockoutPolicy struct {
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// Service implements authentication, account administration and permission
// resolution. It satisfies auth.PermissionResolver for the route guard.
type Service struct {
	users   UserRepository
	roles   RoleRepository
	issuer  *auth.Issuer
	lockout LockoutPolicy
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(users UserRepository, roles RoleRepository, issuer *auth.Issuer, lockout LockoutPolicy, logger zerolog.Logger) *Service {
	return &Service{
		users:   users,
		roles:   roles,
		issuer:  issuer,
		lockout: lockout,
		logger:  logger,
		now:     time.Now,
	}
}

// Login verifies credentials and issues an access+refresh pair. Every failure
// path returns the same ErrUnauthorized so responses do not reveal whether the
// username exists.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*auth.TokenPair, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.Validationf("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.logger.Warn().Str("username", user.Username).Msg("login attempt on locked account")
		return nil, apperr.ErrUnauthorized
	}

	if err := auth.VerifyPassword(user.HashedPassword, req.Password); err != nil {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= s.lockout.MaxFailedLogins {
			until := now.Add(s.lockout.LockoutDuration)
			lockedUntil = &until
			s.logger.Warn().Str("username", user.Username).Int("attempts", attempts).Msg("account locked")
		}
		if uerr := s.users.UpdateLoginFailure(ctx, user.ID, attempts, lockedUntil); uerr != nil {
			s.logger.Error().Err(uerr).Msg("failed to record login failure")
		}
		return nil, apperr.ErrUnauthorized
	}

	if err := s.users.UpdateLoginSuccess(ctx, user.ID, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to record login success")
	}

	roles, err := s.activeRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issuer.Issue(user.ID.String(), roles)
}

// Refresh rotates a token pair. Roles are re-resolved so an assignment that
// expired since login is not carried forward.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.issuer.Validate(refreshToken, "refresh")
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil, apperr.ErrUnauthorized
	}

	roles, err := s.activeRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issuer.Issue(user.ID.String(), roles)
}

func (s *Service) activeRoles(ctx context.Context, user *User) ([]string, error) {
	roles, err := s.roles.ActiveRoleNames(ctx, user.ID, s.now())
	if err != nil {
		return nil, err
	}
	if user.IsSuperuser && !contains(roles, "admin") {
		roles = append(roles, "admin")
	}
	return roles, nil
}

// ResolvePermissions unions permissions over the user's non-expired role
// assignments. Called on every permission-guarded request; there is no
// cross-request cache.
func (s *Service) ResolvePermissions(ctx context.Context, userIDStr string) ([]string, error) {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil, apperr.ErrUnauthorized
	}
	if user.IsSuperuser {
		all, err := s.roles.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(all))
		for i, p := range all {
			names[i] = p.Name()
		}
		return names, nil
	}

	return s.roles.ResolvePermissions(ctx, userID, s.now())
}

// CreateUser registers a user and optionally assigns initial roles.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest, actorID *uuid.UUID) (*User, error) {
	if req.Username == "" {
		return nil, apperr.Validationf("username is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, apperr.Validationf("valid email is required")
	}
	if len(req.Password) < 8 {
		return nil, apperr.Validationf("password must be at least 8 characters")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	for _, roleName := range req.Roles {
		if err := s.AssignRole(ctx, user.ID, AssignRoleRequest{RoleName: roleName}, actorID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// DeactivateUser soft-deactivates an account. There is no hard delete.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	return s.users.SetActive(ctx, id, false)
}

func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, req AssignRoleRequest, actorID *uuid.UUID) error {
	if req.RoleName == "" {
		return apperr.Validationf("role_name is required")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return apperr.Validationf("expires_at must be in the future")
	}

	role, err := s.roles.GetRoleByName(ctx, req.RoleName)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	return s.roles.AssignRole(ctx, &UserRole{
		UserID:     userID,
		RoleID:     role.ID,
		AssignedBy: actorID,
		ExpiresAt:  req.ExpiresAt,
	})
}

func (s *Service) RevokeRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.roles.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return s.roles.RevokeRole(ctx, userID, role.ID)
}

func (s *Service) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]*UserRole, error) {
	return s.roles.ListUserRoles(ctx, userID)
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.ListRoles(ctx)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
