package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// PermissionResolver resolves the effective permission set for a user by
// unioning the permissions of every active (non-expired) role assignment.
// Implemented by the identity service. Resolution happens per request; there
// is no cross-request cache, so revoking or expiring a role takes effect on
// the next check.
type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, userID string) ([]string, error)
}

// Guard decides allow/deny before core operations execute. An unknown actor
// yields 401; a known actor without the capability yields 403. Denials are
// picked up by the audit middleware, which records them with the "security"
// action class.
type Guard struct {
	resolver PermissionResolver
}

func NewGuard(resolver PermissionResolver) *Guard {
	return &Guard{resolver: resolver}
}

// RequireRole passes when the actor holds at least one of the named roles.
// Superusers carry the admin role and always pass.
func (g *Guard) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if UserIDFromContext(ctx) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			userRoles := RolesFromContext(ctx)
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequirePermission passes when the actor's resolved permission set contains
// resource.action. Unlike RequireRole it always consults the identity store,
// so an assignment that expired after the token was issued is not honored.
func (g *Guard) RequirePermission(resource, action string) echo.MiddlewareFunc {
	required := resource + "." + action
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			perms, err := g.resolver.ResolvePermissions(ctx, userID)
			if err != nil {
				// A token can outlive its account: resolution refuses
				// deactivated or unknown users with ErrUnauthorized.
				if errors.Is(err, apperr.ErrUnauthorized) {
					return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "permission resolution failed")
			}
			for _, p := range perms {
				if p == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required permission: %s", required))
		}
	}
}
