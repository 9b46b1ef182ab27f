package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires login/refresh on the public group and user
// administration on the authenticated group.
func (h *Handler) RegisterRoutes(public, api *echo.Group, guard *auth.Guard) {
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)

	admin := api.Group("/admin", guard.RequireRole("admin"))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.DELETE("/users/:id", h.DeactivateUser)
	admin.GET("/users/:id/roles", h.ListUserRoles)
	admin.POST("/users/:id/roles", h.AssignRole)
	admin.DELETE("/users/:id/roles/:role", h.RevokeRole)
	admin.GET("/roles", h.ListRoles)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	pair, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if req.RefreshToken == "" {
		return apperr.Validationf("refresh_token is required")
	}
	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}

	var actorID *uuid.UUID
	if id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actorID = &id
	}

	user, err := h.svc.CreateUser(c.Request().Context(), req, actorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid user id")
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p.Limit, p.Offset))
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid user id")
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) ListUserRoles(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid user id")
	}
	assignments, err := h.svc.ListUserRoles(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assignments)
}

func (h *Handler) AssignRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid user id")
	}
	var req AssignRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}

	var actorID *uuid.UUID
	if aid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actorID = &aid
	}

	if err := h.svc.AssignRole(c.Request().Context(), id, req, actorID); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) RevokeRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid user id")
	}
	if err := h.svc.RevokeRole(c.Request().Context(), id, c.Param("role")); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.svc.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}
