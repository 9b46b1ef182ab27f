package audit

import (
	"net/http"
	"time"

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

func (h *Handler) RegisterRoutes(api *echo.Group, guard *auth.Guard) {
	review := api.Group("/admin/audit", guard.RequireRole("admin", "viewer"),
		guard.RequirePermission("AuditLog", "read"))
	review.GET("", h.List)
	review.GET("/security", h.SecurityDenials)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	q := Query{
		ActorID: c.QueryParam("actor_id"),
		Class:   c.QueryParam("class"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return apperr.Validationf("from must be RFC3339")
		}
		q.From = t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return apperr.Validationf("to must be RFC3339")
		}
		q.To = t
	}

	entries, total, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, q.Limit, q.Offset))
}

func (h *Handler) SecurityDenials(c echo.Context) error {
	p := pagination.FromContext(c)
	entries, total, err := h.svc.SecurityDenials(c.Request().Context(), c.QueryParam("actor_id"), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}
