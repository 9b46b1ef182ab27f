package admission

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

// RegisterRoutes keeps the legacy /api/patient/... paths the dashboards call.
func (h *Handler) RegisterRoutes(api *echo.Group, guard *auth.Guard) {
	desk := api.Group("/patient", guard.RequireRole("admin", "admission", "practitioner"))

	desk.POST("/:id/admissions", h.Create, guard.RequirePermission("Admission", "create"))
	desk.POST("/admissions/urgent", h.CreateUrgent, guard.RequirePermission("Admission", "create"))
	desk.GET("/admissions/pending", h.PendingQueue, guard.RequirePermission("Admission", "read"))
	desk.GET("/admissions/:id", h.Get, guard.RequirePermission("Admission", "read"))
	desk.GET("/:id/admissions", h.ListByPatient, guard.RequirePermission("Admission", "read"))
	desk.POST("/admissions/:id/admit", h.Admit, guard.RequirePermission("Admission", "admit"))
	desk.POST("/admissions/:id/discharge", h.Discharge, guard.RequirePermission("Admission", "discharge"))
	desk.POST("/admissions/:id/refer", h.Refer, guard.RequirePermission("Admission", "refer"))
	desk.GET("/admissions/:id/referrals", h.ListReferrals, guard.RequirePermission("Admission", "read"))
}

func (h *Handler) Create(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	a, err := h.svc.Create(c.Request().Context(), patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) CreateUrgent(c echo.Context) error {
	var req UrgentCreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	a, err := h.svc.CreateUrgent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid admission id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) PendingQueue(c echo.Context) error {
	p := pagination.FromContext(c)
	queue, total, err := h.svc.PendingQueue(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(queue, total, p.Limit, p.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	admissions, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, admissions)
}

func (h *Handler) Admit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid admission id")
	}
	actorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.ErrUnauthorized
	}
	a, err := h.svc.Admit(c.Request().Context(), id, actorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid admission id")
	}
	var req DischargeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	a, err := h.svc.Discharge(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Refer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid admission id")
	}
	var req ReferRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	ref, err := h.svc.Refer(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ref)
}

func (h *Handler) ListReferrals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid admission id")
	}
	referrals, err := h.svc.ListReferrals(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, referrals)
}
