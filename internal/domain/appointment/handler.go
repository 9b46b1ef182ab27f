package appointment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, guard *auth.Guard) {
	api.GET("/doctors", h.ListDoctors, guard.RequireRole("admin", "practitioner", "admission", "patient"))
	api.POST("/doctors", h.CreateDoctor, guard.RequireRole("admin"))

	// Patient self-service.
	me := api.Group("/patient/me/appointments", guard.RequireRole("patient"))
	me.GET("", h.ListMine)
	me.POST("", h.CreateForMe, guard.RequirePermission("Appointment", "create"))
	me.DELETE("/:id", h.Cancel, guard.RequirePermission("Appointment", "cancel"))

	// Staff booking on behalf of a patient.
	staff := api.Group("/patient", guard.RequireRole("admin", "practitioner", "admission"))
	staff.GET("/:id/appointments", h.ListByPatient)
	staff.POST("/:id/appointments", h.Create)
	staff.DELETE("/appointments/:id", h.Cancel)
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

func (h *Handler) CreateForMe(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("malformed request body")
	}
	a, err := h.svc.CreateForMe(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListMine(c echo.Context) error {
	appointments, err := h.svc.ListMine(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointments)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	appointments, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appointments)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid appointment id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	grouped, err := h.svc.DoctorsBySpecialty(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grouped)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}
