package clinical

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

func (h *Handler) RegisterRoutes(api *echo.Group, guard *auth.Guard) {
	staff := api.Group("/patients", guard.RequireRole("admin", "practitioner", "admission", "viewer"))
	staff.GET("", h.ListPatients)
	staff.POST("", h.CreatePatient, guard.RequirePermission("Patient", "create"))
	staff.PUT("/:id", h.UpdatePatient, guard.RequirePermission("Patient", "update"))

	// Record reads allow the patient role; the service enforces ownership.
	records := api.Group("/patients", guard.RequireRole("admin", "practitioner", "admission", "viewer", "patient"))
	records.GET("/:id", h.GetPatient)
	records.GET("/:id/encounters", h.ListEncounters)
	records.GET("/:id/observations", h.ListObservations)
	records.GET("/:id/conditions", h.ListConditions)

	writes := api.Group("/patients", guard.RequireRole("admin", "practitioner"))
	writes.POST("/:id/encounters", h.AddEncounter, guard.RequirePermission("Encounter", "create"))
	writes.POST("/:id/observations", h.AddObservation, guard.RequirePermission("Observation", "create"))
	writes.POST("/:id/conditions", h.AddCondition, guard.RequirePermission("Condition", "create"))

	me := api.Group("/me", guard.RequireRole("patient"))
	me.GET("/record", h.MyRecord)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, p.Limit, p.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validationf("malformed request body")
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MyRecord(c echo.Context) error {
	p, err := h.svc.MyRecord(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AddEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	var e Encounter
	if err := c.Bind(&e); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if err := h.svc.AddEncounter(c.Request().Context(), id, &e); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListEncounters(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	encounters, err := h.svc.ListEncounters(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, encounters)
}

func (h *Handler) AddObservation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	var o Observation
	if err := c.Bind(&o); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if err := h.svc.AddObservation(c.Request().Context(), id, &o); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListObservations(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	observations, err := h.svc.ListObservations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, observations)
}

func (h *Handler) AddCondition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	var cnd Condition
	if err := c.Bind(&cnd); err != nil {
		return apperr.Validationf("malformed request body")
	}
	if err := h.svc.AddCondition(c.Request().Context(), id, &cnd); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cnd)
}

func (h *Handler) ListConditions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validationf("invalid patient id")
	}
	conditions, err := h.svc.ListConditions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conditions)
}
