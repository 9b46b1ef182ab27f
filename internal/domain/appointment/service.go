package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/domain/clinical"
	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// PatientDirectory resolves patients for booking: by id for staff paths and
// by linked account for the self-service routes.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*clinical.Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*clinical.Patient, error)
}

// Service books and cancels appointments. A booking must lie at least
// MinLead ahead of now; the boundary itself is allowed.
type Service struct {
	repo     Repository
	patients PatientDirectory
	minLead  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, minLeadDays int, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		minLead:  time.Duration(minLeadDays) * 24 * time.Hour,
		logger:   logger,
		now:      time.Now,
	}
}

var staffRoles = map[string]bool{
	"admin":        true,
	"practitioner": true,
	"admission":    true,
}

func isStaff(ctx context.Context) bool {
	for _, r := range auth.RolesFromContext(ctx) {
		if staffRoles[r] {
			return true
		}
	}
	return false
}

func (s *Service) checkLeadTime(scheduledAt time.Time) error {
	now := s.now()
	if scheduledAt.Before(now) {
		return apperr.Validationf("scheduled_at is in the past")
	}
	earliest := now.Add(s.minLead)
	if scheduledAt.Before(earliest) {
		return apperr.Validationf("appointments require at least %d days lead time", int(s.minLead.Hours()/24))
	}
	return nil
}

// Create books for an explicit patient; staff only.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Appointment, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.book(ctx, patient, req)
}

// CreateForMe books on behalf of the calling patient account.
func (s *Service) CreateForMe(ctx context.Context, req CreateRequest) (*Appointment, error) {
	actorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	patient, err := s.patients.GetByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.book(ctx, patient, req)
}

func (s *Service) book(ctx context.Context, patient *clinical.Patient, req CreateRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, apperr.Validationf("doctor_id is required")
	}
	if req.ScheduledAt.IsZero() {
		return nil, apperr.Validationf("scheduled_at is required")
	}
	if err := s.checkLeadTime(req.ScheduledAt); err != nil {
		return nil, err
	}

	a := &Appointment{
		DocumentoID: patient.DocumentoID,
		PatientID:   patient.ID,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt,
		Reason:      req.Reason,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", patient.ID.String()).
		Time("scheduled_at", a.ScheduledAt).
		Msg("appointment booked")
	return a, nil
}

// ListMine returns the calling patient's appointments.
func (s *Service) ListMine(ctx context.Context) ([]*Appointment, error) {
	actorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	patient, err := s.patients.GetByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patient.DocumentoID, patient.ID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patient.DocumentoID, patient.ID)
}

// Cancel refuses terminal appointments. Patient-role actors may only cancel
// their own bookings; the denial is indistinguishable from a missing row.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !isStaff(ctx) {
		actorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
		if err != nil {
			return apperr.ErrUnauthorized
		}
		patient, err := s.patients.GetByUserID(ctx, actorID)
		if err != nil || patient.ID != a.PatientID {
			return apperr.NotFoundf("appointment not found")
		}
	}

	if a.Status == StatusCancelled || a.Status == StatusCompleted {
		return apperr.InvalidTransitionf("cannot cancel appointment in status %q", a.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}

// DoctorsBySpecialty groups the active doctor directory for the booking UI.
func (s *Service) DoctorsBySpecialty(ctx context.Context) (map[string][]*Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*Doctor)
	for _, d := range doctors {
		grouped[d.Specialty] = append(grouped[d.Specialty], d)
	}
	return grouped, nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return apperr.Validationf("full_name is required")
	}
	if d.Specialty == "" {
		return apperr.Validationf("specialty is required")
	}
	d.IsActive = true
	return s.repo.CreateDoctor(ctx, d)
}
