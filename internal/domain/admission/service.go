package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/domain/clinical"
	"github.com/clinica/clinica/internal/platform/apperr"
)

// PatientDirectory is the slice of the clinical store the workflow needs:
// every admission must reference an existing patient, and the emergency desk
// looks patients up by documento_id.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*clinical.Patient, error)
	GetByDocumentoID(ctx context.Context, documentoID string) (*clinical.Patient, error)
}

// Service drives the admission/triage workflow.
type Service struct {
	repo     Repository
	patients PatientDirectory
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, logger: logger, now: time.Now}
}

func validateVitals(v Vitals) error {
	if v.HeartRate == nil {
		return apperr.Validationf("vitals.heart_rate is required at intake")
	}
	if v.Temperature == nil {
		return apperr.Validationf("vitals.temperature is required at intake")
	}
	if *v.HeartRate <= 0 || *v.HeartRate > 300 {
		return apperr.Validationf("vitals.heart_rate out of range")
	}
	if *v.Temperature < 25 || *v.Temperature > 45 {
		return apperr.Validationf("vitals.temperature out of range")
	}
	if v.OxygenSaturation != nil && (*v.OxygenSaturation < 0 || *v.OxygenSaturation > 100) {
		return apperr.Validationf("vitals.oxygen_saturation out of range")
	}
	return nil
}

// Create opens a pending admission for an existing patient. The row, its
// vitals and the initial nursing note are written in one transaction by the
// repository, together with the code allocation.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Admission, error) {
	if req.Reason == "" {
		return nil, apperr.Validationf("reason is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !ValidPriority(req.Priority) {
		return nil, apperr.Validationf("priority must be one of urgente, alta, normal, baja")
	}
	if err := validateVitals(req.Vitals); err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	a := &Admission{
		DocumentoID:   patient.DocumentoID,
		PatientID:     patient.ID,
		AppointmentID: req.AppointmentID,
		Reason:        req.Reason,
		Priority:      req.Priority,
		Vitals:        req.Vitals,
		NursingNotes:  req.NursingNotes,
	}
	if err := s.repo.Create(ctx, a, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("admission_code", a.AdmissionCode).
		Str("patient_id", patient.ID.String()).
		Str("priority", a.Priority).
		Msg("admission created")
	return a, nil
}

// CreateUrgent is the emergency-desk path: the patient is identified by
// documento_id and the admission enters the queue at urgente priority.
func (s *Service) CreateUrgent(ctx context.Context, req UrgentCreateRequest) (*Admission, error) {
	if req.DocumentoID == "" {
		return nil, apperr.Validationf("documento_id is required")
	}
	if req.Reason == "" {
		return nil, apperr.Validationf("reason is required")
	}
	if err := validateVitals(req.Vitals); err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByDocumentoID(ctx, req.DocumentoID)
	if err != nil {
		return nil, err
	}

	a := &Admission{
		DocumentoID:  patient.DocumentoID,
		PatientID:    patient.ID,
		Reason:       req.Reason,
		Priority:     PriorityUrgente,
		Vitals:       req.Vitals,
		NursingNotes: req.NursingNotes,
	}
	if err := s.repo.Create(ctx, a, s.now()); err != nil {
		return nil, err
	}

	s.logger.Warn().
		Str("admission_code", a.AdmissionCode).
		Str("documento_id", patient.DocumentoID).
		Msg("urgent admission created")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// PendingQueue returns the triage queue in drain order.
func (s *Service) PendingQueue(ctx context.Context, limit, offset int) ([]*Admission, int, error) {
	return s.repo.ListPending(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Admission, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patient.DocumentoID, patient.ID)
}

// Admit transitions pending -> admitted, recording the acting user. Racing
// callers are serialized by the repository; the loser gets
// ErrInvalidTransition.
func (s *Service) Admit(ctx context.Context, id, actorID uuid.UUID) (*Admission, error) {
	a, err := s.repo.Admit(ctx, id, actorID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("admission_code", a.AdmissionCode).
		Str("admitted_by", actorID.String()).
		Msg("admission admitted")
	return a, nil
}

// Discharge closes the admission. Discharging straight from pending is
// tolerated; the notes carry any rejection rationale since there is no
// explicit reject transition.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, req DischargeRequest) (*Admission, error) {
	a, err := s.repo.Discharge(ctx, id, req.Notes, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("admission_code", a.AdmissionCode).
		Msg("admission discharged")
	return a, nil
}

// Refer branches a referral task off the admission without touching its
// status. Referrals from a discharged admission are refused: the episode is
// closed.
func (s *Service) Refer(ctx context.Context, id uuid.UUID, req ReferRequest) (*Referral, error) {
	if req.Motivo == "" {
		return nil, apperr.Validationf("motivo is required")
	}
	if req.Destino == "" {
		return nil, apperr.Validationf("destino is required")
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusDischarged {
		return nil, apperr.InvalidTransitionf("cannot refer a discharged admission")
	}

	ref := &Referral{
		DocumentoID: a.DocumentoID,
		AdmissionID: a.ID,
		Motivo:      req.Motivo,
		Destino:     req.Destino,
		Notes:       req.Notes,
	}
	if err := s.repo.CreateReferral(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *Service) ListReferrals(ctx context.Context, admissionID uuid.UUID) ([]*Referral, error) {
	a, err := s.repo.GetByID(ctx, admissionID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReferrals(ctx, a.DocumentoID, a.ID)
}
