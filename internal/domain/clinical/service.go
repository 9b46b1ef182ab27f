package clinical

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// Service validates clinical writes and layers the ownership filter over the
// role check: a patient-role actor may only touch the record linked to their
// own account, while staff roles may act on any patient.
type Service struct {
	patients PatientRepository
	records  RecordRepository
}

func NewService(patients PatientRepository, records RecordRepository) *Service {
	return &Service{patients: patients, records: records}
}

var staffRoles = map[string]bool{
	"admin":        true,
	"practitioner": true,
	"admission":    true,
	"viewer":       true,
}

// authorizeAccess rejects patient-only actors reading someone else's chart.
// Ownership is a second gate, not a substitute for the route's role check.
// A denied chart reads as not found, so a patient-role actor cannot tell
// which ids exist.
func authorizeAccess(ctx context.Context, p *Patient) error {
	roles := auth.RolesFromContext(ctx)
	for _, r := range roles {
		if staffRoles[r] {
			return nil
		}
	}

	actorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.ErrUnauthorized
	}
	if p.UserID == nil || *p.UserID != actorID {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.DocumentoID == "" {
		return apperr.Validationf("documento_id is required")
	}
	if p.PacienteID == "" {
		return apperr.Validationf("paciente_id is required")
	}
	if p.FullName == "" {
		return apperr.Validationf("full_name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatientByDocumentoID(ctx context.Context, documentoID string) (*Patient, error) {
	p, err := s.patients.GetByDocumentoID(ctx, documentoID)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// MyRecord returns the chart linked to the calling account.
func (s *Service) MyRecord(ctx context.Context) (*Patient, error) {
	actorID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.patients.GetByUserID(ctx, actorID)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := authorizeAccess(ctx, existing); err != nil {
		return err
	}
	if p.FullName == "" {
		return apperr.Validationf("full_name is required")
	}
	p.DocumentoID = existing.DocumentoID
	return s.patients.Update(ctx, p)
}

// chart resolves a patient and authorizes access; clinical rows always join
// through it so every read carries the shard key.
func (s *Service) chart(ctx context.Context, patientID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) AddEncounter(ctx context.Context, patientID uuid.UUID, e *Encounter) error {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return err
	}
	if e.EncounterType == "" {
		return apperr.Validationf("encounter_type is required")
	}
	if e.StartedAt.IsZero() {
		return apperr.Validationf("started_at is required")
	}
	e.PatientID = p.ID
	e.DocumentoID = p.DocumentoID
	return s.records.CreateEncounter(ctx, e)
}

func (s *Service) ListEncounters(ctx context.Context, patientID uuid.UUID) ([]*Encounter, error) {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.records.ListEncounters(ctx, p.DocumentoID, p.ID)
}

func (s *Service) AddObservation(ctx context.Context, patientID uuid.UUID, o *Observation) error {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return err
	}
	if o.Code == "" {
		return apperr.Validationf("code is required")
	}
	if o.ValueText == nil && o.ValueNum == nil {
		return apperr.Validationf("value_text or value_num is required")
	}
	if o.ObservedAt.IsZero() {
		return apperr.Validationf("observed_at is required")
	}
	o.PatientID = p.ID
	o.DocumentoID = p.DocumentoID
	return s.records.CreateObservation(ctx, o)
}

func (s *Service) ListObservations(ctx context.Context, patientID uuid.UUID) ([]*Observation, error) {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.records.ListObservations(ctx, p.DocumentoID, p.ID)
}

func (s *Service) AddCondition(ctx context.Context, patientID uuid.UUID, cnd *Condition) error {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return err
	}
	if cnd.Code == "" {
		return apperr.Validationf("code is required")
	}
	cnd.PatientID = p.ID
	cnd.DocumentoID = p.DocumentoID
	return s.records.CreateCondition(ctx, cnd)
}

func (s *Service) ListConditions(ctx context.Context, patientID uuid.UUID) ([]*Condition, error) {
	p, err := s.chart(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.records.ListConditions(ctx, p.DocumentoID, p.ID)
}
