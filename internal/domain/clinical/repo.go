package clinical

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository persists patient demographics. Lookups that include
// documento_id route to a single shard.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByDocumentoID(ctx context.Context, documentoID string) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
}

// RecordRepository persists the co-located clinical rows of a chart.
type RecordRepository interface {
	CreateEncounter(ctx context.Context, e *Encounter) error
	ListEncounters(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Encounter, error)
	UpdateEncounter(ctx context.Context, e *Encounter) error

	CreateObservation(ctx context.Context, o *Observation) error
	ListObservations(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Observation, error)

	CreateCondition(ctx context.Context, cnd *Condition) error
	ListConditions(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Condition, error)
}
