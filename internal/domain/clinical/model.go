package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the demographic record. DocumentoID is the shard key; every
// clinical row belonging to this patient carries the same value so the whole
// chart lives on one shard.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DocumentoID string     `db:"documento_id" json:"documento_id"`
	PacienteID  string     `db:"paciente_id" json:"paciente_id"`
	FullName    string     `db:"full_name" json:"full_name"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex         *string    `db:"sex" json:"sex,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	UserID      *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Encounter is one clinical contact (visit, admission episode, telehealth).
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DocumentoID   string     `db:"documento_id" json:"documento_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterType string     `db:"encounter_type" json:"encounter_type"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	EndedAt       *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Note          *string    `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Observation is a coded measurement or finding.
type Observation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DocumentoID string     `db:"documento_id" json:"documento_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	Code        string     `db:"code" json:"code"`
	ValueText   *string    `db:"value_text" json:"value_text,omitempty"`
	ValueNum    *float64   `db:"value_num" json:"value_num,omitempty"`
	Unit        *string    `db:"unit" json:"unit,omitempty"`
	ObservedAt  time.Time  `db:"observed_at" json:"observed_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Condition is a diagnosis or problem-list entry.
type Condition struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DocumentoID    string    `db:"documento_id" json:"documento_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	Code           string    `db:"code" json:"code"`
	Description    *string   `db:"description" json:"description,omitempty"`
	ClinicalStatus string    `db:"clinical_status" json:"clinical_status"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}
