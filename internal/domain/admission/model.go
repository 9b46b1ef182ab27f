package admission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Admission statuses. The machine only moves forward: pending -> admitted ->
// discharged, with a tolerated pending -> discharged shortcut (implicit
// admit-then-discharge). There is no un-admit and no separate reject state;
// discharge notes carry any rejection rationale.
const (
	StatusPending    = "pending"
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
)

// Priorities, highest first: urgente and alta share the top tier.
const (
	PriorityUrgente = "urgente"
	PriorityAlta    = "alta"
	PriorityNormal  = "normal"
	PriorityBaja    = "baja"
)

// PriorityRank orders the triage queue; lower rank drains first.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgente, PriorityAlta:
		return 0
	case PriorityNormal:
		return 1
	case PriorityBaja:
		return 2
	default:
		return 3
	}
}

// ValidPriority reports whether p is one of the accepted priorities.
func ValidPriority(p string) bool {
	return p == PriorityUrgente || p == PriorityAlta || p == PriorityNormal || p == PriorityBaja
}

// FormatCode renders the business admission code: ADM-YYYYMMDD-NNNN. The
// sequence number comes from a global DB sequence so codes never collide even
// across shards; the date prefix preserves traceability.
func FormatCode(day time.Time, seq int64) string {
	return fmt.Sprintf("ADM-%s-%04d", day.Format("20060102"), seq)
}

// Vitals taken at intake.
type Vitals struct {
	HeartRate        *int     `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSys *int     `db:"blood_pressure_sys" json:"blood_pressure_sys,omitempty"`
	BloodPressureDia *int     `db:"blood_pressure_dia" json:"blood_pressure_dia,omitempty"`
	Temperature      *float64 `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate  *int     `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *int     `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
}

// Admission is one triage/visit request.
type Admission struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AdmissionCode  string     `db:"admission_code" json:"admission_code"`
	DocumentoID    string     `db:"documento_id" json:"documento_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Reason         string     `db:"reason" json:"reason"`
	Priority       string     `db:"priority" json:"priority"`
	Status         string     `db:"status" json:"status"`
	Vitals         Vitals     `json:"vitals"`
	NursingNotes   *string    `db:"nursing_notes" json:"nursing_notes,omitempty"`
	AdmittedBy     *uuid.UUID `db:"admitted_by" json:"admitted_by,omitempty"`
	AdmittedAt     *time.Time `db:"admitted_at" json:"admitted_at,omitempty"`
	DischargedAt   *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	DischargeNotes *string    `db:"discharge_notes" json:"discharge_notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Referral is a task branched off an admission; creating one never changes
// the parent admission's status.
type Referral struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DocumentoID string    `db:"documento_id" json:"documento_id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	Motivo      string    `db:"motivo" json:"motivo"`
	Destino     string    `db:"destino" json:"destino"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Estado      string    `db:"estado" json:"estado"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreateRequest is the intake payload.
type CreateRequest struct {
	Reason        string     `json:"reason"`
	Priority      string     `json:"priority"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Vitals        Vitals     `json:"vitals"`
	NursingNotes  *string    `json:"nursing_notes,omitempty"`
}

// UrgentCreateRequest is the emergency-desk intake payload: the patient is
// looked up by documento_id instead of internal id.
type UrgentCreateRequest struct {
	DocumentoID  string  `json:"documento_id"`
	Reason       string  `json:"reason"`
	Vitals       Vitals  `json:"vitals"`
	NursingNotes *string `json:"nursing_notes,omitempty"`
}

// DischargeRequest carries the closing notes.
type DischargeRequest struct {
	Notes string `json:"notes"`
}

// ReferRequest creates a referral task.
type ReferRequest struct {
	Motivo  string  `json:"motivo"`
	Destino string  `json:"destino"`
	Notes   *string `json:"notes,omitempty"`
}
