package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists admissions and referral tasks. The guarded transitions
// (Admit, Discharge) serialize concurrent callers on the admission row: the
// Postgres implementation takes a row lock, re-reads status and applies the
// transition in one transaction, so of two racing admits exactly one wins and
// the loser sees ErrInvalidTransition.
type Repository interface {
	// Create allocates the admission code from the global sequence and
	// inserts the row atomically. The code's date part comes from at, the
	// service clock.
	Create(ctx context.Context, a *Admission, at time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	ListPending(ctx context.Context, limit, offset int) ([]*Admission, int, error)
	ListByPatient(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Admission, error)

	Admit(ctx context.Context, id, actorID uuid.UUID, at time.Time) (*Admission, error)
	Discharge(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Admission, error)

	CreateReferral(ctx context.Context, r *Referral) error
	ListReferrals(ctx context.Context, documentoID string, admissionID uuid.UUID) ([]*Referral, error)
}
