package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments and the doctor directory.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	CreateDoctor(ctx context.Context, d *Doctor) error
	ListDoctors(ctx context.Context) ([]*Doctor, error)
}
