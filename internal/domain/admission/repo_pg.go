package admission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const admissionCols = `id, admission_code, documento_id, patient_id, appointment_id, reason,
	priority, status, heart_rate, blood_pressure_sys, blood_pressure_dia, temperature,
	respiratory_rate, oxygen_saturation, nursing_notes, admitted_by, admitted_at,
	discharged_at, discharge_notes, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.AdmissionCode, &a.DocumentoID, &a.PatientID, &a.AppointmentID, &a.Reason,
		&a.Priority, &a.Status, &a.Vitals.HeartRate, &a.Vitals.BloodPressureSys, &a.Vitals.BloodPressureDia,
		&a.Vitals.Temperature, &a.Vitals.RespiratoryRate, &a.Vitals.OxygenSaturation, &a.NursingNotes,
		&a.AdmittedBy, &a.AdmittedAt, &a.DischargedAt, &a.DischargeNotes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("admission not found")
	}
	return &a, err
}

// Create allocates the sequence number and inserts the row inside one
// transaction, so a failed insert never burns a visible code.
func (r *repoPG) Create(ctx context.Context, a *Admission, at time.Time) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := r.conn(ctx)

		var seq int64
		if err := conn.QueryRow(ctx, `SELECT nextval('admission_code_seq')`).Scan(&seq); err != nil {
			return err
		}

		a.ID = uuid.New()
		a.AdmissionCode = FormatCode(at, seq)
		a.Status = StatusPending

		_, err := conn.Exec(ctx, `
			INSERT INTO admissions (id, admission_code, documento_id, patient_id, appointment_id,
				reason, priority, status, heart_rate, blood_pressure_sys, blood_pressure_dia,
				temperature, respiratory_rate, oxygen_saturation, nursing_notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			a.ID, a.AdmissionCode, a.DocumentoID, a.PatientID, a.AppointmentID,
			a.Reason, a.Priority, a.Status, a.Vitals.HeartRate, a.Vitals.BloodPressureSys,
			a.Vitals.BloodPressureDia, a.Vitals.Temperature, a.Vitals.RespiratoryRate,
			a.Vitals.OxygenSaturation, a.NursingNotes)
		return err
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admissions WHERE id = $1`, id))
}

// ListPending returns the triage queue: top tier (urgente/alta) first, then
// normal, then baja; FIFO inside each tier.
func (r *repoPG) ListPending(ctx context.Context, limit, offset int) ([]*Admission, int, error) {
	conn := r.conn(ctx)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM admissions WHERE status = $1`, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+admissionCols+`
		FROM admissions
		WHERE status = $1
		ORDER BY CASE priority
				WHEN 'urgente' THEN 0
				WHEN 'alta' THEN 0
				WHEN 'normal' THEN 1
				WHEN 'baja' THEN 2
				ELSE 3
			END,
			created_at ASC
		LIMIT $2 OFFSET $3`, StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Admission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+admissionCols+`
		FROM admissions
		WHERE documento_id = $1 AND patient_id = $2
		ORDER BY created_at DESC`, documentoID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		admissions = append(admissions, a)
	}
	return admissions, rows.Err()
}

// lockStatus resolves the shard key for id, then takes a row lock on that
// single shard. Citus refuses FOR UPDATE on multi-shard queries, so the lock
// has to be keyed by documento_id.
func lockStatus(ctx context.Context, conn queryable, id uuid.UUID) (string, string, error) {
	var documentoID string
	err := conn.QueryRow(ctx,
		`SELECT documento_id FROM admissions WHERE id = $1`, id).Scan(&documentoID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", apperr.NotFoundf("admission not found")
	}
	if err != nil {
		return "", "", err
	}

	var status string
	err = conn.QueryRow(ctx,
		`SELECT status FROM admissions WHERE documento_id = $1 AND id = $2 FOR UPDATE`,
		documentoID, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", apperr.NotFoundf("admission not found")
	}
	return documentoID, status, err
}

// Admit moves pending -> admitted under a row lock. Concurrent admits
// serialize on the lock; whoever re-reads a non-pending status loses with
// ErrInvalidTransition.
func (r *repoPG) Admit(ctx context.Context, id, actorID uuid.UUID, at time.Time) (*Admission, error) {
	var admitted *Admission
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := r.conn(ctx)

		documentoID, status, err := lockStatus(ctx, conn, id)
		if err != nil {
			return err
		}
		if status != StatusPending {
			return apperr.InvalidTransitionf("cannot admit admission in status %q", status)
		}

		admitted, err = scanAdmission(conn.QueryRow(ctx, `
			UPDATE admissions
			SET status = $3, admitted_by = $4, admitted_at = $5, updated_at = NOW()
			WHERE documento_id = $1 AND id = $2
			RETURNING `+admissionCols, documentoID, id, StatusAdmitted, actorID, at))
		return err
	})
	return admitted, err
}

// Discharge is terminal. Allowed from admitted, and tolerated straight from
// pending (implicit admit-then-discharge).
func (r *repoPG) Discharge(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Admission, error) {
	var discharged *Admission
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := r.conn(ctx)

		documentoID, status, err := lockStatus(ctx, conn, id)
		if err != nil {
			return err
		}
		if status == StatusDischarged {
			return apperr.InvalidTransitionf("admission already discharged")
		}

		discharged, err = scanAdmission(conn.QueryRow(ctx, `
			UPDATE admissions
			SET status = $3, discharged_at = $4, discharge_notes = $5, updated_at = NOW()
			WHERE documento_id = $1 AND id = $2
			RETURNING `+admissionCols, documentoID, id, StatusDischarged, at, notes))
		return err
	})
	return discharged, err
}

func (r *repoPG) CreateReferral(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	ref.Estado = "pendiente"
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referrals (id, documento_id, admission_id, motivo, destino, notes, estado)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ref.ID, ref.DocumentoID, ref.AdmissionID, ref.Motivo, ref.Destino, ref.Notes, ref.Estado)
	return err
}

func (r *repoPG) ListReferrals(ctx context.Context, documentoID string, admissionID uuid.UUID) ([]*Referral, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, documento_id, admission_id, motivo, destino, notes, estado, created_at
		FROM referrals
		WHERE documento_id = $1 AND admission_id = $2
		ORDER BY created_at`, documentoID, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var referrals []*Referral
	for rows.Next() {
		var ref Referral
		if err := rows.Scan(&ref.ID, &ref.DocumentoID, &ref.AdmissionID, &ref.Motivo,
			&ref.Destino, &ref.Notes, &ref.Estado, &ref.CreatedAt); err != nil {
			return nil, err
		}
		referrals = append(referrals, &ref)
	}
	return referrals, rows.Err()
}
