package clinical

import (
	"context"
	"errors"

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

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, documento_id, paciente_id, full_name, birth_date, sex,
	phone, email, address, user_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.DocumentoID, &p.PacienteID, &p.FullName, &p.BirthDate, &p.Sex,
		&p.Phone, &p.Email, &p.Address, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("patient not found")
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, documento_id, paciente_id, full_name, birth_date, sex,
			phone, email, address, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.DocumentoID, p.PacienteID, p.FullName, p.BirthDate, p.Sex,
		p.Phone, p.Email, p.Address, p.UserID)
	return err
}

// GetByID scans across shards; prefer GetByDocumentoID on hot paths.
func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByDocumentoID(ctx context.Context, documentoID string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE documento_id = $1`, documentoID))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET full_name=$3, birth_date=$4, sex=$5, phone=$6,
			email=$7, address=$8, user_id=$9, updated_at=NOW()
		WHERE documento_id = $1 AND id = $2`,
		p.DocumentoID, p.ID, p.FullName, p.BirthDate, p.Sex, p.Phone,
		p.Email, p.Address, p.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("patient not found")
	}
	return nil
}

// =========== Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *recordRepoPG) CreateEncounter(ctx context.Context, e *Encounter) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounters (id, documento_id, patient_id, encounter_type, started_at, ended_at, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.DocumentoID, e.PatientID, e.EncounterType, e.StartedAt, e.EndedAt, e.Note)
	return err
}

func (r *recordRepoPG) ListEncounters(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, documento_id, patient_id, encounter_type, started_at, ended_at, note, created_at
		FROM encounters
		WHERE documento_id = $1 AND patient_id = $2
		ORDER BY started_at DESC`, documentoID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var encounters []*Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.ID, &e.DocumentoID, &e.PatientID, &e.EncounterType,
			&e.StartedAt, &e.EndedAt, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		encounters = append(encounters, &e)
	}
	return encounters, rows.Err()
}

func (r *recordRepoPG) UpdateEncounter(ctx context.Context, e *Encounter) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounters SET encounter_type=$3, started_at=$4, ended_at=$5, note=$6
		WHERE documento_id = $1 AND id = $2`,
		e.DocumentoID, e.ID, e.EncounterType, e.StartedAt, e.EndedAt, e.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("encounter not found")
	}
	return nil
}

func (r *recordRepoPG) CreateObservation(ctx context.Context, o *Observation) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO observations (id, documento_id, patient_id, encounter_id, code,
			value_text, value_num, unit, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.DocumentoID, o.PatientID, o.EncounterID, o.Code,
		o.ValueText, o.ValueNum, o.Unit, o.ObservedAt)
	return err
}

func (r *recordRepoPG) ListObservations(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Observation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, documento_id, patient_id, encounter_id, code, value_text, value_num, unit, observed_at, created_at
		FROM observations
		WHERE documento_id = $1 AND patient_id = $2
		ORDER BY observed_at DESC`, documentoID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.DocumentoID, &o.PatientID, &o.EncounterID, &o.Code,
			&o.ValueText, &o.ValueNum, &o.Unit, &o.ObservedAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		observations = append(observations, &o)
	}
	return observations, rows.Err()
}

func (r *recordRepoPG) CreateCondition(ctx context.Context, cnd *Condition) error {
	cnd.ID = uuid.New()
	if cnd.ClinicalStatus == "" {
		cnd.ClinicalStatus = "active"
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO conditions (id, documento_id, patient_id, code, description, clinical_status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		cnd.ID, cnd.DocumentoID, cnd.PatientID, cnd.Code, cnd.Description, cnd.ClinicalStatus)
	return err
}

func (r *recordRepoPG) ListConditions(ctx context.Context, documentoID string, patientID uuid.UUID) ([]*Condition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, documento_id, patient_id, code, description, clinical_status, recorded_at
		FROM conditions
		WHERE documento_id = $1 AND patient_id = $2
		ORDER BY recorded_at DESC`, documentoID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conditions []*Condition
	for rows.Next() {
		var cnd Condition
		if err := rows.Scan(&cnd.ID, &cnd.DocumentoID, &cnd.PatientID, &cnd.Code,
			&cnd.Description, &cnd.ClinicalStatus, &cnd.RecordedAt); err != nil {
			return nil, err
		}
		conditions = append(conditions, &cnd)
	}
	return conditions, rows.Err()
}
