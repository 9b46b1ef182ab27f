package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/domain/clinical"
	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

func newClinicalService() *clinical.Service {
	return clinical.NewService(
		clinical.NewPatientRepoPG(globalDB.Pool),
		clinical.NewRecordRepoPG(globalDB.Pool),
	)
}

func TestChartRoundTrip(t *testing.T) {
	ctx := staffCtx()
	svc := newClinicalService()
	patient := createTestPatient(t, ctx, "Chart Roundtrip")

	enc := &clinical.Encounter{
		EncounterType: "consulta",
		StartedAt:     time.Now().Add(-time.Hour),
		Note:          ptrStr("initial visit"),
	}
	if err := svc.AddEncounter(ctx, patient.ID, enc); err != nil {
		t.Fatalf("add encounter: %v", err)
	}

	obs := &clinical.Observation{
		EncounterID: &enc.ID,
		Code:        "8867-4",
		ValueNum:    floatPtr(72),
		Unit:        ptrStr("bpm"),
		ObservedAt:  time.Now(),
	}
	if err := svc.AddObservation(ctx, patient.ID, obs); err != nil {
		t.Fatalf("add observation: %v", err)
	}

	cnd := &clinical.Condition{
		Code:           "E11",
		Description:    ptrStr("Type 2 diabetes"),
		ClinicalStatus: "active",
	}
	if err := svc.AddCondition(ctx, patient.ID, cnd); err != nil {
		t.Fatalf("add condition: %v", err)
	}

	// Every row must have been stamped with the patient's shard key.
	encounters, err := svc.ListEncounters(ctx, patient.ID)
	if err != nil {
		t.Fatalf("list encounters: %v", err)
	}
	if len(encounters) != 1 || encounters[0].DocumentoID != patient.DocumentoID {
		t.Errorf("encounters = %d rows, documento = %q", len(encounters), encounters[0].DocumentoID)
	}

	observations, err := svc.ListObservations(ctx, patient.ID)
	if err != nil {
		t.Fatalf("list observations: %v", err)
	}
	if len(observations) != 1 || observations[0].DocumentoID != patient.DocumentoID {
		t.Error("observation missing or not co-located with its patient")
	}

	conditions, err := svc.ListConditions(ctx, patient.ID)
	if err != nil {
		t.Fatalf("list conditions: %v", err)
	}
	if len(conditions) != 1 || conditions[0].DocumentoID != patient.DocumentoID {
		t.Error("condition missing or not co-located with its patient")
	}
}

func TestPatientOwnershipAgainstStore(t *testing.T) {
	ctx := context.Background()
	identitySvc := newIdentityService()
	svc := newClinicalService()

	owner, _ := createTestUser(t, ctx, identitySvc, "patient")
	stranger, _ := createTestUser(t, ctx, identitySvc, "patient")

	patient := createTestPatient(t, staffCtx(), "Owned Record")
	patient.UserID = &owner.ID
	if err := svc.UpdatePatient(staffCtx(), patient); err != nil {
		t.Fatalf("link patient to account: %v", err)
	}

	ownerCtx := auth.WithActor(ctx, owner.ID.String(), []string{"patient"})
	got, err := svc.GetPatient(ownerCtx, patient.ID)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if got.ID != patient.ID {
		t.Errorf("owner read returned wrong patient %s", got.ID)
	}

	// A foreign chart reads as missing, same as an id that does not exist.
	strangerCtx := auth.WithActor(ctx, stranger.ID.String(), []string{"patient"})
	if _, err := svc.GetPatient(strangerCtx, patient.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger read: got %v, want ErrNotFound", err)
	}
	if _, err := svc.GetPatient(strangerCtx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown id read: got %v, want ErrNotFound", err)
	}

	// MyRecord resolves through the account link.
	mine, err := svc.MyRecord(ownerCtx)
	if err != nil {
		t.Fatalf("my record: %v", err)
	}
	if mine.ID != patient.ID {
		t.Errorf("my record = %s, want %s", mine.ID, patient.ID)
	}
}

func TestDocumentoIDImmutableOnUpdate(t *testing.T) {
	ctx := staffCtx()
	svc := newClinicalService()
	patient := createTestPatient(t, ctx, "Immutable Shard Key")

	original := patient.DocumentoID
	patient.DocumentoID = uniqueDocumento()
	patient.FullName = "Renamed Patient"
	if err := svc.UpdatePatient(ctx, patient); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.GetPatient(ctx, patient.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DocumentoID != original {
		t.Errorf("documento_id changed to %q, want %q", got.DocumentoID, original)
	}
	if got.FullName != "Renamed Patient" {
		t.Errorf("full_name = %q, want the updated value", got.FullName)
	}
}

func TestGetPatientByDocumentoID(t *testing.T) {
	ctx := staffCtx()
	svc := newClinicalService()
	patient := createTestPatient(t, ctx, "Documento Lookup")

	got, err := svc.GetPatientByDocumentoID(ctx, patient.DocumentoID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != patient.ID {
		t.Errorf("lookup returned %s, want %s", got.ID, patient.ID)
	}

	if _, err := svc.GetPatientByDocumentoID(ctx, "00000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown documento: got %v, want ErrNotFound", err)
	}
}

func TestDuplicatePatientRejected(t *testing.T) {
	ctx := staffCtx()
	svc := newClinicalService()
	patient := createTestPatient(t, ctx, "First Holder")

	dup := &clinical.Patient{
		DocumentoID: patient.DocumentoID,
		PacienteID:  patient.PacienteID,
		FullName:    "Second Holder",
	}
	if err := svc.CreatePatient(ctx, dup); err == nil {
		t.Error("expected duplicate patient row to be rejected")
	}
}
