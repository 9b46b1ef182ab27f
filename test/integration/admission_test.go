package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/domain/admission"
	"github.com/clinica/clinica/internal/domain/clinical"
	"github.com/clinica/clinica/internal/platform/apperr"
)

func newAdmissionService() *admission.Service {
	return admission.NewService(
		admission.NewRepoPG(globalDB.Pool),
		clinical.NewPatientRepoPG(globalDB.Pool),
		zerolog.Nop(),
	)
}

func normalVitals() admission.Vitals {
	return admission.Vitals{
		HeartRate:   intPtr(76),
		Temperature: floatPtr(36.8),
	}
}

func TestAdmissionCodesFromSequence(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Code Sequence")

	first, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
		Reason: "fever", Priority: admission.PriorityNormal, Vitals: normalVitals(),
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
		Reason: "follow up", Priority: admission.PriorityBaja, Vitals: normalVitals(),
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	for _, a := range []*admission.Admission{first, second} {
		if !strings.HasPrefix(a.AdmissionCode, "ADM-") {
			t.Errorf("code %q missing ADM- prefix", a.AdmissionCode)
		}
		if a.Status != admission.StatusPending {
			t.Errorf("status = %q, want pending", a.Status)
		}
		if a.DocumentoID != patient.DocumentoID {
			t.Errorf("admission not stamped with the patient shard key")
		}
	}
	if first.AdmissionCode == second.AdmissionCode {
		t.Errorf("codes collide: %q", first.AdmissionCode)
	}
}

func TestConcurrentAdmitSingleWinner(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Concurrent Admit")

	a, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
		Reason: "chest pain", Priority: admission.PriorityAlta, Vitals: normalVitals(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Admit(context.Background(), a.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrInvalidTransition):
			losses++
		default:
			t.Errorf("unexpected admit error: %v", err)
		}
	}
	if wins != 1 || losses != racers-1 {
		t.Errorf("wins = %d, losses = %d; want exactly one winner", wins, losses)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != admission.StatusAdmitted || got.AdmittedBy == nil || got.AdmittedAt == nil {
		t.Errorf("winner not recorded: %+v", got)
	}
}

func TestTriageQueueDrainOrder(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Queue Order")

	var ids []uuid.UUID
	for _, priority := range []string{admission.PriorityBaja, admission.PriorityUrgente, admission.PriorityNormal} {
		a, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
			Reason: "triage", Priority: priority, Vitals: normalVitals(),
		})
		if err != nil {
			t.Fatalf("create %s: %v", priority, err)
		}
		ids = append(ids, a.ID)
	}

	queue, _, err := svc.PendingQueue(ctx, 1000, 0)
	if err != nil {
		t.Fatalf("pending queue: %v", err)
	}

	// Other suites share the queue, so compare only this test's rows.
	position := make(map[uuid.UUID]int)
	for i, a := range queue {
		position[a.ID] = i
	}
	for _, id := range ids {
		if _, ok := position[id]; !ok {
			t.Fatalf("admission %s missing from the pending queue", id)
		}
	}
	baja, urgente, normal := position[ids[0]], position[ids[1]], position[ids[2]]
	if urgente >= normal || normal >= baja {
		t.Errorf("drain order urgente=%d normal=%d baja=%d; want urgente < normal < baja",
			urgente, normal, baja)
	}
}

func TestDischargeIsTerminal(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Terminal Discharge")

	a, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
		Reason: "observation", Vitals: normalVitals(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Straight from pending, without an admit.
	discharged, err := svc.Discharge(ctx, a.ID, admission.DischargeRequest{Notes: "sent home"})
	if err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if discharged.Status != admission.StatusDischarged || discharged.DischargedAt == nil {
		t.Errorf("discharge not recorded: %+v", discharged)
	}

	if _, err := svc.Admit(ctx, a.ID, uuid.New()); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("admit after discharge: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Discharge(ctx, a.ID, admission.DischargeRequest{Notes: "again"}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("double discharge: got %v, want ErrInvalidTransition", err)
	}
}

func TestUrgentIntakeByDocumento(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Urgent Intake")

	a, err := svc.CreateUrgent(ctx, admission.UrgentCreateRequest{
		DocumentoID: patient.DocumentoID,
		Reason:      "accident",
		Vitals:      normalVitals(),
	})
	if err != nil {
		t.Fatalf("create urgent: %v", err)
	}
	if a.Priority != admission.PriorityUrgente {
		t.Errorf("priority = %q, want urgente", a.Priority)
	}
	if a.PatientID != patient.ID {
		t.Errorf("resolved wrong patient %s", a.PatientID)
	}

	if _, err := svc.CreateUrgent(ctx, admission.UrgentCreateRequest{
		DocumentoID: "00000000", Reason: "accident", Vitals: normalVitals(),
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown documento: got %v, want ErrNotFound", err)
	}
}

func TestReferralBranchesWithoutTransition(t *testing.T) {
	ctx := staffCtx()
	svc := newAdmissionService()
	patient := createTestPatient(t, ctx, "Referral Flow")

	a, err := svc.Create(ctx, patient.ID, admission.CreateRequest{
		Reason: "specialist needed", Vitals: normalVitals(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ref, err := svc.Refer(ctx, a.ID, admission.ReferRequest{
		Motivo:  "cardiology consult",
		Destino: "cardiologia",
	})
	if err != nil {
		t.Fatalf("refer: %v", err)
	}
	if ref.Estado != "pendiente" {
		t.Errorf("estado = %q, want pendiente", ref.Estado)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != admission.StatusPending {
		t.Errorf("referral changed admission status to %q", got.Status)
	}

	refs, err := svc.ListReferrals(ctx, a.ID)
	if err != nil {
		t.Fatalf("list referrals: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != ref.ID {
		t.Errorf("referrals = %d rows", len(refs))
	}

	if _, err := svc.Discharge(ctx, a.ID, admission.DischargeRequest{Notes: "done"}); err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if _, err := svc.Refer(ctx, a.ID, admission.ReferRequest{Motivo: "late", Destino: "lab"}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("refer after discharge: got %v, want ErrInvalidTransition", err)
	}
}
