package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/domain/audit"
	"github.com/clinica/clinica/internal/platform/middleware"
)

func TestAuditTrailRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := audit.NewService(audit.NewRepoPG(globalDB.Pool), 365, zerolog.Nop())
	actorID := uuid.NewString()

	entries := []middleware.AuditEntry{
		{
			ActorID:      actorID,
			ActorRoles:   []string{"practitioner"},
			Action:       "create",
			ActionClass:  audit.ClassMutation,
			ResourceType: "admissions",
			ResourceID:   uuid.NewString(),
			Outcome:      201,
			DurationMs:   8,
			RequestID:    uuid.NewString(),
			IPAddress:    "10.1.2.3",
			OccurredAt:   time.Now(),
		},
		{
			ActorID:     actorID,
			ActorRoles:  []string{"practitioner"},
			Action:      "read",
			ActionClass: audit.ClassAccess,
			Outcome:     200,
			OccurredAt:  time.Now(),
		},
		{
			ActorID:     actorID,
			ActionClass: audit.ClassSecurity,
			Action:      "read",
			Outcome:     403,
			ErrorDetail: "required role: admin",
			OccurredAt:  time.Now(),
		},
	}
	for _, e := range entries {
		if err := svc.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, total, err := svc.List(ctx, audit.Query{ActorID: actorID, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("total = %d, rows = %d; want 3", total, len(got))
	}

	denials, total, err := svc.SecurityDenials(ctx, actorID, 50, 0)
	if err != nil {
		t.Fatalf("denials: %v", err)
	}
	if total != 1 {
		t.Fatalf("denials = %d, want 1", total)
	}
	d := denials[0]
	if d.Outcome != 403 || d.ErrorDetail == nil || *d.ErrorDetail != "required role: admin" {
		t.Errorf("denial row incomplete: %+v", d)
	}
	if len(d.ActorRoles) != 0 {
		t.Errorf("expected empty roles, got %v", d.ActorRoles)
	}
}

func TestAuditTimeWindowFilter(t *testing.T) {
	ctx := context.Background()
	svc := audit.NewService(audit.NewRepoPG(globalDB.Pool), 365, zerolog.Nop())
	actorID := uuid.NewString()

	base := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		err := svc.Record(ctx, middleware.AuditEntry{
			ActorID:     actorID,
			Action:      "read",
			ActionClass: audit.ClassAccess,
			Outcome:     200,
			OccurredAt:  base.Add(time.Duration(i) * 12 * time.Hour),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	// Half-open window [base+6h, base+18h) holds only the middle entry.
	got, total, err := svc.List(ctx, audit.Query{
		ActorID: actorID,
		From:    base.Add(6 * time.Hour),
		To:      base.Add(18 * time.Hour),
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Errorf("window returned %d rows, want 1", total)
	}
}

func TestAuditRetentionPurge(t *testing.T) {
	ctx := context.Background()
	repo := audit.NewRepoPG(globalDB.Pool)
	svc := audit.NewService(repo, 30, zerolog.Nop())
	actorID := uuid.NewString()

	old := middleware.AuditEntry{
		ActorID:     actorID,
		Action:      "read",
		ActionClass: audit.ClassAccess,
		Outcome:     200,
		OccurredAt:  time.Now().Add(-31 * 24 * time.Hour),
	}
	fresh := old
	fresh.OccurredAt = time.Now()
	if err := svc.Record(ctx, old); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := svc.Record(ctx, fresh); err != nil {
		t.Fatalf("record fresh: %v", err)
	}

	if _, err := svc.PurgeExpired(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}

	got, total, err := svc.List(ctx, audit.Query{ActorID: actorID, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].CreatedAt.Before(time.Now().Add(-time.Hour)) {
		t.Errorf("purge kept %d rows for actor, want only the fresh one", total)
	}
}
