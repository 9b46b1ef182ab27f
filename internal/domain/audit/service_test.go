package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/middleware"
)

type mockRepo struct {
	entries []*Entry
	fail    error
}

func (m *mockRepo) Append(ctx context.Context, e *Entry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepo) List(ctx context.Context, q Query) ([]*Entry, int, error) {
	var out []*Entry
	for _, e := range m.entries {
		if q.ActorID != "" && e.ActorID != q.ActorID {
			continue
		}
		if q.Class != "" && e.ActionClass != q.Class {
			continue
		}
		if !q.From.IsZero() && e.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.CreatedAt.Before(q.To) {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []*Entry
	var removed int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

func TestRecordConvertsMiddlewareEntry(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 365, zerolog.Nop())

	err := svc.Record(context.Background(), middleware.AuditEntry{
		ActorID:      "u1",
		ActorRoles:   []string{"practitioner"},
		Action:       "create",
		ActionClass:  ClassMutation,
		ResourceType: "admissions",
		ResourceID:   "a1",
		Outcome:      201,
		DurationMs:   12,
		ErrorDetail:  "",
		RequestID:    "req-1",
		IPAddress:    "10.0.0.1",
		OccurredAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ActionClass != ClassMutation || e.Outcome != 201 || e.ErrorDetail != nil {
		t.Errorf("conversion wrong: %+v", e)
	}
}

func TestRecordPropagatesSinkError(t *testing.T) {
	repo := &mockRepo{fail: errors.New("sink down")}
	svc := NewService(repo, 365, zerolog.Nop())

	// The middleware is responsible for swallowing; Record itself reports.
	if err := svc.Record(context.Background(), middleware.AuditEntry{ActionClass: ClassAccess}); err == nil {
		t.Error("expected sink error to surface to the middleware")
	}
}

func TestListValidatesClass(t *testing.T) {
	svc := NewService(&mockRepo{}, 365, zerolog.Nop())
	if _, _, err := svc.List(context.Background(), Query{Class: "bogus"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSecurityDenialsFilter(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 365, zerolog.Nop())

	entries := []middleware.AuditEntry{
		{ActorID: "u1", ActionClass: ClassSecurity, Outcome: 403},
		{ActorID: "u1", ActionClass: ClassAccess, Outcome: 200},
		{ActorID: "u2", ActionClass: ClassSecurity, Outcome: 401},
	}
	for _, me := range entries {
		if err := svc.Record(context.Background(), me); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, total, err := svc.SecurityDenials(context.Background(), "u1", 50, 0)
	if err != nil {
		t.Fatalf("denials: %v", err)
	}
	if total != 1 || got[0].Outcome != 403 {
		t.Errorf("expected only u1's denial, got %d entries", total)
	}

	all, total, _ := svc.SecurityDenials(context.Background(), "", 50, 0)
	if total != 2 || len(all) != 2 {
		t.Errorf("expected both denials without actor filter, got %d", total)
	}
}

func TestPurgeExpired(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 30, zerolog.Nop())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	repo.entries = []*Entry{
		{CreatedAt: now.Add(-31 * 24 * time.Hour)},
		{CreatedAt: now.Add(-29 * 24 * time.Hour)},
		{CreatedAt: now},
	}

	removed, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 || len(repo.entries) != 2 {
		t.Errorf("removed = %d, kept = %d, want 1 removed / 2 kept", removed, len(repo.entries))
	}
}
