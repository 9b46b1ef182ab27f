package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/middleware"
)

// Service persists audit entries and answers review queries. Emission is
// fire-and-forget: the middleware logs and swallows any error returned from
// Record, so a failing sink never fails the operation being audited.
type Service struct {
	repo      Repository
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, retentionDays int, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// Record implements middleware.AuditRecorder.
func (s *Service) Record(ctx context.Context, me middleware.AuditEntry) error {
	e := &Entry{
		ActorID:      me.ActorID,
		ActorRoles:   me.ActorRoles,
		Action:       me.Action,
		ActionClass:  me.ActionClass,
		ResourceType: me.ResourceType,
		ResourceID:   me.ResourceID,
		Outcome:      me.Outcome,
		DurationMs:   me.DurationMs,
		RequestID:    me.RequestID,
		IPAddress:    me.IPAddress,
		CreatedAt:    me.OccurredAt,
	}
	if e.ActorRoles == nil {
		e.ActorRoles = []string{}
	}
	if me.ErrorDetail != "" {
		detail := me.ErrorDetail
		e.ErrorDetail = &detail
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, q Query) ([]*Entry, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Class != "" && q.Class != ClassAccess && q.Class != ClassMutation && q.Class != ClassSecurity {
		return nil, 0, apperr.Validationf("unknown action class %q", q.Class)
	}
	return s.repo.List(ctx, q)
}

// SecurityDenials returns security-class entries, optionally for one actor.
func (s *Service) SecurityDenials(ctx context.Context, actorID string, limit, offset int) ([]*Entry, int, error) {
	return s.List(ctx, Query{ActorID: actorID, Class: ClassSecurity, Limit: limit, Offset: offset})
}

// PurgeExpired deletes entries older than the retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("audit retention purge")
	}
	return removed, nil
}

// RunRetention purges on the given interval until ctx is cancelled.
func (s *Service) RunRetention(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil {
				s.logger.Error().Err(err).Msg("audit retention purge failed")
			}
		}
	}
}
