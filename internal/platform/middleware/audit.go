package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// AuditEntry captures who did what to which resource, when, from where, and
// with what outcome. Denied attempts are recorded the same as successes.
type AuditEntry struct {
	ActorID      string
	ActorRoles   []string
	Action       string // read, create, update, delete
	ActionClass  string // access, mutation, security
	ResourceType string
	ResourceID   string
	Outcome      int // HTTP status
	DurationMs   int64
	ErrorDetail  string
	RequestID    string
	IPAddress    string
	Path         string
	Method       string
	OccurredAt   time.Time
}

// AuditRecorder persists audit entries. The concrete implementation lives in
// the audit domain; tests provide a mock.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) Record(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit records every request under /api/ after the handler runs. A failure
// to persist the entry is logged and swallowed; audit emission never fails
// the operation it describes.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/") {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			entry := AuditEntry{
				OccurredAt: start.UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				DurationMs: time.Since(start).Milliseconds(),
				Outcome:    outcomeStatus(c, err),
			}

			ctx := req.Context()
			entry.ActorID = auth.UserIDFromContext(ctx)
			entry.ActorRoles = auth.RolesFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}
			if err != nil {
				entry.ErrorDetail = err.Error()
			}

			entry.Action = methodToAction(req.Method)
			entry.ActionClass = classify(req.Method, entry.Outcome)
			entry.ResourceType, entry.ResourceID = splitResource(path)

			if recorder != nil {
				if recErr := recorder.Record(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.ActionClass == "security" {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("actor_id", entry.ActorID).
				Strs("actor_roles", entry.ActorRoles).
				Str("action", entry.Action).
				Str("action_class", entry.ActionClass).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Int("outcome", entry.Outcome).
				Int64("duration_ms", entry.DurationMs).
				Str("remote_ip", entry.IPAddress).
				Msg("audit")

			return err
		}
	}
}

// outcomeStatus derives the response status before the error handler has run.
func outcomeStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return apperr.HTTPStatus(err)
}

// classify assigns the action class. Authorization failures are security
// events regardless of method; otherwise reads are access and writes are
// mutations.
func classify(method string, status int) string {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "security"
	}
	if method == http.MethodGet || method == http.MethodHead {
		return "access"
	}
	return "mutation"
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResource parses "/api/patients/123/..." into ("patients", "123").
func splitResource(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/api/")
	segments := strings.Split(trimmed, "/")
	resourceType := "unknown"
	resourceID := ""
	if len(segments) > 0 && segments[0] != "" {
		resourceType = segments[0]
	}
	if len(segments) > 1 && segments[1] != "" {
		resourceID = segments[1]
	}
	return resourceType, resourceID
}
