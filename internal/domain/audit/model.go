package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action classes.
const (
	ClassAccess   = "access"
	ClassMutation = "mutation"
	ClassSecurity = "security"
)

// Entry is one append-only audit row. Entries are never updated or deleted
// individually; the retention job removes them by age.
type Entry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ActorID      string    `db:"actor_id" json:"actor_id"`
	ActorRoles   []string  `db:"actor_roles" json:"actor_roles"`
	Action       string    `db:"action" json:"action"`
	ActionClass  string    `db:"action_class" json:"action_class"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	ResourceID   string    `db:"resource_id" json:"resource_id"`
	Outcome      int       `db:"outcome" json:"outcome"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	ErrorDetail  *string   `db:"error_detail" json:"error_detail,omitempty"`
	RequestID    string    `db:"request_id" json:"request_id"`
	IPAddress    string    `db:"ip_address" json:"ip_address"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Query filters audit reads.
type Query struct {
	ActorID string
	Class   string
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}
