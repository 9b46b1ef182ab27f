package audit

import (
	"context"
	"time"
)

// Repository is the append-only audit sink.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, q Query) ([]*Entry, int, error)
	// DeleteOlderThan removes entries past retention; returns rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
