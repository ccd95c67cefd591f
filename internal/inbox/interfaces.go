package inbox

import (
	"context"
	"time"
)

// Repository provides persistence for inbox messages and dead letters,
// implemented by internal/store against the global shared.db.
type Repository interface {
	Send(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	ListForAgent(ctx context.Context, to string, status Status) ([]*Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAcked(ctx context.Context, id string, at time.Time) error

	// ExpirePending moves every pending message whose ttl_expiry is before
	// now into the dead-letter table, one transaction per message so a
	// message is never absent from both tables or present in both.
	ExpirePending(ctx context.Context, now time.Time) (int, error)
	ListDeadLettersForAgent(ctx context.Context, to string) ([]*DeadLetter, error)
}
