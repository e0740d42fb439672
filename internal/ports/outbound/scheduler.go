package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadlineScheduler closes requests whose bidding deadline has passed
type DeadlineScheduler interface {
	// Schedule registers or moves the deadline of a request
	Schedule(ctx context.Context, requestID uuid.UUID, dueAt time.Time) error

	// Cancel forgets the deadline of a request
	Cancel(ctx context.Context, requestID uuid.UUID) error
}
