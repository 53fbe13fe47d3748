package outbox

import (
	"context"

	"chartkit/internal/chart"
)

// Record is the payload offered to the remote sink for one chart mutation.
type Record struct {
	ID        string       `json:"id"`
	Chart     *chart.Chart `json:"chart"`
	UpdatedAt int64        `json:"updated_at"` // ms epoch
}

// Sink is the remote mutation sink consumed during an outbox drain.
//
// Upsert applies one record remotely. The error is opaque to the outbox: any
// non-nil error means "not yet applied" and the mutation stays queued; nil
// means the record is durably applied and may be forgotten locally. Upsert
// must be idempotent since the outbox delivers at least once.
type Sink interface {
	Upsert(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

// Upsert implements Sink.
func (f SinkFunc) Upsert(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}
