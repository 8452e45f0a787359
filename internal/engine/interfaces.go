package engine

import (
	"context"
	"time"

	"github.com/roach88/ordinal/internal/order"
)

// PositionStore is the persistence contract the engine writes through.
//
// SetPosition must be checked against the store's uniqueness constraint on
// (group, position) at the moment it runs. A violation is reported as an error
// wrapping order.ErrConstraintViolation; a missing item wraps
// order.ErrItemNotFound.
type PositionStore interface {
	SetPosition(ctx context.Context, itemID string, position int) error
	ListOrdered(ctx context.Context, groupID string) ([]order.Item, error)
}

// MaxPositioner is optionally implemented by stores that can read the
// current highest position of a group directly.
type MaxPositioner interface {
	MaxPosition(ctx context.Context, groupID string) (int, error)
}

// Cache drops derived views of a group. Failures are the implementation's
// to log; they never fail a reorder.
type Cache interface {
	Invalidate(ctx context.Context, groupID string)
}

// Notifier receives the outcome of every settled call.
type Notifier interface {
	Report(ctx context.Context, groupID string, outcome Outcome)
}

// Guard admits at most one in-flight operation per group.
//
// TryAcquire never blocks waiting for the holder: ok is false when the group
// is busy. release must be called exactly once when ok is true.
type Guard interface {
	TryAcquire(ctx context.Context, groupID string) (release func(), ok bool, err error)
}

// OpIDGenerator generates operation IDs for log correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type OpIDGenerator interface {
	Generate() string
}

// Kind classifies the outcome of a call.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindPartialFailure  Kind = "partial_failure"
	KindRejected        Kind = "rejected"
	KindValidationError Kind = "validation_error"
	KindTransportError  Kind = "transport_error"
)

// Outcome is what a Notifier sees for one call.
type Outcome struct {
	OpID     string
	Op       string
	Kind     Kind
	Reason   Reason
	Changes  int
	Writes   int
	Duration time.Duration
	Err      error
}

// Result describes a settled call.
type Result struct {
	OpID    string         `json:"op_id"`
	GroupID string         `json:"group_id"`
	Kind    Kind           `json:"kind"`
	Reason  Reason         `json:"reason,omitempty"`
	State   string         `json:"state"`
	Changes []order.Change `json:"changes"`

	// Order is the group's item IDs after a successful call.
	Order []string `json:"order,omitempty"`

	// Writes counts successful SetPosition calls: 2*len(Changes) on success.
	Writes   int           `json:"writes"`
	Duration time.Duration `json:"duration"`
}

func (r Result) outcome(op string, err error) Outcome {
	return Outcome{
		OpID:     r.OpID,
		Op:       op,
		Kind:     r.Kind,
		Reason:   r.Reason,
		Changes:  len(r.Changes),
		Writes:   r.Writes,
		Duration: r.Duration,
		Err:      err,
	}
}
