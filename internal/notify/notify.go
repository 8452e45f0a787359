// Package notify delivers reorder outcomes to observers.
package notify

import (
	"context"
	"log/slog"

	"github.com/roach88/ordinal/internal/engine"
)

// LogNotifier logs every outcome at a level matching its kind.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Report implements engine.Notifier.
func (n *LogNotifier) Report(ctx context.Context, groupID string, o engine.Outcome) {
	attrs := []any{
		"op_id", o.OpID,
		"op", o.Op,
		"group_id", groupID,
		"kind", o.Kind,
		"changes", o.Changes,
		"writes", o.Writes,
		"duration", o.Duration,
	}
	if o.Reason != "" {
		attrs = append(attrs, "reason", o.Reason)
	}
	if o.Err != nil {
		attrs = append(attrs, "error", o.Err)
	}

	switch o.Kind {
	case engine.KindSuccess:
		n.logger.InfoContext(ctx, "reorder succeeded", attrs...)
	case engine.KindRejected, engine.KindValidationError:
		n.logger.WarnContext(ctx, "reorder refused", attrs...)
	default:
		n.logger.ErrorContext(ctx, "reorder failed", attrs...)
	}
}

// Multi fans an outcome out to several notifiers in order.
type Multi []engine.Notifier

// Report implements engine.Notifier.
func (m Multi) Report(ctx context.Context, groupID string, o engine.Outcome) {
	for _, n := range m {
		if n != nil {
			n.Report(ctx, groupID, o)
		}
	}
}

// Func adapts a function to engine.Notifier.
type Func func(ctx context.Context, groupID string, o engine.Outcome)

// Report implements engine.Notifier.
func (f Func) Report(ctx context.Context, groupID string, o engine.Outcome) {
	f(ctx, groupID, o)
}
