package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/ordinal/internal/order"
)

const (
	// DefaultBatchThreshold is the largest change count written sequentially.
	DefaultBatchThreshold = 5

	// DefaultMaxConcurrency bounds in-flight writes of a batched phase.
	DefaultMaxConcurrency = 8
)

// Writer applies a plan with the two-phase protocol:
//
//  1. Stage: change i is written to base+i, a region above every position
//     currently in the group.
//  2. Commit: every changed item is written to its final position.
//
// After Stage no changed item holds a slot in 1..N, and unchanged items
// already hold their targets, so every Commit write lands on a free slot.
// No two items of the group share a position at any instant.
//
// Plans with more than batchThreshold changes issue each phase concurrently;
// Commit starts only after every Stage write returned.
type Writer struct {
	store          PositionStore
	batchThreshold int
	maxConcurrency int
	logger         *slog.Logger
}

// WriteReport counts the writes that succeeded.
type WriteReport struct {
	Base      int `json:"base"`
	Staged    int `json:"staged"`
	Committed int `json:"committed"`
}

// Writes returns the total number of successful writes.
func (r WriteReport) Writes() int {
	return r.Staged + r.Committed
}

// NewWriter creates a Writer. A nil logger means slog.Default().
func NewWriter(store PositionStore, batchThreshold, maxConcurrency int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:          store,
		batchThreshold: max(batchThreshold, 0),
		maxConcurrency: max(maxConcurrency, 1),
		logger:         logger,
	}
}

// Apply runs Stage then Commit. onPhase, when not nil, is called as each
// phase starts; Commit is never announced if Stage failed.
//
// On failure the remaining writes of the failing phase are abandoned and the
// returned error is a PARTIAL_FAILURE *ReorderError. Nothing is undone.
func (w *Writer) Apply(ctx context.Context, plan order.Plan, base int, onPhase func(Phase)) (WriteReport, error) {
	report := WriteReport{Base: base}
	if onPhase == nil {
		onPhase = func(Phase) {}
	}

	onPhase(PhaseStage)
	n, err := w.Stage(ctx, plan, base)
	report.Staged = n
	if err != nil {
		return report, err
	}

	onPhase(PhaseCommit)
	n, err = w.Commit(ctx, plan)
	report.Committed = n
	return report, err
}

// Stage moves every changed item into the staging region starting at base.
func (w *Writer) Stage(ctx context.Context, plan order.Plan, base int) (int, error) {
	return w.phase(ctx, plan.GroupID, PhaseStage, plan.Changes, func(i int, _ order.Change) int {
		return base + i
	})
}

// Commit moves every changed item to its final position.
func (w *Writer) Commit(ctx context.Context, plan order.Plan) (int, error) {
	return w.phase(ctx, plan.GroupID, PhaseCommit, plan.Changes, func(_ int, c order.Change) int {
		return c.To
	})
}

// Batched reports whether a plan of n changes is written concurrently.
func (w *Writer) Batched(n int) bool {
	return n > w.batchThreshold
}

func (w *Writer) phase(
	ctx context.Context,
	groupID string,
	phase Phase,
	changes []order.Change,
	target func(int, order.Change) int,
) (int, error) {
	if !w.Batched(len(changes)) {
		for i, c := range changes {
			if err := w.write(ctx, groupID, phase, c.ItemID, target(i, c)); err != nil {
				return i, err
			}
		}
		return len(changes), nil
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrency)
	for i, c := range changes {
		g.Go(func() error {
			// Another write of this phase failed; don't start new ones.
			if gctx.Err() != nil {
				return nil
			}
			if err := w.write(ctx, groupID, phase, c.ItemID, target(i, c)); err != nil {
				return err
			}
			done.Add(1)
			return nil
		})
	}
	err := g.Wait()
	n := int(done.Load())
	if err == nil && n < len(changes) {
		// Skipped writes without a failing one: the caller's context ended.
		err = &ReorderError{Code: ErrCodePartialFailure, GroupID: groupID, Phase: phase, Err: context.Cause(gctx)}
	}
	return n, err
}

func (w *Writer) write(ctx context.Context, groupID string, phase Phase, itemID string, position int) error {
	if err := w.store.SetPosition(ctx, itemID, position); err != nil {
		if errors.Is(err, order.ErrConstraintViolation) {
			w.logger.Error("position uniqueness violated during reorder",
				"group_id", groupID,
				"phase", phase,
				"item_id", itemID,
				"position", position,
				"error", err,
			)
		}
		return &ReorderError{
			Code:     ErrCodePartialFailure,
			GroupID:  groupID,
			Phase:    phase,
			ItemID:   itemID,
			Position: position,
			Err:      err,
		}
	}
	w.logger.Debug("position written", "group_id", groupID, "phase", phase, "item_id", itemID, "position", position)
	return nil
}
