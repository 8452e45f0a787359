package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/ordinal/internal/engine"
	"github.com/roach88/ordinal/internal/notify"
	"github.com/roach88/ordinal/internal/order"
	"github.com/roach88/ordinal/internal/store"
	"github.com/roach88/ordinal/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory store.
type Harness struct {
	store    *store.Store
	recorder *testutil.RecordingStore
	coord    *engine.Coordinator
	clock    *testutil.DeterministicClock
	logger   *slog.Logger

	groupOf map[string]string
	events  []TraceEvent
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open an in-memory SQLite store and seed every group
//  2. Wrap it in a RecordingStore sharing one logical clock with the outcome
//     recorder, so writes and outcomes interleave in call order
//  3. Run each step through a Coordinator
//  4. Read back every group and evaluate assertions
//
// Batched phases run with a concurrency of one, which keeps write order and
// therefore the trace identical across runs.
//
// A non-nil error means the harness itself could not run; scenario failures
// are reported through Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		clock:   testutil.NewDeterministicClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		groupOf: make(map[string]string),
	}
	h.recorder = testutil.NewRecordingStore(st, h.clock)

	if err := h.seed(ctx, scenario.Groups); err != nil {
		return nil, err
	}

	opts := []engine.CoordinatorOption{
		engine.WithLogger(h.logger),
		engine.WithMaxConcurrency(1),
		engine.WithOpIDGenerator(engine.NewFixedGenerator()),
		engine.WithNotifier(notify.Func(h.recordOutcome)),
	}
	if scenario.BatchThreshold != nil {
		opts = append(opts, engine.WithBatchThreshold(*scenario.BatchThreshold))
	}
	if scenario.OffsetMargin != nil {
		opts = append(opts, engine.WithOffsetMargin(*scenario.OffsetMargin))
	}
	h.coord = engine.NewCoordinator(h.recorder, opts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Action(), err))
		}
	}

	result.Trace = h.trace()

	final := finalState{
		items:       make(map[string][]order.Item, len(scenario.Groups)),
		writes:      result.WriteCount(),
		needsResync: h.coord.NeedsResync,
	}
	for _, g := range scenario.Groups {
		items, err := st.ListOrdered(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("read group %s: %w", g.ID, err)
		}
		final.items[g.ID] = items
		result.FinalOrder[g.ID] = order.IDs(items)
	}

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(a, final); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context, groups []Group) error {
	for _, g := range groups {
		for _, id := range g.Items {
			if _, err := h.store.AppendItem(ctx, order.Item{ID: id, GroupID: g.ID, Title: id}); err != nil {
				return fmt.Errorf("seed group %s: %w", g.ID, err)
			}
			h.groupOf[id] = g.ID
		}
	}
	return nil
}

// runStep executes one step. The returned error describes a broken
// expectation, not an engine error the step expected.
func (h *Harness) runStep(ctx context.Context, step Step) error {
	switch {
	case step.Reorder != nil:
		s := step.Reorder
		res, err := h.coord.Reorder(ctx, s.Group, order.Move{FromIndex: s.From, ToIndex: s.To})
		return checkKind(step.Expect, res, err)

	case step.Permute != nil:
		res, err := h.coord.ReorderToPermutation(ctx, step.Permute.Group, step.Permute.Order)
		return checkKind(step.Expect, res, err)

	case step.Compact != nil:
		res, err := h.coord.Compact(ctx, step.Compact.Group)
		return checkKind(step.Expect, res, err)

	case step.Delete != nil:
		if err := h.store.DeleteItem(ctx, step.Delete.Item); err != nil {
			return err
		}
		h.events = append(h.events, TraceEvent{
			Seq:   h.clock.Next(),
			Type:  EventDelete,
			Group: h.groupOf[step.Delete.Item],
			Item:  step.Delete.Item,
		})
		return nil

	case step.Resync != nil:
		if _, err := h.coord.Resync(ctx, step.Resync.Group); err != nil {
			return err
		}
		h.events = append(h.events, TraceEvent{
			Seq:   h.clock.Next(),
			Type:  EventResync,
			Group: step.Resync.Group,
		})
		return nil

	case step.FailWrite != nil:
		h.recorder.FailNth(step.FailWrite.Nth, nil)
		return nil

	default:
		return fmt.Errorf("step has no action")
	}
}

func checkKind(expect string, res engine.Result, err error) error {
	want := expect
	if want == "" {
		want = string(engine.KindSuccess)
	}
	if string(res.Kind) != want {
		if err != nil {
			return fmt.Errorf("got %s, want %s: %w", res.Kind, want, err)
		}
		return fmt.Errorf("got %s, want %s", res.Kind, want)
	}
	return nil
}

// recordOutcome is the coordinator's notifier. Calls are settled one at a
// time, so no locking is needed.
func (h *Harness) recordOutcome(_ context.Context, groupID string, o engine.Outcome) {
	h.events = append(h.events, TraceEvent{
		Seq:    h.clock.Next(),
		Type:   EventOutcome,
		Op:     o.Op,
		Group:  groupID,
		Kind:   string(o.Kind),
		Reason: string(o.Reason),
		Writes: o.Writes,
	})
}

// trace merges recorded writes with step events in seq order.
func (h *Harness) trace() []TraceEvent {
	writes := h.recorder.Writes()
	out := make([]TraceEvent, 0, len(writes)+len(h.events))
	for _, w := range writes {
		ev := TraceEvent{
			Seq:      w.Seq,
			Type:     EventWrite,
			Group:    h.groupOf[w.ItemID],
			Item:     w.ItemID,
			Position: w.Position,
		}
		if w.Err != nil {
			ev.Type = EventWriteFailed
		}
		out = append(out, ev)
	}
	out = append(out, h.events...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
