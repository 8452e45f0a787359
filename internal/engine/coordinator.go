package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/ordinal/internal/order"
)

// Coordinator is the public entry point for reordering a group.
//
// One call runs at a time per group: a second call for a busy group is
// rejected, never queued. Calls for different groups run in parallel.
//
// After a partial failure the group is flagged and every further call is
// rejected with ReasonResyncRequired until Resync succeeds.
type Coordinator struct {
	store    PositionStore
	writer   *Writer
	offsets  OffsetCalculator
	guard    Guard
	cache    Cache
	notifier Notifier
	opIDs    OpIDGenerator
	logger   *slog.Logger

	batchThreshold int
	maxConcurrency int

	mu     sync.Mutex
	resync map[string]bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithBatchThreshold sets the largest change count written sequentially.
//
// Default: 5 (DefaultBatchThreshold)
// Use WithBatchThreshold(0) to batch every non-empty plan.
func WithBatchThreshold(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.batchThreshold = n
	}
}

// WithMaxConcurrency bounds concurrent writes of a batched phase.
// Default: 8 (DefaultMaxConcurrency)
func WithMaxConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.maxConcurrency = n
	}
}

// WithOffsetMargin sets the gap between the group's highest position and the
// staging region. Values below 1 are treated as 1.
func WithOffsetMargin(margin int) CoordinatorOption {
	return func(c *Coordinator) {
		c.offsets.Margin = margin
	}
}

// WithGuard replaces the in-process guard, e.g. with a shared lock.
func WithGuard(g Guard) CoordinatorOption {
	return func(c *Coordinator) {
		c.guard = g
	}
}

// WithCache sets the cache invalidated after writes.
func WithCache(cache Cache) CoordinatorOption {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

// WithNotifier sets the outcome notifier.
func WithNotifier(n Notifier) CoordinatorOption {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithOpIDGenerator sets the operation ID source. Default: UUIDv7Generator.
func WithOpIDGenerator(gen OpIDGenerator) CoordinatorOption {
	return func(c *Coordinator) {
		c.opIDs = gen
	}
}

// NewCoordinator creates a Coordinator writing through store.
func NewCoordinator(store PositionStore, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:          store,
		offsets:        OffsetCalculator{Margin: order.DefaultOffsetMargin},
		guard:          NewLocalGuard(),
		opIDs:          UUIDv7Generator{},
		logger:         slog.Default(),
		batchThreshold: DefaultBatchThreshold,
		maxConcurrency: DefaultMaxConcurrency,
		resync:         make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.writer = NewWriter(store, c.batchThreshold, c.maxConcurrency, c.logger)
	return c
}

// planFunc computes a plan from the group's snapshot.
type planFunc func(snapshot []order.Item) (order.Plan, error)

// Reorder moves the item at mv.FromIndex to mv.ToIndex.
func (c *Coordinator) Reorder(ctx context.Context, groupID string, mv order.Move) (Result, error) {
	var invalid error
	if mv.FromIndex < 0 || mv.ToIndex < 0 {
		invalid = fmt.Errorf("%w: negative index in %s", order.ErrInvalidMove, mv)
	}
	return c.run(ctx, "reorder", groupID, invalid, func(snapshot []order.Item) (order.Plan, error) {
		return order.PlanMove(snapshot, mv)
	})
}

// ReorderToPermutation puts the group in the order given by ids, which must
// name every item of the group exactly once.
func (c *Coordinator) ReorderToPermutation(ctx context.Context, groupID string, ids []string) (Result, error) {
	normalized, invalid := order.NormalizeIDs(ids)
	if invalid == nil && len(normalized) == 0 {
		invalid = fmt.Errorf("%w: no ids", order.ErrInvalidPermutation)
	}
	return c.run(ctx, "permute", groupID, invalid, func(snapshot []order.Item) (order.Plan, error) {
		return order.PlanPermutation(snapshot, normalized)
	})
}

// Compact closes gaps left by deletions, keeping the current order.
func (c *Coordinator) Compact(ctx context.Context, groupID string) (Result, error) {
	return c.run(ctx, "compact", groupID, nil, order.PlanCompaction)
}

// Resync re-reads the authoritative order of a group and clears its resync
// flag. Callers should replace any local view with the returned items.
func (c *Coordinator) Resync(ctx context.Context, groupID string) ([]order.Item, error) {
	id, err := order.NormalizeID(groupID)
	if err != nil {
		return nil, &ReorderError{Code: ErrCodeValidation, GroupID: groupID, Phase: PhaseValidate, Err: err}
	}

	items, err := c.store.ListOrdered(ctx, id)
	if err != nil {
		return nil, &ReorderError{Code: ErrCodeTransport, GroupID: id, Phase: PhaseSnapshot, Err: err}
	}

	c.mu.Lock()
	delete(c.resync, id)
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.Invalidate(ctx, id)
	}
	c.logger.Info("group resynced", "group_id", id, "items", len(items))
	return items, nil
}

// NeedsResync reports whether groupID is blocked by an earlier partial failure.
func (c *Coordinator) NeedsResync(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resync[groupID]
}

func (c *Coordinator) run(ctx context.Context, op, rawGroupID string, invalid error, plan planFunc) (Result, error) {
	start := time.Now()
	res := Result{OpID: c.opIDs.Generate(), GroupID: rawGroupID}

	groupID, err := order.NormalizeID(rawGroupID)
	if err == nil {
		res.GroupID = groupID
		err = invalid
	}

	logger := c.logger.With("op_id", res.OpID, "op", op, "group_id", res.GroupID)
	st := newOpState(logger)

	settle := func(err error) (Result, error) {
		return c.settle(ctx, op, st, res, start, err)
	}

	if err != nil {
		return settle(&ReorderError{Code: ErrCodeValidation, GroupID: res.GroupID, Phase: PhaseValidate, Err: err})
	}

	release, ok, err := c.guard.TryAcquire(ctx, groupID)
	if err != nil {
		return settle(&ReorderError{Code: ErrCodeTransport, GroupID: groupID, Phase: PhaseGuard, Err: err})
	}
	if !ok {
		return settle(newRejected(groupID, ReasonConcurrentOperation))
	}
	defer release()

	if c.NeedsResync(groupID) {
		return settle(newRejected(groupID, ReasonResyncRequired))
	}

	st.fire(ctx, eventPlan)
	snapshot, err := c.store.ListOrdered(ctx, groupID)
	if err != nil {
		return settle(&ReorderError{Code: ErrCodeTransport, GroupID: groupID, Phase: PhaseSnapshot, Err: err})
	}

	p, err := plan(snapshot)
	if err != nil {
		return settle(&ReorderError{Code: ErrCodeValidation, GroupID: groupID, Phase: PhasePlan, Err: err})
	}
	res.Changes = p.Changes
	if p.Empty() {
		res.Order = order.IDs(p.Apply(snapshot))
		st.fire(ctx, eventFinish)
		return settle(nil)
	}

	base, err := c.offsets.Base(ctx, c.store, groupID, snapshot)
	if err != nil {
		return settle(&ReorderError{Code: ErrCodeTransport, GroupID: groupID, Phase: PhaseOffset, Err: err})
	}
	logger.Debug("plan ready", "changes", len(p.Changes), "base", base, "batched", c.writer.Batched(len(p.Changes)))

	// Once the first write is issued the protocol runs to completion or to
	// the first failure, whatever happens to the caller's context.
	wctx := context.WithoutCancel(ctx)

	report, err := c.writer.Apply(wctx, p, base, func(ph Phase) {
		switch ph {
		case PhaseStage:
			st.fire(ctx, eventStage)
		case PhaseCommit:
			st.fire(ctx, eventCommit)
		}
	})
	res.Writes = report.Writes()
	if err != nil {
		return settle(err)
	}

	res.Order = order.IDs(p.Apply(snapshot))
	st.fire(ctx, eventFinish)
	return settle(nil)
}

// settle classifies the call, applies its side effects, and reports it.
func (c *Coordinator) settle(ctx context.Context, op string, st *opState, res Result, start time.Time, err error) (Result, error) {
	res.Kind = KindSuccess
	if err != nil {
		re, ok := err.(*ReorderError)
		if !ok {
			re = &ReorderError{Code: ErrCodeTransport, GroupID: res.GroupID, Err: err}
			err = re
		}
		res.Kind = re.Code.Kind()
		res.Reason = re.Reason

		st.fire(ctx, eventFail)
		if re.Code == ErrCodePartialFailure {
			c.mu.Lock()
			c.resync[res.GroupID] = true
			c.mu.Unlock()
			st.fire(ctx, eventResync)
		}
	}
	res.State = st.current()
	res.Duration = time.Since(start)

	ctx = context.WithoutCancel(ctx)
	// Views are stale after any write, successful or not.
	if c.cache != nil && (res.Kind == KindSuccess || res.Kind == KindPartialFailure) {
		c.cache.Invalidate(ctx, res.GroupID)
	}
	if c.notifier != nil {
		c.notifier.Report(ctx, res.GroupID, res.outcome(op, err))
	}

	if err != nil {
		st.logger.Debug("reorder settled", "kind", res.Kind, "writes", res.Writes, "error", err)
		return res, err
	}
	st.logger.Debug("reorder settled", "kind", res.Kind, "changes", len(res.Changes), "writes", res.Writes)
	return res, nil
}
