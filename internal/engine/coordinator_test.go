package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/order"
	"github.com/roach88/ordinal/internal/testutil"
)

func TestCoordinator_MoveLastToFront(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C", "D")
	rec := testutil.NewRecordingStore(mem, nil)
	cache := &recordingCache{}
	notifier := &recordingNotifier{}
	c := newTestCoordinator(rec, WithCache(cache), WithNotifier(notifier))

	res, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 3, ToIndex: 0})
	require.NoError(t, err)

	assert.Equal(t, "op-1", res.OpID)
	assert.Equal(t, "G", res.GroupID)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 8, res.Writes)
	assert.Equal(t, []order.Change{
		{ItemID: "D", From: 4, To: 1},
		{ItemID: "A", From: 1, To: 2},
		{ItemID: "B", From: 2, To: 3},
		{ItemID: "C", From: 3, To: 4},
	}, res.Changes)

	assert.Equal(t, []string{"D", "A", "B", "C"}, mem.Order("G"))
	assert.Len(t, rec.Writes(), 8)
	assert.Equal(t, []string{"G"}, cache.invalidated())
	assert.Equal(t, []Kind{KindSuccess}, notifier.kinds())
	assert.False(t, c.NeedsResync("G"))
}

func TestCoordinator_MinimalWriteCounts(t *testing.T) {
	tests := []struct {
		name       string
		move       order.Move
		wantWrites int
		wantOrder  []string
	}{
		{"adjacent swap", order.Move{FromIndex: 2, ToIndex: 3}, 4, []string{"A", "B", "D", "C", "E"}},
		{"first to last", order.Move{FromIndex: 0, ToIndex: 4}, 10, []string{"B", "C", "D", "E", "A"}},
		{"middle span", order.Move{FromIndex: 3, ToIndex: 1}, 6, []string{"A", "D", "B", "C", "E"}},
		{"no-op", order.Move{FromIndex: 2, ToIndex: 2}, 0, []string{"A", "B", "C", "D", "E"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C", "D", "E")
			c := newTestCoordinator(mem)

			res, err := c.Reorder(context.Background(), "G", tt.move)
			require.NoError(t, err)
			assert.Equal(t, KindSuccess, res.Kind)
			assert.Equal(t, tt.wantWrites, res.Writes)
			assert.Equal(t, tt.wantWrites, mem.Writes())
			assert.Equal(t, tt.wantOrder, mem.Order("G"))
		})
	}
}

func TestCoordinator_NoOpStillInvalidates(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B")
	cache := &recordingCache{}
	c := newTestCoordinator(mem, WithCache(cache))

	res, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Changes)
	assert.Equal(t, []string{"G"}, cache.invalidated())
}

func TestCoordinator_PermutationIdempotent(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C", "D")
	c := newTestCoordinator(mem)
	ctx := context.Background()

	res, err := c.ReorderToPermutation(ctx, "G", []string{"C", "A", "D", "B"})
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, []string{"C", "A", "D", "B"}, mem.Order("G"))
	first := mem.Writes()

	res, err = c.ReorderToPermutation(ctx, "G", []string{"C", "A", "D", "B"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Writes, "second application writes nothing")
	assert.Equal(t, first, mem.Writes())
}

func TestCoordinator_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Coordinator) (Result, error)
		want error
	}{
		{"empty group id", func(c *Coordinator) (Result, error) {
			return c.Reorder(context.Background(), "  ", order.Move{})
		}, order.ErrInvalidID},
		{"negative index", func(c *Coordinator) (Result, error) {
			return c.Reorder(context.Background(), "G", order.Move{FromIndex: -1, ToIndex: 0})
		}, order.ErrInvalidMove},
		{"index out of range", func(c *Coordinator) (Result, error) {
			return c.Reorder(context.Background(), "G", order.Move{FromIndex: 0, ToIndex: 3})
		}, order.ErrInvalidMove},
		{"empty group", func(c *Coordinator) (Result, error) {
			return c.Reorder(context.Background(), "empty", order.Move{})
		}, order.ErrEmptyGroup},
		{"unknown id in permutation", func(c *Coordinator) (Result, error) {
			return c.ReorderToPermutation(context.Background(), "G", []string{"A", "B", "Z"})
		}, order.ErrInvalidPermutation},
		{"duplicate id in permutation", func(c *Coordinator) (Result, error) {
			return c.ReorderToPermutation(context.Background(), "G", []string{"A", "A", "B"})
		}, order.ErrInvalidPermutation},
		{"blank id in permutation", func(c *Coordinator) (Result, error) {
			return c.ReorderToPermutation(context.Background(), "G", []string{"A", "", "B"})
		}, order.ErrInvalidID},
		{"no ids", func(c *Coordinator) (Result, error) {
			return c.ReorderToPermutation(context.Background(), "G", nil)
		}, order.ErrInvalidPermutation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C")
			notifier := &recordingNotifier{}
			c := newTestCoordinator(mem, WithNotifier(notifier))

			res, err := tt.call(c)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %v", err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidationError, res.Kind)
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, 0, mem.Writes())
			assert.Equal(t, []Kind{KindValidationError}, notifier.kinds())
			assert.False(t, c.NeedsResync("G"))
		})
	}
}

func TestCoordinator_NormalizesGroupID(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("café", "A", "B")
	c := newTestCoordinator(mem)

	res, err := c.Reorder(context.Background(), " café ", order.Move{FromIndex: 1, ToIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, "café", res.GroupID)
	assert.Equal(t, []string{"B", "A"}, mem.Order("café"))
}

func TestCoordinator_ConcurrentCallRejected(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C")
	blocking := testutil.NewBlockingStore(mem)
	notifier := &recordingNotifier{}
	c := newTestCoordinator(blocking, WithNotifier(notifier))

	type outcome struct {
		res Result
		err error
	}
	first := make(chan outcome)
	go func() {
		res, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 2, ToIndex: 0})
		first <- outcome{res, err}
	}()
	<-blocking.Entered()

	res, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 0, ToIndex: 1})
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, ReasonConcurrentOperation, RejectionReason(err))
	assert.Equal(t, KindRejected, res.Kind)
	assert.Equal(t, ReasonConcurrentOperation, res.Reason)
	assert.Equal(t, 0, mem.Writes(), "rejected call must not write")

	blocking.Release()
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, KindSuccess, got.res.Kind)
	assert.Equal(t, []string{"C", "A", "B"}, mem.Order("G"))

	// Once released, the group accepts calls again.
	_, err = c.Reorder(context.Background(), "G", order.Move{FromIndex: 0, ToIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, mem.Order("G"))
	assert.Equal(t, []Kind{KindRejected, KindSuccess, KindSuccess}, notifier.kinds())
}

func TestCoordinator_OtherGroupProceedsWhileBusy(t *testing.T) {
	mem := testutil.NewMemoryStore().
		Seed("G", "A", "B", "C").
		Seed("H", "W", "X", "Y", "Z")
	blocking := testutil.NewBlockingStore(mem, "G")
	notifier := &recordingNotifier{}
	c := newTestCoordinator(blocking, WithNotifier(notifier))
	ctx := context.Background()

	type outcome struct {
		res Result
		err error
	}
	first := make(chan outcome)
	go func() {
		res, err := c.Reorder(ctx, "G", order.Move{FromIndex: 2, ToIndex: 0})
		first <- outcome{res, err}
	}()
	<-blocking.Entered()

	res, err := c.Reorder(ctx, "H", order.Move{FromIndex: 3, ToIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, 8, res.Writes)
	assert.Equal(t, []string{"Z", "W", "X", "Y"}, res.Order)
	assert.Equal(t, []string{"Z", "W", "X", "Y"}, mem.Order("H"))

	_, err = c.Reorder(ctx, "G", order.Move{FromIndex: 0, ToIndex: 1})
	require.Error(t, err)
	assert.Equal(t, ReasonConcurrentOperation, RejectionReason(err))
	assert.Equal(t, []string{"A", "B", "C"}, mem.Order("G"), "held group is untouched")

	blocking.Release()
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, []string{"C", "A", "B"}, got.res.Order)
	assert.Equal(t, []string{"C", "A", "B"}, mem.Order("G"))
	assert.Equal(t, []Kind{KindSuccess, KindRejected, KindSuccess}, notifier.kinds())
	assert.False(t, c.NeedsResync("G"))
	assert.False(t, c.NeedsResync("H"))
}

func TestCoordinator_ResultOrder(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C")
	c := newTestCoordinator(mem)
	ctx := context.Background()

	res, err := c.ReorderToPermutation(ctx, "G", []string{"B", "C", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, res.Order)

	// A no-op still reports the settled order.
	res, err = c.Compact(ctx, "G")
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.Equal(t, []string{"B", "C", "A"}, res.Order)

	rec := testutil.NewRecordingStore(mem, nil)
	c = newTestCoordinator(rec)
	rec.FailNth(1, nil)
	res, err = c.Reorder(ctx, "G", order.Move{FromIndex: 2, ToIndex: 0})
	require.Error(t, err)
	assert.Nil(t, res.Order, "no settled order after a partial failure")
}

func TestCoordinator_SharedGuardAcrossCoordinators(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B")
	guard := NewLocalGuard()
	release, ok, err := guard.TryAcquire(context.Background(), "G")
	require.NoError(t, err)
	require.True(t, ok)

	c := newTestCoordinator(mem, WithGuard(guard))
	_, err = c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 0})
	assert.True(t, IsRejected(err))

	release()
	_, err = c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 0})
	assert.NoError(t, err)
}

func TestCoordinator_PartialFailureAndResync(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C", "D")
	rec := testutil.NewRecordingStore(mem, nil)
	cache := &recordingCache{}
	notifier := &recordingNotifier{}
	c := newTestCoordinator(rec, WithCache(cache), WithNotifier(notifier))
	ctx := context.Background()

	// Four staging writes succeed, then the second commit write fails.
	rec.FailNth(6, nil)
	res, err := c.Reorder(ctx, "G", order.Move{FromIndex: 3, ToIndex: 0})
	require.Error(t, err)
	assert.True(t, IsPartialFailure(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	var re *ReorderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, PhaseCommit, re.Phase)
	assert.Equal(t, "A", re.ItemID)
	assert.Equal(t, 2, re.Position)

	assert.Equal(t, KindPartialFailure, res.Kind)
	assert.Equal(t, StateResyncing, res.State)
	assert.Equal(t, 5, res.Writes)
	assert.True(t, c.NeedsResync("G"))
	assert.Equal(t, []string{"G"}, cache.invalidated(), "partial failure invalidates views")

	// The store holds D at 1 and A, B, C in staging.
	assert.Equal(t, []string{"D", "A", "B", "C"}, mem.Order("G"))

	_, err = c.Reorder(ctx, "G", order.Move{FromIndex: 0, ToIndex: 1})
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, ReasonResyncRequired, RejectionReason(err))

	_, err = c.Compact(ctx, "G")
	assert.Equal(t, ReasonResyncRequired, RejectionReason(err), "compaction is blocked too")

	items, err := c.Resync(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A", "B", "C"}, order.IDs(items))
	assert.False(t, order.IsDense(items))
	assert.False(t, c.NeedsResync("G"))

	res, err = c.Compact(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Writes)
	items, err = mem.ListOrdered(ctx, "G")
	require.NoError(t, err)
	assert.True(t, order.IsDense(items))
	assert.Equal(t, []string{"D", "A", "B", "C"}, order.IDs(items))

	assert.Equal(t, []Kind{KindPartialFailure, KindRejected, KindRejected, KindSuccess}, notifier.kinds())
}

func TestCoordinator_ResyncIsPerGroup(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B").Seed("H", "X", "Y")
	rec := testutil.NewRecordingStore(mem, nil)
	c := newTestCoordinator(rec)
	ctx := context.Background()

	rec.FailNth(1, nil)
	_, err := c.Reorder(ctx, "G", order.Move{FromIndex: 1, ToIndex: 0})
	require.True(t, IsPartialFailure(err))

	_, err = c.Reorder(ctx, "H", order.Move{FromIndex: 1, ToIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "X"}, mem.Order("H"))
	assert.True(t, c.NeedsResync("G"))
	assert.False(t, c.NeedsResync("H"))
}

func TestCoordinator_TransportErrors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("snapshot", func(t *testing.T) {
		s := &brokenStore{listErr: boom}
		c := newTestCoordinator(s)
		res, err := c.Reorder(context.Background(), "G", order.Move{})
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, KindTransportError, res.Kind)
		assert.Equal(t, 0, s.writes)
		assert.False(t, c.NeedsResync("G"), "nothing was written")
	})

	t.Run("guard", func(t *testing.T) {
		mem := testutil.NewMemoryStore().Seed("G", "A", "B")
		c := newTestCoordinator(mem, WithGuard(errGuard{err: boom}))
		_, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 0})
		assert.True(t, IsTransport(err))
		assert.Equal(t, 0, mem.Writes())
	})

	t.Run("offset", func(t *testing.T) {
		mem := testutil.NewMemoryStore().Seed("G", "A", "B")
		s := maxStore{PositionStore: struct{ PositionStore }{mem}, err: boom}
		c := newTestCoordinator(s)
		_, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 0})
		assert.True(t, IsTransport(err))
		assert.Equal(t, 0, mem.Writes())
	})
}

func TestCoordinator_IgnoresCancellationOnceWriting(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B", "C", "D")
	c := newTestCoordinator(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.Reorder(ctx, "G", order.Move{FromIndex: 3, ToIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Writes)
	assert.Equal(t, []string{"D", "A", "B", "C"}, mem.Order("G"))
}

func TestCoordinator_ClosesGapsWhileMoving(t *testing.T) {
	mem := testutil.NewMemoryStore()
	require.NoError(t, mem.Put(order.Item{ID: "A", GroupID: "G", Position: 1}))
	require.NoError(t, mem.Put(order.Item{ID: "B", GroupID: "G", Position: 3}))
	require.NoError(t, mem.Put(order.Item{ID: "C", GroupID: "G", Position: 4}))
	c := newTestCoordinator(mem)

	// C fills the gap; B already sits at its target slot.
	res, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 2, ToIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []order.Change{{ItemID: "C", From: 4, To: 2}}, res.Changes)
	assert.Equal(t, 2, res.Writes)

	items, err := mem.ListOrdered(context.Background(), "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, order.IDs(items))
	assert.True(t, order.IsDense(items))
}

func TestCoordinator_BatchedReorder(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	mem := testutil.NewMemoryStore().Seed("grp", ids...)
	c := newTestCoordinator(mem, WithBatchThreshold(3), WithMaxConcurrency(4))

	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	res, err := c.ReorderToPermutation(context.Background(), "grp", reversed)
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, 24, res.Writes)
	assert.Equal(t, reversed, mem.Order("grp"))
}

func TestCoordinator_OffsetMargin(t *testing.T) {
	mem := testutil.NewMemoryStore().Seed("G", "A", "B")
	rec := testutil.NewRecordingStore(mem, nil)
	c := newTestCoordinator(rec, WithOffsetMargin(100))

	_, err := c.Reorder(context.Background(), "G", order.Move{FromIndex: 1, ToIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 102, rec.Writes()[0].Position)
}
