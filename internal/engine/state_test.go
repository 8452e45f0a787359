package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpState_HappyPath(t *testing.T) {
	st := newOpState(discardLogger())
	ctx := context.Background()
	assert.Equal(t, StateIdle, st.current())

	for _, step := range []struct{ event, want string }{
		{eventPlan, StatePlanning},
		{eventStage, StateStaging},
		{eventCommit, StateCommitting},
		{eventFinish, StateDone},
	} {
		st.fire(ctx, step.event)
		assert.Equal(t, step.want, st.current(), "after %s", step.event)
	}
}

func TestOpState_EmptyPlanFinishesFromPlanning(t *testing.T) {
	st := newOpState(discardLogger())
	st.fire(context.Background(), eventPlan)
	st.fire(context.Background(), eventFinish)
	assert.Equal(t, StateDone, st.current())
}

func TestOpState_FailureThenResync(t *testing.T) {
	st := newOpState(discardLogger())
	ctx := context.Background()
	st.fire(ctx, eventPlan)
	st.fire(ctx, eventStage)
	st.fire(ctx, eventFail)
	assert.Equal(t, StateFailed, st.current())
	st.fire(ctx, eventResync)
	assert.Equal(t, StateResyncing, st.current())
}

func TestOpState_IllegalTransitionIgnored(t *testing.T) {
	st := newOpState(discardLogger())
	st.fire(context.Background(), eventCommit)
	assert.Equal(t, StateIdle, st.current())
}

func TestOpState_CancelledContext(t *testing.T) {
	st := newOpState(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st.fire(ctx, eventPlan)
	assert.Equal(t, StatePlanning, st.current())
}
