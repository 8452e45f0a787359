package engine

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// Per-call protocol states.
const (
	StateIdle       = "idle"
	StatePlanning   = "planning"
	StateStaging    = "staging"
	StateCommitting = "committing"
	StateDone       = "done"
	StateFailed     = "failed"
	StateResyncing  = "resyncing"
)

const (
	eventPlan   = "plan"
	eventStage  = "stage"
	eventCommit = "commit"
	eventFinish = "finish"
	eventFail   = "fail"
	eventResync = "resync"
)

var opTransitions = fsm.Events{
	{Name: eventPlan, Src: []string{StateIdle}, Dst: StatePlanning},
	{Name: eventStage, Src: []string{StatePlanning}, Dst: StateStaging},
	{Name: eventCommit, Src: []string{StateStaging}, Dst: StateCommitting},
	// An empty plan finishes straight from planning.
	{Name: eventFinish, Src: []string{StatePlanning, StateCommitting}, Dst: StateDone},
	{Name: eventFail, Src: []string{StateIdle, StatePlanning, StateStaging, StateCommitting}, Dst: StateFailed},
	{Name: eventResync, Src: []string{StateFailed}, Dst: StateResyncing},
}

// opState tracks one call through the protocol.
type opState struct {
	fsm    *fsm.FSM
	logger *slog.Logger
}

func newOpState(logger *slog.Logger) *opState {
	s := &opState{logger: logger}
	s.fsm = fsm.NewFSM(
		StateIdle,
		opTransitions,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug("state transition", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

// fire applies event. Every transition the coordinator fires is legal from
// the state it is in, so a refusal is logged rather than returned. Caller
// cancellation must not leave the machine mid-transition.
func (s *opState) fire(ctx context.Context, event string) {
	if err := s.fsm.Event(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("unexpected state transition", "event", event, "state", s.fsm.Current(), "error", err)
	}
}

func (s *opState) current() string {
	return s.fsm.Current()
}
