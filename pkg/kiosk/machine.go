package kiosk

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
)

// NewMachine declares the screen transitions. Side effects live in the
// Engine, which fires events while holding its own lock; callbacks here
// must not call back into the Engine.
func NewMachine(initialState string) *fsm.FSM {
	events := fsm.Events{
		{Name: EventSelectPrimary, Src: []string{StateHome}, Dst: StateReason},
		{Name: EventSelectReason, Src: []string{StateReason}, Dst: StateThankYou},
		{Name: EventBack, Src: []string{StateReason}, Dst: StateHome},
		{Name: EventReset, Src: []string{StateReason, StateThankYou}, Dst: StateHome},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			metrics.ScreensTotal.WithLabelValues(e.Dst).Inc()
		},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}
