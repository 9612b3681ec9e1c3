package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopping, next)

	next, err = Transition(next, EventProcess)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, next)

	next, err = Transition(next, EventComplete)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, next)
}

func TestTransitionFailFromAnyActiveStateGoesFailed(t *testing.T) {
	states := []State{StateIdle, StateRecording, StateStopping, StateProcessing}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateFailed, next)
	}
}

func TestTransitionTerminalStatesRejectEverything(t *testing.T) {
	events := []Event{EventStart, EventStop, EventProcess, EventComplete, EventFail}
	for _, terminal := range []State{StateCompleted, StateFailed} {
		for _, event := range events {
			next, err := Transition(terminal, event)
			require.Error(t, err)
			require.Equal(t, terminal, next)
		}
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle process invalid", state: StateIdle, event: EventProcess, want: StateIdle, wantErr: true},
		{name: "recording start invalid", state: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
		{name: "recording complete invalid", state: StateRecording, event: EventComplete, want: StateRecording, wantErr: true},
		{name: "stopping stop invalid", state: StateStopping, event: EventStop, want: StateStopping, wantErr: true},
		{name: "processing stop invalid", state: StateProcessing, event: EventStop, want: StateProcessing, wantErr: true},
		{name: "stopping process valid", state: StateStopping, event: EventProcess, want: StateProcessing, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestTerminal(t *testing.T) {
	require.True(t, Terminal(StateCompleted))
	require.True(t, Terminal(StateFailed))
	require.False(t, Terminal(StateIdle))
	require.False(t, Terminal(StateRecording))
	require.False(t, Terminal(StateStopping))
	require.False(t, Terminal(StateProcessing))
}
