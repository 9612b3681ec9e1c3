// Package fsm defines the recording session lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const (
	EventStart    Event = "start"
	EventStop     Event = "stop"
	EventProcess  Event = "process"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
)

// Terminal reports whether a state accepts no further events.
func Terminal(state State) bool {
	return state == StateCompleted || state == StateFailed
}

// Transition applies one lifecycle event to the current state.
//
// EventFail is accepted from any non-terminal state; Completed and Failed are
// final, so a new session always starts from a fresh Idle machine.
func Transition(current State, event Event) (State, error) {
	if Terminal(current) {
		return current, invalidTransition(current, event)
	}
	if event == EventFail {
		return StateFailed, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventProcess:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventComplete:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
