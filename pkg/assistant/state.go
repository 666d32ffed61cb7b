package assistant

import "fmt"

// State is the assistant's single source of truth for what a tap does.
type State int

const (
	Idle State = iota
	Capturing
	Analyzing
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Analyzing:
		return "analyzing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a transition.
type Event int

const (
	EventTap Event = iota
	EventCameraFailed
	EventAnalysisDone
)

func (e Event) String() string {
	switch e {
	case EventTap:
		return "tap"
	case EventCameraFailed:
		return "camera_failed"
	case EventAnalysisDone:
		return "analysis_done"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Action is the side effect the caller performs after a transition.
type Action int

const (
	ActionNone Action = iota
	ActionStartCamera
	ActionCapture
)

// Next is the complete transition table. Pairs not listed keep the state
// and do nothing; in particular a tap while analyzing is ignored.
func Next(s State, e Event) (State, Action) {
	switch {
	case s == Idle && e == EventTap:
		return Capturing, ActionStartCamera
	case s == Capturing && e == EventTap:
		return Analyzing, ActionCapture
	case s == Capturing && e == EventCameraFailed:
		return Idle, ActionNone
	case s == Analyzing && e == EventAnalysisDone:
		return Idle, ActionNone
	default:
		return s, ActionNone
	}
}
