package scheduler

import "fmt"

// State represents the state of the frame loop. It can be one of
// the following:
//
//   - Idle
//   - Running
//   - Halted
type State int

const (
	// Idle represents a scheduler with no active loop.
	Idle State = iota
	// Running represents a scheduler whose loop is advancing
	// the engine once per refresh.
	Running
	// Halted represents a scheduler whose loop stopped because
	// a frame advance failed.
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	default:
		return "Unknown"
	}
}

// Status is a snapshot of the scheduler. Err is set when Halted.
type Status struct {
	State  State
	Err    error
	Frames uint64
}

func (s Status) IsRunning() bool {
	return s.State == Running
}

func (s Status) IsHalted() bool {
	return s.State == Halted
}

// String returns the status line shown next to the readiness line.
func (s Status) String() string {
	switch s.State {
	case Running:
		return fmt.Sprintf("running (frame %d)", s.Frames)
	case Halted:
		return fmt.Sprintf("halted: %v", s.Err)
	default:
		return "idle"
	}
}
