package wander

import "fmt"

// MotionState is the phase of an avoidance cycle the controller is in.
type MotionState int

// The phases of a cycle, in the order they run.
const (
	Forward MotionState = iota
	Retreat
	Turn
)

func (s MotionState) String() string {
	switch s {
	case Forward:
		return "forward"
	case Retreat:
		return "retreat"
	case Turn:
		return "turn"
	default:
		return fmt.Sprintf("MotionState(%d)", int(s))
	}
}

// RunStatus is whether the control loop is running. It only changes on Run, Stop and the loop
// exiting.
type RunStatus int

// The run statuses.
const (
	Idle RunStatus = iota
	Running
	// Stopping means a stop was requested and the loop has not exited yet.
	Stopping
)

func (s RunStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("RunStatus(%d)", int(s))
	}
}

// Snapshot is a consistent view of the controller's state.
type Snapshot struct {
	State       MotionState
	Status      RunStatus
	HazardClear bool
	// Current and Target are headings in radians.
	Current float64
	Target  float64
	RunID   string
	// Cycles counts the completed forward, retreat and turn cycles of the current or last run.
	Cycles int
	// Err is the error that ended the last run, if any.
	Err error
}
