package coop

// State is the scheduling state of a task slot.
type State int

const (
	// StateAvailable marks a slot that holds no task and is free for
	// Spawn to claim.
	StateAvailable State = iota

	// StateReady marks a slot whose task can run but is not currently
	// executing.
	StateReady

	// StateRunning marks the slot whose task is executing. At most one
	// slot is Running at any instant.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "Available"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	default:
		return "Invalid"
	}
}
