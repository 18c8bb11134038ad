package capture

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
