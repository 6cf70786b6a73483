package delivery

// State enumerates the delivery loop lifecycle:
// Idle -> Connecting -> Streaming -> (Closed | Errored).
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether the loop has stopped for good.
func (s State) Terminal() bool { return s == StateClosed || s == StateErrored }
