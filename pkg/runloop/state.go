package runloop

// State is the round state of the run loop.
type State uint8

const (
	StateUninitialized State = iota
	StateIdle
	StateDkg
	StateSign
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateDkg:
		return "dkg"
	case StateSign:
		return "sign"
	default:
		return "unknown"
	}
}

// RoundInFlight reports whether a DKG or signing round is running.
func (s State) RoundInFlight() bool {
	return s == StateDkg || s == StateSign
}
