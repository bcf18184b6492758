package model

// State is the phase of a single fetch cycle.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateFetching
	StateNormalizing
	StateMerged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateNormalizing:
		return "normalizing"
	case StateMerged:
		return "merged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
