package msr

// State is the lifecycle state of a session.
type State int

const (
	StateUnclaimed State = iota
	StateClaimed
	StateConfigured
	StateCommsVerified
	StateReady
	StateTerminated
)

var stateNames = [...]string{
	StateUnclaimed:     "unclaimed",
	StateClaimed:       "claimed",
	StateConfigured:    "configured",
	StateCommsVerified: "comms-verified",
	StateReady:         "ready",
	StateTerminated:    "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
