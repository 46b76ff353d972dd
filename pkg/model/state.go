package model

// ClientState represents where a client is in its life inside a simulation.
type ClientState string

const (
	ClientStatePending   ClientState = "PENDING" // arrival tick not reached yet
	ClientStateQueued    ClientState = "QUEUED"
	ClientStateInService ClientState = "IN_SERVICE"
	ClientStateBlocked   ClientState = "BLOCKED"
	ClientStateDone      ClientState = "DONE"
)

// String returns the string representation of the client state.
func (s ClientState) String() string {
	return string(s)
}

// IsTerminal returns true if the client will never be scheduled again.
func (s ClientState) IsTerminal() bool {
	return s == ClientStateDone
}

// ValidClientTransitions defines the allowed state transitions for clients.
var ValidClientTransitions = map[ClientState][]ClientState{
	ClientStatePending:   {ClientStateQueued},
	ClientStateQueued:    {ClientStateInService, ClientStateBlocked},
	ClientStateInService: {ClientStateQueued, ClientStateBlocked, ClientStateDone},
	ClientStateBlocked:   {ClientStateQueued},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ClientState) CanTransitionTo(next ClientState) bool {
	for _, allowed := range ValidClientTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
