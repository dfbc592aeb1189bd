package engine

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// LoginState tracks the most recent Login attempt.
type LoginState int

const (
	LoginIdle LoginState = iota
	LoginAwaitingResponse
	LoginLoggedIn
	LoginFailedHashed
	LoginFailedCleartextRetrying
	LoginFailedFinal
)

func (s LoginState) String() string {
	switch s {
	case LoginIdle:
		return "idle"
	case LoginAwaitingResponse:
		return "awaiting_response"
	case LoginLoggedIn:
		return "logged_in"
	case LoginFailedHashed:
		return "failed_hashed"
	case LoginFailedCleartextRetrying:
		return "failed_cleartext_retrying"
	case LoginFailedFinal:
		return "failed_final"
	default:
		return "unknown"
	}
}
