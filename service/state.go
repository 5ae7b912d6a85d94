package service

// ConnState is the lifecycle stage of a client connection.
type ConnState uint8

const (
	StateAccepted ConnState = iota
	StateNegotiating
	StateAwaitingCommand
	StateConnecting
	StateRelaying
	StateClosed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateNegotiating:
		return "negotiating"
	case StateAwaitingCommand:
		return "awaiting command"
	case StateConnecting:
		return "connecting"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
