package session

// Phase is the negotiation state of the viewer session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseOfferCreated
	PhaseAwaitingAnswer
	PhaseEstablished
	PhaseFailed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseOfferCreated:
		return "offer created"
	case PhaseAwaitingAnswer:
		return "awaiting answer"
	case PhaseEstablished:
		return "established"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransitionTo reports whether the session may move from p to next.
// Failed is reachable from every live phase; Closed from every phase but itself.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch next {
	case PhaseClosed:
		return p != PhaseClosed
	case PhaseFailed:
		return p != PhaseFailed && p != PhaseClosed
	}
	switch p {
	case PhaseIdle:
		return next == PhaseConnecting
	case PhaseConnecting:
		return next == PhaseOfferCreated
	case PhaseOfferCreated:
		return next == PhaseAwaitingAnswer
	case PhaseAwaitingAnswer:
		return next == PhaseEstablished
	default:
		return false
	}
}

// IsTerminal reports whether no further negotiation can happen.
func (p Phase) IsTerminal() bool {
	return p == PhaseFailed || p == PhaseClosed
}
