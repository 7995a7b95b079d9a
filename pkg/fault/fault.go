// Package fault classifies the errors a viewer session can produce.
//
// Every failure surfaced to the user belongs to exactly one Kind. No kind is
// retried automatically: transport and negotiation failures leave the session
// in a terminal state, decode failures drop a single frame and transfer
// failures clear the active download.
package fault

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error for handling purposes.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindTransport covers signaling or side-channel send/receive failures.
	KindTransport
	// KindProtocolDecode covers malformed or unrecognized inbound messages.
	KindProtocolDecode
	// KindNegotiation covers offer, local description or answer failures.
	KindNegotiation
	// KindTransfer covers device-reported download errors and stalls.
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocolDecode:
		return "protocol_decode"
	case KindNegotiation:
		return "negotiation"
	case KindTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Action is what the owner of an error does with it.
type Action int

const (
	// ActionDrop logs the error and discards the offending input.
	ActionDrop Action = iota
	// ActionSurface reports the error to the user and keeps the session alive.
	ActionSurface
	// ActionFail reports the error and moves the session to its terminal state.
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionDrop:
		return "drop"
	case ActionSurface:
		return "surface"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport wraps err as a KindTransport error.
func Transport(op string, err error) *Error { return New(KindTransport, op, err) }

// ProtocolDecode wraps err as a KindProtocolDecode error.
func ProtocolDecode(op string, err error) *Error { return New(KindProtocolDecode, op, err) }

// Negotiation wraps err as a KindNegotiation error.
func Negotiation(op string, err error) *Error { return New(KindNegotiation, op, err) }

// Transfer wraps a device supplied message as a KindTransfer error.
func Transfer(op string, message string) *Error {
	return New(KindTransfer, op, errors.New(message))
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ActionFor maps an error to the handling the session applies to it.
func ActionFor(err error) Action {
	switch KindOf(err) {
	case KindProtocolDecode:
		return ActionDrop
	case KindTransport, KindNegotiation:
		return ActionFail
	default:
		return ActionSurface
	}
}

// IsRetryable is always false: failures are reported and never retried.
func IsRetryable(error) bool {
	return false
}
