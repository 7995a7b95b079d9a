package session

import (
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/media"
	"github.com/rescp17/intrusionViewer/pkg/signaling"
)

// Event is anything the session loop consumes. Producers only post events;
// all state lives on the loop.
type Event interface {
	isEvent()
}

type event struct{}

func (event) isEvent() {}

// CandidateEvent carries a locally gathered candidate; nil marks the end of gathering.
type CandidateEvent struct {
	event
	Candidate *webrtc.ICECandidate
}

type EnvelopeEvent struct {
	event
	Envelope signaling.Envelope
}

// SignalingClosedEvent is posted when the read pump stops.
type SignalingClosedEvent struct {
	event
	Err error
}

type ConnectionStateEvent struct {
	event
	State webrtc.PeerConnectionState
}

type ChannelOpenEvent struct{ event }

type ChannelCloseEvent struct{ event }

type FrameEvent struct {
	event
	Frame control.Frame
}

type TrackEvent struct {
	event
	Track media.RemoteTrack
}

// FuncEvent runs Fn on the loop. Timers and UI requests use it.
type FuncEvent struct {
	event
	Fn func()
}

type DisconnectEvent struct{ event }

type connectedEvent struct {
	event
	err error
}
