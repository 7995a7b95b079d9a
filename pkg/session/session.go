// Package session drives the viewer side of the negotiation and owns the
// event loop every other component posts into. Signaling envelopes, peer
// connection callbacks, data channel frames, timers and UI requests are all
// handled in arrival order on the goroutine running Run.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
	"github.com/rescp17/intrusionViewer/pkg/media"
	"github.com/rescp17/intrusionViewer/pkg/signaling"
	pkgwebrtc "github.com/rescp17/intrusionViewer/pkg/webrtc"
)

// LiveElementID names the output the live video track is attached to.
const LiveElementID = "live_video"

const eventBuffer = 256

var (
	ErrNoPeer           = errors.New("peer connection not created")
	ErrDeviceDisconnect = errors.New("device disconnected from the relay")
	ErrSessionStarted   = errors.New("session already started")
)

// Signaler is the signaling client as seen by the session.
type Signaler interface {
	Connect(ctx context.Context) error
	Send(e signaling.Envelope) error
	IsOpen() bool
	Messages() <-chan signaling.Envelope
	Err() error
	Disconnect() error
}

// Peer is the viewer's peer connection.
type Peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	Send(msg control.Message) error
	Close() error
}

// PeerFactory creates the peer connection with callbacks that post into the session.
type PeerFactory func(h pkgwebrtc.Handlers) (Peer, error)

type FrameRouter interface {
	Route(f control.Frame) error
}

// Transfers is what the session asks for once the side channel opens.
type Transfers interface {
	RequestCatalog() error
	RequestLatest(amount int) error
}

// Observer receives everything the user should see.
type Observer interface {
	PhaseChanged(p Phase)
	Status(text string)
	Notify(err error)
}

// DeviceError is an error reported by the intermediary on behalf of the device,
// such as "vss not ready".
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string { return "device: " + e.Message }

type Dependencies struct {
	Signaler Signaler
	NewPeer  PeerFactory
	Media    media.Renderer
	Observer Observer
	Logger   *slog.Logger
}

type Session struct {
	id       string
	signaler Signaler
	newPeer  PeerFactory
	media    media.Renderer
	observer Observer
	logger   *slog.Logger

	router    FrameRouter
	transfers Transfers

	events  chan Event
	done    chan struct{}
	started bool

	// loop-owned
	phase         Phase
	peer          Peer
	pending       []*webrtc.ICECandidate
	connectCancel context.CancelFunc
}

func New(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		signaler: deps.Signaler,
		newPeer:  deps.NewPeer,
		media:    deps.Media,
		observer: deps.Observer,
		logger:   logger.With("session", id),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		phase:    PhaseIdle,
	}
}

// Bind sets the frame router and transfer manager. Both depend on the session
// as their sender and scheduler, so they are supplied after New and before Run.
func (s *Session) Bind(router FrameRouter, transfers Transfers) {
	s.router = router
	s.transfers = transfers
}

func (s *Session) ID() string { return s.id }

// Post hands an event to the loop. Events posted after Run has returned are dropped.
func (s *Session) Post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
		s.logger.Debug("session stopped, dropping event", "event", fmt.Sprintf("%T", ev))
	}
}

// Do runs fn on the loop.
func (s *Session) Do(fn func()) {
	s.Post(FuncEvent{Fn: fn})
}

// AfterFunc runs f on the loop once d has elapsed unless cancelled first.
func (s *Session) AfterFunc(d time.Duration, f func()) (cancel func()) {
	t := time.AfterFunc(d, func() { s.Do(f) })
	return func() { t.Stop() }
}

// Disconnect asks the loop to close signaling and the peer connection.
func (s *Session) Disconnect() {
	s.Post(DisconnectEvent{})
}

// Send writes a control message on the side channel. Loop only.
func (s *Session) Send(msg control.Message) error {
	if s.peer == nil {
		return fault.Transport(string(msg.Action()), ErrNoPeer)
	}
	return s.peer.Send(msg)
}

// Handlers returns peer connection callbacks that post into the loop.
func (s *Session) Handlers() pkgwebrtc.Handlers {
	return pkgwebrtc.Handlers{
		OnCandidate:       func(c *webrtc.ICECandidate) { s.Post(CandidateEvent{Candidate: c}) },
		OnConnectionState: func(st webrtc.PeerConnectionState) { s.Post(ConnectionStateEvent{State: st}) },
		OnTrack:           func(t *webrtc.TrackRemote) { s.Post(TrackEvent{Track: t}) },
		OnChannelOpen:     func() { s.Post(ChannelOpenEvent{}) },
		OnChannelClose:    func() { s.Post(ChannelCloseEvent{}) },
		OnFrame:           func(f control.Frame) { s.Post(FrameEvent{Frame: f}) },
	}
}

// Phase returns the current phase. Loop only; others watch Observer.PhaseChanged.
func (s *Session) Phase() Phase { return s.phase }

// Run creates the peer connection, connects to the intermediary and then
// handles events until ctx is cancelled or Disconnect is processed.
// The session is never restarted.
func (s *Session) Run(ctx context.Context) error {
	if s.started {
		return ErrSessionStarted
	}
	s.started = true
	defer close(s.done)

	s.logger.Info("session starting")
	peer, err := s.newPeer(s.Handlers())
	if err != nil {
		s.fail(err)
		s.shutdown()
		return err
	}
	s.peer = peer

	connectCtx, cancel := context.WithCancel(ctx)
	s.connectCancel = cancel
	go func() {
		err := s.signaler.Connect(connectCtx)
		s.Post(connectedEvent{err: err})
	}()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev := <-s.events:
			if stop := s.handle(ev); stop {
				s.shutdown()
				return nil
			}
		}
	}
}

func (s *Session) handle(ev Event) (stop bool) {
	switch e := ev.(type) {
	case connectedEvent:
		s.onConnected(e.err)
	case CandidateEvent:
		s.onCandidate(e.Candidate)
	case EnvelopeEvent:
		s.onEnvelope(e.Envelope)
	case SignalingClosedEvent:
		s.onSignalingClosed(e.Err)
	case ConnectionStateEvent:
		s.onConnectionState(e.State)
	case ChannelOpenEvent:
		s.onChannelOpen()
	case ChannelCloseEvent:
		s.logger.Info("side channel closed")
		s.status("side channel closed")
	case FrameEvent:
		s.onFrame(e.Frame)
	case TrackEvent:
		s.onTrack(e.Track)
	case FuncEvent:
		if e.Fn != nil {
			e.Fn()
		}
	case DisconnectEvent:
		s.logger.Info("disconnect requested")
		return true
	default:
		s.logger.Warn("unhandled session event", "event", fmt.Sprintf("%T", ev))
	}
	return false
}

func (s *Session) onConnected(err error) {
	if err != nil {
		s.fail(fault.Transport("connect", err))
		return
	}
	if !s.transition(PhaseConnecting) {
		return
	}
	go s.pump()

	s.flushCandidates()

	offer, err := s.peer.CreateOffer()
	if err != nil {
		s.fail(err)
		return
	}
	s.transition(PhaseOfferCreated)

	env, err := signaling.NewOffer(offer)
	if err != nil {
		s.fail(fault.Negotiation("encode offer", err))
		return
	}
	if err := s.sendEnvelope(env); err != nil {
		s.fail(err)
		return
	}
	s.transition(PhaseAwaitingAnswer)
}

// pump forwards inbound envelopes until the signaling read loop stops.
func (s *Session) pump() {
	for env := range s.signaler.Messages() {
		s.Post(EnvelopeEvent{Envelope: env})
	}
	s.Post(SignalingClosedEvent{Err: s.signaler.Err()})
}

func (s *Session) onCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		s.logger.Debug("candidate gathering complete")
		return
	}
	if s.phase == PhaseIdle || !s.signaler.IsOpen() {
		s.pending = append(s.pending, c)
		return
	}
	s.sendCandidate(c)
}

func (s *Session) flushCandidates() {
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		s.sendCandidate(c)
	}
}

func (s *Session) sendCandidate(c *webrtc.ICECandidate) {
	env, err := signaling.NewCandidate(signaling.FromPion(c))
	if err != nil {
		s.logger.Warn("failed to encode candidate", "error", err)
		return
	}
	if err := s.sendEnvelope(env); err != nil {
		s.logger.Warn("failed to send candidate", "address", c.Address, "error", err)
	}
}

func (s *Session) onEnvelope(env signaling.Envelope) {
	switch env.Step {
	case signaling.StepConnect:
		if env.Error != "" {
			s.logger.Warn("registration refused", "error", env.Error)
			s.notify(&DeviceError{Message: env.Error})
			return
		}
		s.logger.Info("registered with intermediary", "id", env.ID, "connection_id", env.ConnectionID)
	case signaling.StepSendOffer, signaling.StepSendOfferICE:
		s.logger.Debug("intermediary echoed envelope", "step", env.Step)
	case signaling.StepSendAnswer:
		s.onAnswer(env)
	case signaling.StepDisconnect:
		s.logger.Warn("device left the intermediary")
		s.notify(ErrDeviceDisconnect)
	default:
		s.logger.Warn("unknown signaling step", "step", env.Step)
	}
}

func (s *Session) onAnswer(env signaling.Envelope) {
	if s.phase != PhaseAwaitingAnswer {
		s.logger.Warn("ignoring answer", "phase", s.phase.String())
		return
	}
	answer, err := env.DecodeAnswer()
	if err != nil {
		s.logger.Warn("dropping malformed answer", "error", err)
		return
	}
	if err := s.peer.ApplyAnswer(answer); err != nil {
		s.fail(err)
		return
	}
	s.transition(PhaseEstablished)
}

func (s *Session) onSignalingClosed(err error) {
	if s.phase.IsTerminal() {
		return
	}
	if err == nil {
		err = errors.New("signaling connection closed")
	}
	if s.phase < PhaseEstablished {
		s.fail(fault.Transport("signaling", err))
		return
	}
	s.logger.Info("signaling closed after negotiation", "error", err)
	s.status("signaling closed")
}

func (s *Session) onConnectionState(st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateFailed:
		s.fail(fault.Negotiation("ice", errors.New("peer connection failed")))
	case webrtc.PeerConnectionStateDisconnected:
		s.status("peer connection interrupted")
	case webrtc.PeerConnectionStateConnected:
		s.status("peer connected")
	}
}

func (s *Session) onChannelOpen() {
	s.status("side channel open")
	if s.transfers == nil {
		return
	}
	if err := s.transfers.RequestCatalog(); err != nil {
		s.notify(err)
	}
	if err := s.transfers.RequestLatest(0); err != nil {
		s.notify(err)
	}
}

func (s *Session) onFrame(f control.Frame) {
	if s.router == nil {
		return
	}
	err := s.router.Route(f)
	if err == nil {
		return
	}
	if fault.ActionFor(err) == fault.ActionDrop {
		s.logger.Warn("dropping side channel frame", "kind", f.Kind.String(), "error", err)
		return
	}
	s.notify(err)
}

func (s *Session) onTrack(track media.RemoteTrack) {
	if s.media == nil {
		return
	}
	if err := s.media.Attach(track, LiveElementID); err != nil {
		s.logger.Warn("failed to attach track", "track", track.ID(), "error", err)
	}
}

func (s *Session) sendEnvelope(env signaling.Envelope) error {
	if err := s.signaler.Send(env); err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Transport(string(env.Step), err)
		}
		return err
	}
	return nil
}

func (s *Session) fail(err error) {
	s.logger.Error("session failed", "error", err)
	s.transition(PhaseFailed)
	s.notify(err)
}

func (s *Session) transition(next Phase) bool {
	if s.phase == next {
		return true
	}
	if !s.phase.CanTransitionTo(next) {
		s.logger.Warn("invalid phase transition", "from", s.phase.String(), "to", next.String())
		return false
	}
	s.logger.Info("phase changed", "from", s.phase.String(), "to", next.String())
	s.phase = next
	if s.observer != nil {
		s.observer.PhaseChanged(next)
	}
	return true
}

func (s *Session) shutdown() {
	if s.connectCancel != nil {
		s.connectCancel()
	}
	if err := s.signaler.Disconnect(); err != nil {
		s.logger.Warn("failed to close signaling", "error", err)
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			s.logger.Warn("failed to close peer connection", "error", err)
		}
	}
	s.transition(PhaseClosed)
	s.logger.Info("session closed")
}

func (s *Session) status(text string) {
	if s.observer != nil {
		s.observer.Status(text)
	}
}

func (s *Session) notify(err error) {
	if s.observer != nil {
		s.observer.Notify(err)
	}
}
