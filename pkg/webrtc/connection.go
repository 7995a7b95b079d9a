package webrtc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
)

const (
	MTU uint = 1400
	// DataChannelLabel is the label the device expects on the side channel.
	DataChannelLabel = "data_channel"
)

var ErrChannelNotOpen = errors.New("data channel is not open")

type WebRTCAPI struct {
	api *webrtc.API
}

type apiOptions struct {
	mdns     bool
	loopback bool
}

// APIOption tunes the SettingEngine behind a WebRTCAPI.
type APIOption func(*apiOptions)

// WithoutMDNS gathers plain host candidates instead of .local names.
func WithoutMDNS() APIOption {
	return func(o *apiOptions) { o.mdns = false }
}

// WithLoopbackCandidates also gathers 127.0.0.1, which lets two peers in one
// process find each other without a network.
func WithLoopbackCandidates() APIOption {
	return func(o *apiOptions) { o.loopback = true }
}

// Config holds the configuration for creating a new connection.
type Config struct {
	ICEServers []webrtc.ICEServer
}

func NewWebRTCAPI(opts ...APIOption) *WebRTCAPI {
	o := apiOptions{mdns: true}
	for _, opt := range opts {
		opt(&o)
	}

	settings := webrtc.SettingEngine{}
	if o.mdns {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	} else {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}
	settings.SetIncludeLoopbackCandidate(o.loopback)
	settings.SetReceiveMTU(MTU)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	return &WebRTCAPI{
		api: api,
	}
}

// NewPeerConnection exposes the underlying API for the remote side in tests
// and for tools that act as the device.
func (a *WebRTCAPI) NewPeerConnection(config Config) (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
}

// Handlers receive the peer connection's callbacks. They run on pion's
// goroutines, so implementations should only hand the value off.
// Any field may be nil.
type Handlers struct {
	OnCandidate       func(*webrtc.ICECandidate)
	OnConnectionState func(webrtc.PeerConnectionState)
	OnTrack           func(*webrtc.TrackRemote)
	OnChannelOpen     func()
	OnChannelClose    func()
	OnFrame           func(control.Frame)
}

// ViewerConn is the viewer's single peer connection: one receive-only video
// transceiver plus the ordered side channel it creates itself.
type ViewerConn struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	logger *slog.Logger
}

func (a *WebRTCAPI) NewViewerConnection(config Config, h Handlers, logger *slog.Logger) (*ViewerConn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := a.NewPeerConnection(config)
	if err != nil {
		return nil, fault.Negotiation("new peer connection", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		closePeer(pc, logger)
		return nil, fault.Negotiation("add video transceiver", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if h.OnCandidate != nil {
			h.OnCandidate(c)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logger.Info("peer connection state changed", "state", s.String())
		if h.OnConnectionState != nil {
			h.OnConnectionState(s)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logger.Info("remote track", "id", track.ID(), "stream", track.StreamID(), "codec", track.Codec().MimeType)
		if h.OnTrack != nil {
			h.OnTrack(track)
		}
	})

	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		closePeer(pc, logger)
		return nil, fault.Negotiation("create data channel", err)
	}
	dc.OnOpen(func() {
		logger.Info("data channel open", "label", dc.Label())
		if h.OnChannelOpen != nil {
			h.OnChannelOpen()
		}
	})
	dc.OnClose(func() {
		logger.Info("data channel closed", "label", dc.Label())
		if h.OnChannelClose != nil {
			h.OnChannelClose()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if h.OnFrame != nil {
			h.OnFrame(FrameOf(msg))
		}
	})

	return &ViewerConn{pc: pc, dc: dc, logger: logger}, nil
}

// FrameOf classifies a data channel message at the transport boundary.
func FrameOf(msg webrtc.DataChannelMessage) control.Frame {
	if msg.IsString {
		return control.TextFrame(msg.Data)
	}
	return control.BinaryFrame(msg.Data)
}

// CreateOffer creates the offer and installs it as the local description.
func (c *ViewerConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fault.Negotiation("create offer", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fault.Negotiation("set local description", err)
	}
	return offer, nil
}

// ApplyAnswer installs the device's answer as the remote description.
func (c *ViewerConn) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fault.Negotiation("set remote description", err)
	}
	return nil
}

// Send writes one control message as a text frame.
func (c *ViewerConn) Send(msg control.Message) error {
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fault.Transport(string(msg.Action()), ErrChannelNotOpen)
	}
	data, err := control.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Action(), err)
	}
	if err := c.dc.SendText(string(data)); err != nil {
		return fault.Transport(string(msg.Action()), err)
	}
	return nil
}

// Close gracefully shuts down the WebRTC connection.
func (c *ViewerConn) Close() error {
	if c.pc == nil {
		return nil
	}
	c.logger.Info("closing webrtc connection")
	return c.pc.Close()
}

func closePeer(pc *webrtc.PeerConnection, logger *slog.Logger) {
	if err := pc.Close(); err != nil {
		logger.Warn("failed to close peer connection", "error", err)
	}
}
