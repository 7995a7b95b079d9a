package webrtc

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
)

func TestViewerConnectionHandShake(t *testing.T) {
	api := NewWebRTCAPI(WithoutMDNS(), WithLoopbackCandidates())

	candidates := make(chan webrtc.ICECandidateInit, 64)
	frames := make(chan control.Frame, 4)
	opened := make(chan struct{})
	var openOnce sync.Once

	viewer, err := api.NewViewerConnection(Config{}, Handlers{
		OnCandidate: func(c *webrtc.ICECandidate) {
			if c != nil {
				candidates <- c.ToJSON()
			}
		},
		OnChannelOpen: func() { openOnce.Do(func() { close(opened) }) },
		OnFrame:       func(f control.Frame) { frames <- f },
	}, nil)
	require.NoError(t, err)
	defer viewer.Close()

	// The device side answers and talks back over the viewer's channel.
	device, err := api.NewPeerConnection(Config{})
	require.NoError(t, err)
	defer device.Close()

	deviceMsgs := make(chan string, 4)
	device.OnDataChannel(func(dc *webrtc.DataChannel) {
		assert.Equal(t, DataChannelLabel, dc.Label())
		dc.OnOpen(func() {
			assert.NoError(t, dc.SendText(`{"action":"send_yolox_objects","yolox_objects":["person"]}`))
			assert.NoError(t, dc.Send([]byte{1, 2, 3}))
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			deviceMsgs <- string(msg.Data)
		})
	})

	offer, err := viewer.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.Contains(t, offer.SDP, "m=video")
	assert.Contains(t, offer.SDP, "a=recvonly")

	require.NoError(t, device.SetRemoteDescription(offer))
	answer, err := device.CreateAnswer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(device)
	require.NoError(t, device.SetLocalDescription(answer))
	<-gathered
	require.NoError(t, viewer.ApplyAnswer(*device.LocalDescription()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case c := <-candidates:
				_ = device.AddICECandidate(c)
			case <-done:
				return
			}
		}
	}()

	select {
	case <-opened:
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for the data channel")
	}

	require.NoError(t, viewer.Send(control.RequestCatalog{}))
	select {
	case msg := <-deviceMsgs:
		assert.JSONEq(t, `{"action":"request_yolox_objects"}`, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("device never received the request")
	}

	for _, want := range []control.FrameKind{control.FrameText, control.FrameBinary} {
		select {
		case f := <-frames:
			assert.Equal(t, want, f.Kind)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s frame", want)
		}
	}
}

func TestSendBeforeOpen(t *testing.T) {
	api := NewWebRTCAPI(WithoutMDNS())
	viewer, err := api.NewViewerConnection(Config{}, Handlers{}, nil)
	require.NoError(t, err)
	defer viewer.Close()

	err = viewer.Send(control.RequestLatestVideos{Amount: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelNotOpen)
	assert.True(t, fault.Is(err, fault.KindTransport))
}

func TestApplyAnswerWithoutOfferFails(t *testing.T) {
	api := NewWebRTCAPI(WithoutMDNS())
	viewer, err := api.NewViewerConnection(Config{}, Handlers{}, nil)
	require.NoError(t, err)
	defer viewer.Close()

	err = viewer.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindNegotiation))
}

func TestFrameOf(t *testing.T) {
	text := FrameOf(webrtc.DataChannelMessage{IsString: true, Data: []byte(`{"action":"error"}`)})
	assert.Equal(t, control.FrameText, text.Kind)

	bin := FrameOf(webrtc.DataChannelMessage{Data: []byte{0xff}})
	assert.Equal(t, control.FrameBinary, bin.Kind)
	assert.Equal(t, []byte{0xff}, bin.Data)
}
