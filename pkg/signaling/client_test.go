package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/intrusionViewer/pkg/fault"
)

// echoServer accepts one websocket connection, forwards every frame it
// receives to received and writes every frame from outbound to the client.
type echoServer struct {
	*httptest.Server
	received chan []byte
	outbound chan []byte
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	s := &echoServer{
		received: make(chan []byte, 10),
		outbound: make(chan []byte, 10),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for data := range s.outbound {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.received <- data
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestClientConnectSendsRegistration(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(srv.wsURL(), ViewerID)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsOpen())

	env, err := Decode(waitFrame(t, srv.received))
	require.NoError(t, err)
	assert.Equal(t, StepConnect, env.Step)
	assert.Equal(t, ViewerID, env.ID)
}

func TestClientDropsMalformedMessages(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(srv.wsURL(), ViewerID)
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))
	waitFrame(t, srv.received)

	srv.outbound <- []byte("{{not json")
	srv.outbound <- []byte(`{"step":"4_send_answer","answer":{"type":"answer","sdp":"v=0"}}`)

	select {
	case env := <-c.Messages():
		assert.Equal(t, StepSendAnswer, env.Step)
	case <-time.After(2 * time.Second):
		t.Fatal("valid message after a malformed one was not delivered")
	}
	assert.True(t, c.IsOpen(), "malformed input must not close the connection")
}

func TestClientSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", ViewerID)

	err := c.Send(NewConnect(ViewerID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.True(t, fault.Is(err, fault.KindTransport))
}

func TestClientDisconnectIsIdempotent(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(srv.wsURL(), ViewerID)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Disconnect())
	assert.NotPanics(t, func() { _ = c.Disconnect() })
	assert.False(t, c.IsOpen())

	err := c.Send(NewConnect(ViewerID))
	assert.ErrorIs(t, err, ErrNotOpen)

	select {
	case _, ok := <-c.Messages():
		assert.False(t, ok, "messages channel closes after disconnect")
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel was not closed")
	}
}

func TestClientConnectFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/unreachable", ViewerID)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindTransport))
	assert.False(t, c.IsOpen())
}
