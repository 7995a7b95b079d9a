// Package relay is a LAN signaling intermediary that speaks the same
// step-based envelope protocol as the hosted one. One device (smart_vss) and
// one viewer (web_interface) register with 1_connect; offers and candidates
// go to the device, answers go to the viewer, and every routed envelope is
// echoed back to its sender.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rescp17/intrusionViewer/pkg/signaling"
)

const (
	NotReadyMessage = "vss not ready"
	unauthorised    = "unauthorised connection"

	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

type client struct {
	conn   *websocket.Conn
	connID string
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue reports false when the message was dropped.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.Mutex
	device *client
	viewer *client
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler serves the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	return mux
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	s.logger.Info("Relay listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Relay shutdown error", "error", err)
		}
		s.closeAll()
		return nil
	}
}

// Registered reports which roles currently hold a connection.
func (s *Server) Registered() (device, viewer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device != nil, s.viewer != nil
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := &client{
		conn:   conn,
		connID: uuid.NewString(),
		send:   make(chan []byte, sendBuffer),
	}
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.remove(c)
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket read error", "conn", c.connID, "error", err)
			}
			return
		}
		env, err := signaling.Decode(data)
		if err != nil {
			s.logger.Warn("Invalid envelope", "conn", c.connID, "error", err)
			continue
		}
		if stop := s.handle(c, env); stop {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			s.logger.Warn("WebSocket write error", "conn", c.connID, "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (s *Server) handle(c *client, env signaling.Envelope) (stop bool) {
	switch env.Step {
	case signaling.StepConnect:
		return s.register(c, env.ID)
	case signaling.StepSendOffer:
		s.toDevice(c, signaling.Envelope{Step: env.Step, Offer: env.Offer})
	case signaling.StepSendOfferICE:
		s.toDevice(c, signaling.Envelope{Step: env.Step, ICECandidate: env.ICECandidate})
	case signaling.StepSendAnswer:
		s.toViewer(c, signaling.Envelope{Step: env.Step, Answer: env.Answer})
	default:
		s.logger.Warn("Unknown step", "conn", c.connID, "step", env.Step)
	}
	return false
}

func (s *Server) register(c *client, id string) (stop bool) {
	reply := signaling.Envelope{Step: signaling.StepConnect, ID: id, ConnectionID: c.connID}

	switch id {
	case signaling.DeviceID:
		s.mu.Lock()
		old := s.device
		s.device = c
		s.mu.Unlock()
		if old != nil && old != c {
			s.logger.Info("Device reconnected, dropping previous connection", "old", old.connID)
			old.close()
		}
		s.logger.Info("Device registered", "conn", c.connID)
		s.deliver(c, reply)
	case signaling.ViewerID:
		s.mu.Lock()
		old := s.viewer
		s.viewer = c
		device := s.device
		s.mu.Unlock()
		if old != nil && old != c {
			old.close()
		}
		s.logger.Info("Viewer registered", "conn", c.connID)
		if device == nil {
			reply.Error = NotReadyMessage
		} else {
			s.deliver(device, reply)
		}
		s.deliver(c, reply)
	default:
		s.logger.Warn("Rejecting unknown identity", "conn", c.connID, "id", id)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, unauthorised), time.Now().Add(time.Second))
		return true
	}
	return false
}

func (s *Server) toDevice(from *client, env signaling.Envelope) {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == nil {
		env.Error = NotReadyMessage
		s.deliver(from, env)
		return
	}
	s.deliver(device, env)
	if device != from {
		s.deliver(from, env)
	}
}

func (s *Server) toViewer(from *client, env signaling.Envelope) {
	s.mu.Lock()
	viewer := s.viewer
	s.mu.Unlock()
	if viewer == nil {
		s.logger.Warn("Answer without a viewer", "conn", from.connID)
		return
	}
	s.deliver(viewer, env)
	if viewer != from {
		s.deliver(from, env)
	}
}

func (s *Server) deliver(to *client, env signaling.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Failed to encode envelope", "step", env.Step, "error", err)
		return
	}
	if !to.enqueue(data) {
		s.logger.Warn("Dropping envelope", "conn", to.connID, "step", env.Step)
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	var notify *client
	switch {
	case s.device == c:
		s.device = nil
	case s.viewer == c:
		s.viewer = nil
		notify = s.device
	}
	s.mu.Unlock()

	if notify != nil {
		s.logger.Info("Viewer left, notifying device", "conn", c.connID)
		s.deliver(notify, signaling.Envelope{Step: signaling.StepDisconnect})
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	clients := []*client{s.device, s.viewer}
	s.device, s.viewer = nil, nil
	s.mu.Unlock()
	for _, c := range clients {
		if c != nil {
			c.close()
		}
	}
}

// Addr formats a listen address for logs and announcements.
func Addr(ln net.Listener) (host string, port int, err error) {
	tcp, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return "", 0, fmt.Errorf("unexpected listener address %T", ln.Addr())
	}
	return tcp.IP.String(), tcp.Port, nil
}
