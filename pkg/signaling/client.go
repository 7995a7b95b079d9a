// Package signaling talks to the intermediary that relays negotiation
// messages between the viewer and the recording device.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rescp17/intrusionViewer/pkg/fault"
)

var (
	// ErrNotOpen is returned by Send when the connection is not live.
	ErrNotOpen = errors.New("signaling connection is not open")
	// ErrAlreadyConnected is returned by a second Connect call.
	ErrAlreadyConnected = errors.New("signaling client already connected")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	messageBuffer           = 100
)

// Client is a websocket client for the signaling intermediary.
// Reads happen on a single goroutine; writes are serialized by connMu.
type Client struct {
	url    string
	id     string
	dialer *websocket.Dialer
	logger *slog.Logger

	conn    *websocket.Conn
	connMu  sync.Mutex
	msgChan chan Envelope
	done    chan struct{}

	stateMu   sync.Mutex
	open      bool
	closed    bool
	readErr   error
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a client that registers itself under id once connected.
func NewClient(url, id string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		id:      id,
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger:  slog.Default(),
		msgChan: make(chan Envelope, messageBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the intermediary and registers with a 1_connect envelope.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.conn != nil || c.closed {
		c.stateMu.Unlock()
		return ErrAlreadyConnected
	}
	c.stateMu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fault.Transport("connect", fmt.Errorf("failed to dial %s: %w", c.url, err))
	}

	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		conn.Close()
		return fault.Transport("connect", ErrNotOpen)
	}
	c.conn = conn
	c.open = true
	c.stateMu.Unlock()

	go c.readLoop()

	c.logger.Info("Signaling connection established", "url", c.url, "id", c.id)
	return c.Send(NewConnect(c.id))
}

func (c *Client) readLoop() {
	defer func() {
		c.stateMu.Lock()
		c.open = false
		c.stateMu.Unlock()
		close(c.msgChan)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.stateMu.Lock()
			if !c.closed {
				c.readErr = err
				c.logger.Warn("Signaling read failed", "error", err)
			}
			c.stateMu.Unlock()
			return
		}
		env, err := Decode(data)
		if err != nil {
			c.logger.Warn("Dropping malformed signaling message", "error", err, "size", len(data))
			continue
		}
		select {
		case c.msgChan <- env:
		case <-c.done:
			return
		}
	}
}

// Send writes one envelope. It fails with a transport error if the
// connection is not open.
func (c *Client) Send(e Envelope) error {
	if !c.IsOpen() {
		return fault.Transport(string(e.Step), ErrNotOpen)
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.WriteJSON(e); err != nil {
		return fault.Transport(string(e.Step), fmt.Errorf("failed to write envelope: %w", err))
	}
	c.logger.Debug("Sent signaling envelope", "step", e.Step)
	return nil
}

// IsOpen reports whether the connection is live.
func (c *Client) IsOpen() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.open && !c.closed
}

// Messages returns the decoded inbound envelopes. The channel is closed
// when the connection ends.
func (c *Client) Messages() <-chan Envelope {
	return c.msgChan
}

// Err returns the read error that ended the connection, if any.
func (c *Client) Err() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.readErr
}

// Disconnect closes the connection. It is safe to call more than once.
func (c *Client) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		c.closed = true
		conn := c.conn
		c.stateMu.Unlock()
		close(c.done)

		if conn == nil {
			close(c.msgChan)
			return
		}
		c.connMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.connMu.Unlock()
		err = conn.Close()
		c.logger.Info("Signaling connection closed")
	})
	return err
}
