package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/canvashub/canvashub/pkg/canvas"
	"github.com/canvashub/canvashub/pkg/protocol"
)

// ErrConnectFailed wraps any failure to establish the WebSocket connection
// (server unreachable, handshake rejected). Check with errors.Is.
var ErrConnectFailed = errors.New("client: connection failed")

// ErrNotConnected is returned by sends after the connection has closed.
var ErrNotConnected = errors.New("client: not connected")

// Handler receives every decoded message from the server. It is called from
// the client's listen goroutine; implementations that touch UI state must
// hand off to their own loop.
type Handler func(*protocol.Message)

// Option configures a Dial call.
type Option func(*options)

type options struct {
	name string
}

// WithName sets the display name announced to the server via the ?name=
// query parameter.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Client is the network layer for a whiteboard client: it holds one
// WebSocket connection to the sync server, pushes local edits up, and feeds
// server broadcasts to the Handler.
type Client struct {
	conn    *websocket.Conn
	handler Handler

	mu        sync.Mutex
	connected bool
}

// Dial connects to the sync server at rawURL (ws:// or wss://) and starts
// the listen loop. The first message delivered to h is the server's init
// snapshot. A dial failure is reported as ErrConnectFailed and has no
// effect beyond this client.
func Dial(ctx context.Context, rawURL string, h Handler, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	target := rawURL
	if o.name != "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse url %q: %w", ErrConnectFailed, rawURL, err)
		}
		q := u.Query()
		q.Set("name", o.name)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %q: %w", ErrConnectFailed, rawURL, err)
	}

	c := &Client{conn: conn, handler: h, connected: true}
	go c.listen()
	return c, nil
}

// Connected reports whether the connection is still up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendDraw sends a whole-state replacement: the complete drawings sequence
// and the background color.
func (c *Client) SendDraw(drawings []canvas.Item, background string) error {
	data, err := protocol.EncodeDraw(drawings, background)
	if err != nil {
		return err
	}
	return c.send(data)
}

// SendClear asks the server to reset the canvas. The confirmation comes
// back through the Handler as a clear broadcast.
func (c *Client) SendClear() error {
	data, err := protocol.EncodeClearRequest()
	if err != nil {
		return err
	}
	return c.send(data)
}

// SendModeChange announces the local tool mode.
func (c *Client) SendModeChange(mode string) error {
	data, err := protocol.EncodeModeChange(mode)
	if err != nil {
		return err
	}
	return c.send(data)
}

// Close shuts the connection down. Safe to call more than once and after
// the connection has already dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.conn.Close()
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.connected = false
		return fmt.Errorf("client: send: %w", err)
	}
	return nil
}

// listen feeds server frames to the handler until the connection drops.
// Frames that fail to decode are skipped; the server does the same with
// ours.
func (c *Client) listen() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			slog.Debug("client: skipping malformed frame", "err", err)
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}
