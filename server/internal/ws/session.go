package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for traffic (data or pong) before
	// treating the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-session outgoing message buffer depth. A
	// session whose buffer fills is treated as disconnected so one stalled
	// client never delays delivery to the rest.
	sendBufSize = 32
)

// session is the server-side handle for one connected client: its transport
// connection, its outbound buffer, and an optional display name taken from
// the ?name= query on connect.
type session struct {
	conn *websocket.Conn
	send chan []byte
	name string

	// limiter bounds inbound edits; nil when rate limiting is disabled.
	limiter *rate.Limiter

	readLimit int64

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, name string, limits Limits) *session {
	readLimit := limits.MaxMessageBytes
	if readLimit <= 0 {
		readLimit = 1 << 20
	}
	s := &session{
		conn:      conn,
		send:      make(chan []byte, sendBufSize),
		name:      name,
		readLimit: readLimit,
	}
	if limits.MessagesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(limits.MessagesPerSecond), limits.Burst)
	}
	return s
}

// enqueue hands data to the write pump without blocking. It reports false
// only when the session is alive but its buffer is full - a stalled client
// the caller should disconnect. Enqueueing to an already-closed session is
// a no-op.
func (s *session) enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once. Safe to call from the read
// loop, the broadcast path, and hub shutdown concurrently.
func (s *session) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
}

// writePump drains the send channel onto the connection and emits periodic
// ping frames. Runs in its own goroutine per session; returns when the send
// channel closes or a write fails.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Session was removed or the hub is shutting down.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
