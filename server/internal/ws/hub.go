package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/canvashub/canvashub/pkg/canvas"
	"github.com/canvashub/canvashub/pkg/protocol"
	"github.com/canvashub/canvashub/server/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks are left to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Limits bounds what a single session may send. Zero MessagesPerSecond
// disables rate limiting.
type Limits struct {
	MessagesPerSecond float64
	Burst             int
	MaxMessageBytes   int64
}

// Hub owns the session set and routes every inbound edit: it applies the
// edit to the canvas store and fans the resulting state out to the other
// sessions. One Hub serves one canvas.
type Hub struct {
	store   *canvas.Store
	metrics *metrics.Metrics

	limitMu sync.RWMutex
	limits  Limits

	// applyMu serializes mutate-store + encode + fan-out so every broadcast
	// carries the state it caused. Cross-connection arrival order is still
	// unspecified; see doc.go.
	applyMu sync.Mutex

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// New creates a Hub that applies edits to st and reports through m.
func New(st *canvas.Store, m *metrics.Metrics, limits Limits) *Hub {
	return &Hub{
		store:    st,
		metrics:  m,
		limits:   limits,
		sessions: make(map[*session]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// SetLimits replaces the traffic limits applied to sessions that connect
// from now on. Existing sessions keep the limits they connected with.
func (h *Hub) SetLimits(l Limits) {
	h.limitMu.Lock()
	h.limits = l
	h.limitMu.Unlock()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the
// session: the current canvas snapshot is sent immediately as an init
// message, then inbound edits are routed until the connection closes.
// An optional display name is read from the ?name= query.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	s := newSession(conn, r.URL.Query().Get("name"), h.currentLimits())
	h.register(s)
	defer h.unregister(s)

	slog.Info("ws: client connected",
		"name", s.name, "remote", conn.RemoteAddr().String(), "sessions", h.Count())

	// The new session gets the full snapshot before anything else.
	if data, err := protocol.EncodeInit(h.store.Snapshot()); err == nil {
		s.enqueue(data)
	} else {
		slog.Error("ws: encode init", "err", err)
	}

	go s.writePump()
	h.readPump(s) // blocks until the connection closes

	slog.Info("ws: client disconnected", "name", s.name, "remote", conn.RemoteAddr().String())
}

// Count returns the number of currently connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) currentLimits() Limits {
	h.limitMu.RLock()
	defer h.limitMu.RUnlock()
	return h.limits
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.ActiveSessions.Inc()
}

// unregister removes s from the session set and closes its send channel.
// Idempotent: both a failed broadcast and the read-loop exit may call it
// for the same session.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
	}
	h.mu.Unlock()
	if ok {
		s.close()
		h.metrics.ActiveSessions.Dec()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
		delete(h.sessions, s)
	}
	h.mu.Unlock()
	for _, s := range targets {
		s.close()
		h.metrics.ActiveSessions.Dec()
	}
}

// readPump decodes and routes inbound frames until the connection closes.
// Malformed frames are dropped and the connection stays open; the sender is
// never notified.
func (h *Hub) readPump(s *session) {
	defer s.conn.Close()
	s.conn.SetReadLimit(s.readLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				slog.Debug("ws: read error", "name", s.name, "err", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if s.limiter != nil && !s.limiter.Allow() {
			h.metrics.RateLimited.Inc()
			slog.Debug("ws: rate limit exceeded, dropping message", "name", s.name)
			continue
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			h.metrics.MessagesTotal.WithLabelValues("malformed").Inc()
			slog.Debug("ws: dropping malformed message", "name", s.name, "err", err)
			continue
		}

		h.handle(s, msg)
	}
}

// handle applies one decoded message from s. The store mutation and the
// resulting fan-out run under applyMu as a single critical section.
func (h *Hub) handle(s *session, msg *protocol.Message) {
	h.metrics.MessagesTotal.WithLabelValues(string(msg.Type)).Inc()

	switch msg.Type {
	case protocol.TypeDraw:
		h.applyMu.Lock()
		st := h.store.Replace(msg.Draw.Drawings, msg.Draw.Background)
		data, err := protocol.EncodeUpdate(st)
		if err == nil {
			// The sender already has this state locally.
			h.broadcast(data, s)
		} else {
			slog.Error("ws: encode update", "err", err)
		}
		h.applyMu.Unlock()

	case protocol.TypeClear:
		h.applyMu.Lock()
		st := h.store.Clear()
		data, err := protocol.EncodeClear(st)
		if err == nil {
			// Everyone, sender included, gets the reset confirmation.
			h.broadcast(data, nil)
		} else {
			slog.Error("ws: encode clear", "err", err)
		}
		h.applyMu.Unlock()

	case protocol.TypeModeChange:
		h.applyMu.Lock()
		h.store.SetMode(msg.Mode.Mode)
		data, err := protocol.EncodeModeUpdate(msg.Mode.Mode)
		if err == nil {
			h.broadcast(data, nil)
		} else {
			slog.Error("ws: encode mode_update", "err", err)
		}
		h.applyMu.Unlock()

	default:
		// init/update/mode_update are server-emitted; a client sending one
		// is ignored without an error back.
		slog.Debug("ws: ignoring message", "type", string(msg.Type), "name", s.name)
	}
}

// broadcast enqueues data to every session except exclude. A recipient
// whose buffer is full is removed; the remaining deliveries proceed.
func (h *Hub) broadcast(data []byte, exclude *session) {
	h.metrics.BroadcastsTotal.Inc()

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(data) {
			h.metrics.SendFailures.Inc()
			slog.Warn("ws: send buffer full, removing session", "name", s.name)
			h.unregister(s)
		}
	}
}
