package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canvashub/canvashub/pkg/canvas"
	"github.com/canvashub/canvashub/pkg/protocol"
	"github.com/canvashub/canvashub/server/internal/metrics"
	wsHub "github.com/canvashub/canvashub/server/internal/ws"
)

var openLimits = wsHub.Limits{MaxMessageBytes: 1 << 20}

// --- helpers ----------------------------------------------------------------

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T, limits wsHub.Limits) (wsURL string, hub *wsHub.Hub, store *canvas.Store, cancel func()) {
	t.Helper()

	store = canvas.NewStore()
	hub = wsHub.New(store, metrics.New(prometheus.NewRegistry()), limits)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, store, cancelFn
}

// dial connects a WebSocket client and consumes the init frame the hub
// sends on connect, returning both.
func dial(t *testing.T, wsURL string) (*websocket.Conn, *protocol.Message) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, readMsg(t, conn)
}

// readMsg reads and decodes one frame with a short deadline.
func readMsg(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	msg, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msg
}

// expectSilence asserts that no frame arrives on conn within wait.
func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait))
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}

func sendDraw(t *testing.T, conn *websocket.Conn, drawings []canvas.Item, background string) {
	t.Helper()
	raw, err := protocol.EncodeDraw(drawings, background)
	if err != nil {
		t.Fatalf("EncodeDraw: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func itemA() canvas.Item {
	return canvas.Item{
		Kind:   canvas.KindRectangle,
		Coords: []float64{10, 10, 50, 50},
		Tags:   []string{"movable", "shape"},
		Config: map[string]any{"fill": "#ff0000", "outline": "#000000"},
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesInitSnapshot(t *testing.T) {
	wsURL, _, _, _ := startHub(t, openLimits)

	_, init := dial(t, wsURL)
	if init.Type != protocol.TypeInit {
		t.Fatalf("first frame: got %q, want init", init.Type)
	}
	if len(init.State.Drawings) != 0 {
		t.Errorf("drawings: got %d items, want 0", len(init.State.Drawings))
	}
	if init.State.Background != canvas.DefaultBackground {
		t.Errorf("background: got %q, want %q", init.State.Background, canvas.DefaultBackground)
	}
	if init.State.CurrentMode != canvas.DefaultMode {
		t.Errorf("current_mode: got %q, want %q", init.State.CurrentMode, canvas.DefaultMode)
	}
}

func TestHub_NewClientSeesPriorState(t *testing.T) {
	wsURL, _, store, _ := startHub(t, openLimits)

	connX, _ := dial(t, wsURL)
	sendDraw(t, connX, []canvas.Item{itemA()}, "#00ff00")
	waitFor(t, "draw applied", func() bool {
		return store.Snapshot().Background == "#00ff00"
	})

	_, init := dial(t, wsURL)
	if init.State.Background != "#00ff00" {
		t.Errorf("background: got %q, want #00ff00", init.State.Background)
	}
	if len(init.State.Drawings) != 1 {
		t.Fatalf("drawings: got %d items, want 1", len(init.State.Drawings))
	}

	// Field-by-field round-trip fidelity for the stored item.
	got := init.State.Drawings[0]
	want := itemA()
	if got.Kind != want.Kind {
		t.Errorf("type: got %q, want %q", got.Kind, want.Kind)
	}
	if !reflect.DeepEqual(got.Coords, want.Coords) {
		t.Errorf("coords: got %v, want %v", got.Coords, want.Coords)
	}
	if !reflect.DeepEqual(got.Tags, want.Tags) {
		t.Errorf("tags: got %v, want %v", got.Tags, want.Tags)
	}
	if !reflect.DeepEqual(got.Config, want.Config) {
		t.Errorf("config: got %v, want %v", got.Config, want.Config)
	}
}

func TestHub_DrawBroadcastExcludesSender(t *testing.T) {
	wsURL, _, _, _ := startHub(t, openLimits)

	connS, _ := dial(t, wsURL)
	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	sendDraw(t, connS, []canvas.Item{itemA()}, "#112233")

	for name, conn := range map[string]*websocket.Conn{"A": connA, "B": connB} {
		msg := readMsg(t, conn)
		if msg.Type != protocol.TypeUpdate {
			t.Errorf("%s: got %q, want update", name, msg.Type)
		}
		if msg.State.Background != "#112233" {
			t.Errorf("%s: background: got %q, want #112233", name, msg.State.Background)
		}
	}

	// The sender must not receive its own echo.
	expectSilence(t, connS, 200*time.Millisecond)
}

func TestHub_ClearBroadcastIncludesSender(t *testing.T) {
	wsURL, _, store, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	sendDraw(t, connA, []canvas.Item{itemA()}, "black")
	readMsg(t, connB) // consume the update

	raw, err := protocol.EncodeClearRequest()
	if err != nil {
		t.Fatalf("EncodeClearRequest: %v", err)
	}
	if err := connA.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"A (sender)": connA, "B": connB} {
		msg := readMsg(t, conn)
		if msg.Type != protocol.TypeClear {
			t.Errorf("%s: got %q, want clear", name, msg.Type)
		}
		if len(msg.State.Drawings) != 0 || msg.State.Background != canvas.DefaultBackground {
			t.Errorf("%s: got %+v, want reset state", name, msg.State)
		}
	}

	st := store.Snapshot()
	if len(st.Drawings) != 0 || st.Background != canvas.DefaultBackground || st.CurrentMode != canvas.DefaultMode {
		t.Errorf("store after clear: got %+v, want reset state", st)
	}
}

func TestHub_ModeChangeBroadcastToAll(t *testing.T) {
	wsURL, _, store, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	raw, err := protocol.EncodeModeChange("brush")
	if err != nil {
		t.Fatalf("EncodeModeChange: %v", err)
	}
	if err := connA.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"A (sender)": connA, "B": connB} {
		msg := readMsg(t, conn)
		if msg.Type != protocol.TypeModeUpdate {
			t.Errorf("%s: got %q, want mode_update", name, msg.Type)
		}
		if msg.Mode.Mode != "brush" {
			t.Errorf("%s: mode: got %q, want brush", name, msg.Mode.Mode)
		}
	}

	if mode := store.Snapshot().CurrentMode; mode != "brush" {
		t.Errorf("store current_mode: got %q, want brush", mode)
	}
}

func TestHub_LastWriterWins(t *testing.T) {
	wsURL, _, store, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	sendDraw(t, connA, nil, "red")
	sendDraw(t, connA, nil, "blue")

	first := readMsg(t, connB)
	second := readMsg(t, connB)
	if first.State.Background != "red" || second.State.Background != "blue" {
		t.Errorf("updates: got %q then %q, want red then blue",
			first.State.Background, second.State.Background)
	}

	if bg := store.Snapshot().Background; bg != "blue" {
		t.Errorf("store background: got %q, want blue", bg)
	}
}

func TestHub_MalformedFrameLeavesConnectionOpen(t *testing.T) {
	wsURL, _, _, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	// Garbage, then a draw missing its background, then an unknown type.
	for _, bad := range []string{
		`not json at all`,
		`{"type": "draw", "data": {"drawings": []}}`,
		`{"type": "resize", "data": {"w": 800}}`,
	} {
		if err := connA.WriteMessage(websocket.TextMessage, []byte(bad)); err != nil {
			t.Fatalf("WriteMessage(%q): %v", bad, err)
		}
	}

	// The connection must survive and the next valid edit must flow.
	sendDraw(t, connA, nil, "green")
	msg := readMsg(t, connB)
	if msg.Type != protocol.TypeUpdate || msg.State.Background != "green" {
		t.Errorf("after malformed frames: got %q/%q, want update/green",
			msg.Type, msg.State.Background)
	}
}

func TestHub_ServerEmittedTypeFromClientIsIgnored(t *testing.T) {
	wsURL, _, store, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)

	// A client has no business sending update; the router must not apply it.
	raw := `{"type": "update", "data": {"drawings": [], "background": "purple"}}`
	if err := connA.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	expectSilence(t, connA, 200*time.Millisecond)
	if bg := store.Snapshot().Background; bg != canvas.DefaultBackground {
		t.Errorf("store background: got %q, want untouched %q", bg, canvas.DefaultBackground)
	}
}

func TestHub_DisconnectIsolation(t *testing.T) {
	wsURL, hub, _, _ := startHub(t, openLimits)

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)
	connC, _ := dial(t, wsURL)

	// Kill A's transport without a close handshake.
	connA.UnderlyingConn().Close()
	waitFor(t, "A removed from session set", func() bool { return hub.Count() == 2 })

	sendDraw(t, connC, []canvas.Item{itemA()}, "#abcdef")

	msg := readMsg(t, connB)
	if msg.Type != protocol.TypeUpdate || msg.State.Background != "#abcdef" {
		t.Errorf("B after A died: got %q/%q, want update/#abcdef", msg.Type, msg.State.Background)
	}
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _, _ := startHub(t, openLimits)

	conn, _ := dial(t, wsURL)
	waitFor(t, "session registered", func() bool { return hub.Count() == 1 })

	conn.Close()
	waitFor(t, "session removed", func() bool { return hub.Count() == 0 })
}

func TestHub_RateLimitDropsExcessEdits(t *testing.T) {
	// One token, refilled slower than the test runs: the second draw must
	// be dropped before it reaches the router.
	wsURL, _, store, _ := startHub(t, wsHub.Limits{
		MessagesPerSecond: 0.001,
		Burst:             1,
		MaxMessageBytes:   1 << 20,
	})

	connA, _ := dial(t, wsURL)
	connB, _ := dial(t, wsURL)

	sendDraw(t, connA, nil, "first")
	sendDraw(t, connA, nil, "second")

	msg := readMsg(t, connB)
	if msg.State.Background != "first" {
		t.Errorf("update: got %q, want first", msg.State.Background)
	}
	expectSilence(t, connB, 200*time.Millisecond)

	if bg := store.Snapshot().Background; bg != "first" {
		t.Errorf("store background: got %q, want first", bg)
	}
}

func TestHub_SetLimitsAppliesToNewSessions(t *testing.T) {
	wsURL, hub, store, _ := startHub(t, wsHub.Limits{
		MessagesPerSecond: 0.001,
		Burst:             1,
		MaxMessageBytes:   1 << 20,
	})

	hub.SetLimits(wsHub.Limits{MaxMessageBytes: 1 << 20}) // rate limiting off

	conn, _ := dial(t, wsURL)
	sendDraw(t, conn, nil, "one")
	sendDraw(t, conn, nil, "two")

	waitFor(t, "both draws applied", func() bool {
		return store.Snapshot().Background == "two"
	})
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, _, cancel := startHub(t, openLimits)

	conn, _ := dial(t, wsURL)
	waitFor(t, "session registered", func() bool { return hub.Count() == 1 })

	cancel()
	waitFor(t, "sessions closed", func() bool { return hub.Count() == 0 })

	// The client side observes the close.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read to fail after hub shutdown")
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	wsURL, _, _, _ := startHub(t, openLimits)
	url := "http" + strings.TrimPrefix(wsURL, "ws")

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
