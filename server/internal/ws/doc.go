// Package ws implements the synchronization core of canvashub-server: the
// WebSocket listener, the per-client session lifecycle, and the broadcast
// router.
//
// One Hub owns one canvas. On connect a session immediately receives an
// init frame with the full current state; after that the router applies each
// inbound edit and rebroadcasts:
//
//	draw        → replace state, send update to every other session
//	clear       → reset state, send clear to every session (sender included)
//	mode_change → record mode, send mode_update to every session
//
// Messages from one connection are processed in arrival order. There is no
// global ordering across connections and no sequence numbers: when two
// clients edit near-simultaneously, the last message processed wins and the
// protocol guarantees only that all connected clients converge on the last
// applied state. This is a deliberate property of the whole-state protocol,
// not a bug.
//
// Per-recipient failures during broadcast (full buffer, dead socket) remove
// only that recipient; delivery to the rest proceeds. Malformed frames are
// dropped and logged, and the connection stays open. State lives only in
// process memory and dies with it.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws by the server.
package ws
