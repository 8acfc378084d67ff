// Package client implements the network layer a whiteboard client embeds to
// talk to canvashub-server.
//
// Dial connects, announces an optional display name, and starts a listen
// loop that decodes every server frame and hands it to the supplied Handler;
// the first one is always the init snapshot. Local edits go up through
// SendDraw, SendClear, and SendModeChange; each carries the complete new
// state, never a diff.
//
// The client never retries on its own: a dropped connection just flips
// Connected to false and further sends return ErrNotConnected. Reconnect
// policy belongs to the application.
package client
