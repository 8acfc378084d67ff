// Package api implements the read-only HTTP API for canvashub-server,
// mounted under /api by the server:
//
//	GET /api/v1/canvas  - current canvas state (drawings, background, mode)
//	GET /api/v1/stats   - session count plus canvas counters
//	GET /api/v1/health  - liveness and session count
//
// All endpoints respond with Content-Type: application/json and 405 for
// non-GET methods. The canvas is only ever mutated through the WebSocket
// protocol; this surface exists for dashboards and probes.
package api
