package api

import "github.com/canvashub/canvashub/pkg/canvas"

// CanvasResponse is the payload for GET /v1/canvas: the current canvas
// state in the same shape the init/update frames carry.
type CanvasResponse struct {
	Drawings    []canvas.Item `json:"drawings"`
	Background  string        `json:"background"`
	CurrentMode string        `json:"current_mode"`
}

// StatsResponse is the payload for GET /v1/stats.
type StatsResponse struct {
	Sessions    int    `json:"sessions"`
	Drawings    int    `json:"drawings"`
	Background  string `json:"background"`
	CurrentMode string `json:"current_mode"`
}

// HealthResponse is the payload for GET /v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
