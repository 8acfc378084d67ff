package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canvashub/canvashub/pkg/canvas"
)

// SessionCounter reports how many clients are currently connected. The ws
// hub satisfies it.
type SessionCounter interface {
	Count() int
}

// Handler serves the read-only REST endpoints. It reads the canvas store
// directly; nothing here mutates state.
type Handler struct {
	store    *canvas.Store
	sessions SessionCounter
	router   chi.Router
}

// New creates a Handler wired to the given store and session counter and
// registers all routes. Mount it under /api.
func New(st *canvas.Store, sessions SessionCounter) http.Handler {
	h := &Handler{store: st, sessions: sessions, router: chi.NewRouter()}

	h.router.Get("/v1/canvas", h.canvas)
	h.router.Get("/v1/stats", h.stats)
	h.router.Get("/v1/health", h.health)
	h.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// canvas returns GET /v1/canvas - the current shared state.
func (h *Handler) canvas(w http.ResponseWriter, r *http.Request) {
	st := h.store.Snapshot()
	jsonResp(w, http.StatusOK, CanvasResponse{
		Drawings:    st.Drawings,
		Background:  st.Background,
		CurrentMode: st.CurrentMode,
	})
}

// stats returns GET /v1/stats - session and canvas counters.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st := h.store.Snapshot()
	jsonResp(w, http.StatusOK, StatsResponse{
		Sessions:    h.sessions.Count(),
		Drawings:    len(st.Drawings),
		Background:  st.Background,
		CurrentMode: st.CurrentMode,
	})
}

// health returns GET /v1/health - liveness plus the session count.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: h.sessions.Count(),
	})
}

// --- response helpers -------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response", "err", err)
	}
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
