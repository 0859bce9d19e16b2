package handler

import (
	"net/http"

	"github.com/filipexyz/keygate/internal/engine"
)

// HealthHandler reports liveness, the current logical slot, and whether the
// event stream connection is up.
type HealthHandler struct {
	engine          *engine.Engine
	eventsConnected func() bool
}

func NewHealthHandler(eng *engine.Engine, eventsConnected func() bool) *HealthHandler {
	return &HealthHandler{engine: eng, eventsConnected: eventsConnected}
}

type healthResponse struct {
	Status string `json:"status"`
	Slot   uint64 `json:"slot"`
	Events string `json:"events"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	events := "disabled"
	if h.eventsConnected != nil {
		if h.eventsConnected() {
			events = "connected"
		} else {
			events = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Slot:   h.engine.Slot(),
		Events: events,
	})
}
