package api

import (
	"encoding/json"
	"net/http"

	"github.com/windward/autoflight/internal/evaluator"
)

// EngineHandler exposes the rule engine's enable/disable/cruise-altitude
// controls (spec.md §4.14, §6).
type EngineHandler struct {
	eval *evaluator.Evaluator
}

func NewEngineHandler(eval *evaluator.Evaluator) *EngineHandler {
	return &EngineHandler{eval: eval}
}

// Status handles GET /api/engine/status.
func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]bool{"enabled": h.eval.Enabled()})
}

// Enable handles POST /api/engine/enable.
func (h *EngineHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.eval.Enable()
	jsonResponse(w, http.StatusOK, map[string]bool{"enabled": true})
}

// Disable handles POST /api/engine/disable.
func (h *EngineHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.eval.Disable(r.Context())
	jsonResponse(w, http.StatusOK, map[string]bool{"enabled": false})
}

// RequestTakeoff handles POST /api/engine/request-takeoff: forces
// PARKED -> BEFORE_ROLL regardless of throttle, for an operator who wants
// to begin the takeoff roll without first advancing the throttle.
func (h *EngineHandler) RequestTakeoff(w http.ResponseWriter, r *http.Request) {
	h.eval.RequestTakeoff()
	jsonResponse(w, http.StatusOK, map[string]bool{"requested": true})
}

// SetCruiseAltitude handles POST /api/engine/cruise-altitude.
func (h *EngineHandler) SetCruiseAltitude(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AltitudeMSL float64 `json:"altitudeMsl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.eval.SetCruiseAltitude(req.AltitudeMSL)
	jsonResponse(w, http.StatusOK, map[string]float64{"altitudeMsl": req.AltitudeMSL})
}
