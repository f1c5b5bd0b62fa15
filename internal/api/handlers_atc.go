package api

import (
	"encoding/json"
	"net/http"

	"github.com/windward/autoflight/internal/atc"
)

// ATCHandler exposes the ground-operations ATC controller (spec.md §4.9).
type ATCHandler struct {
	ctrl *atc.Controller
}

func NewATCHandler(ctrl *atc.Controller) *ATCHandler {
	return &ATCHandler{ctrl: ctrl}
}

// Status handles GET /api/atc/status.
func (h *ATCHandler) Status(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"phase":           h.ctrl.Current().String(),
		"instruction":     h.ctrl.Instruction(),
		"detectedRunways": h.ctrl.DetectedRunways(),
	})
}

// RequestTaxi handles POST /api/atc/taxi.
func (h *ATCHandler) RequestTaxi(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ICAO        string  `json:"icao"`
		RunwayIdent string  `json:"runwayIdent"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.ctrl.RequestTaxiClearance(r.Context(), req.ICAO, req.RunwayIdent, req.Lat, req.Lon)
	jsonResponse(w, http.StatusOK, map[string]string{
		"phase":       h.ctrl.Current().String(),
		"instruction": h.ctrl.Instruction(),
	})
}

// RequestTakeoffClearance handles POST /api/atc/takeoff-clearance/request.
func (h *ATCHandler) RequestTakeoffClearance(w http.ResponseWriter, r *http.Request) {
	h.ctrl.RequestTakeoffClearance()
	jsonResponse(w, http.StatusOK, map[string]string{"phase": h.ctrl.Current().String()})
}

// IssueTakeoffClearance handles POST /api/atc/takeoff-clearance/issue.
func (h *ATCHandler) IssueTakeoffClearance(w http.ResponseWriter, r *http.Request) {
	h.ctrl.IssueTakeoffClearance()
	jsonResponse(w, http.StatusOK, map[string]string{"phase": h.ctrl.Current().String()})
}

// Deactivate handles POST /api/atc/deactivate.
func (h *ATCHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Deactivate()
	jsonResponse(w, http.StatusOK, map[string]string{"phase": h.ctrl.Current().String()})
}
