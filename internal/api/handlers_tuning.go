package api

import (
	"encoding/json"
	"net/http"

	"github.com/windward/autoflight/internal/tuning"
)

// TuningHandler exposes the merged tuning-parameter record (spec.md §3,
// §4.13).
type TuningHandler struct {
	store *tuning.Store
}

func NewTuningHandler(store *tuning.Store) *TuningHandler {
	return &TuningHandler{store: store}
}

// Get handles GET /api/tuning.
func (h *TuningHandler) Get(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.store.GetTuning())
}

// Set handles POST /api/tuning: a partial field-name/value overlay,
// merged by internal/tuning's explicit field table.
func (h *TuningHandler) Set(w http.ResponseWriter, r *http.Request) {
	var partial tuning.PartialUpdate
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.store.SetTuning(partial)
	jsonResponse(w, http.StatusOK, h.store.GetTuning())
}
