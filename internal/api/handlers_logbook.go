package api

import (
	"net/http"
	"strconv"

	"github.com/windward/autoflight/internal/logbook"
)

// LogbookHandler exposes the attempt log (spec.md §4.11).
type LogbookHandler struct {
	store *logbook.Store
}

func NewLogbookHandler(store *logbook.Store) *LogbookHandler {
	return &LogbookHandler{store: store}
}

// Recent handles GET /api/logbook/recent?n=.
func (h *LogbookHandler) Recent(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	jsonResponse(w, http.StatusOK, h.store.GetRecent(n))
}
