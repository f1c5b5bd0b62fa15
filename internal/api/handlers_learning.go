package api

import (
	"net/http"
	"time"

	"github.com/windward/autoflight/internal/learning"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/tuning"
)

// LearningHandler exposes the advisor learning log (spec.md §4.12) and
// the combined reset operation (spec.md §6 "reset learnings (archives
// then empties all three stores)").
type LearningHandler struct {
	learnStore  *learning.Store
	logbookSt   *logbook.Store
	tuningStore *tuning.Store
}

func NewLearningHandler(learnStore *learning.Store, logbookSt *logbook.Store, tuningStore *tuning.Store) *LearningHandler {
	return &LearningHandler{learnStore: learnStore, logbookSt: logbookSt, tuningStore: tuningStore}
}

// List handles GET /api/learning.
func (h *LearningHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.learnStore.All())
}

// Reset handles POST /api/learning/reset: the attempt, learning, and
// tuning stores are each archived under the same timestamp before being
// cleared/defaulted, so the record isn't silently lost.
func (h *LearningHandler) Reset(w http.ResponseWriter, r *http.Request) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	h.learnStore.Reset(stamp)
	h.logbookSt.Reset(stamp)
	h.tuningStore.Reset(stamp)
	jsonResponse(w, http.StatusOK, map[string]string{"archivedAs": stamp})
}
