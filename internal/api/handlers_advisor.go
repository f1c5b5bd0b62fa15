package api

import (
	"encoding/json"
	"net/http"

	"github.com/windward/autoflight/internal/advisor"
	"github.com/windward/autoflight/internal/learning"
	"github.com/windward/autoflight/internal/tuning"
)

// AdvisorHandler queries the LLM advisor and applies any TUNING_JSON,
// LEARNING, or FORGET directives found in its reply (spec.md §4.12,
// §4.13).
type AdvisorHandler struct {
	client      *advisor.Client
	tuningStore *tuning.Store
	learnStore  *learning.Store
}

func NewAdvisorHandler(client *advisor.Client, tuningStore *tuning.Store, learnStore *learning.Store) *AdvisorHandler {
	return &AdvisorHandler{client: client, tuningStore: tuningStore, learnStore: learnStore}
}

// Query handles POST /api/advisor/query.
func (h *AdvisorHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt  string `json:"prompt"`
		Attempt int    `json:"attempt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.client.Query(r.Context(), req.Prompt)
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.tuningStore.ApplyAdvisorResponse(reply)
	h.learnStore.ApplyAdvisorResponse(reply, req.Attempt)

	jsonResponse(w, http.StatusOK, map[string]string{"reply": reply})
}
