package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/windward/autoflight/internal/logbook"
)

func TestLogbookRecentDefaultsToTen(t *testing.T) {
	dir := t.TempDir()
	store := logbook.NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	for i := 0; i < 15; i++ {
		store.RecordAttempt(logbook.Attempt{Outcome: logbook.OutcomeAirborne})
	}
	h := NewLogbookHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/logbook/recent", nil)
	rr := httptest.NewRecorder()
	h.Recent(rr, req)

	var got []logbook.Attempt
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("expected default of 10 attempts, got %d", len(got))
	}
}

func TestLogbookRecentHonorsNParam(t *testing.T) {
	dir := t.TempDir()
	store := logbook.NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	store.RecordAttempt(logbook.Attempt{Outcome: logbook.OutcomeAirborne})
	store.RecordAttempt(logbook.Attempt{Outcome: logbook.OutcomeRejected})
	h := NewLogbookHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/logbook/recent?n=1", nil)
	rr := httptest.NewRecorder()
	h.Recent(rr, req)

	var got []logbook.Attempt
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(got))
	}
}
