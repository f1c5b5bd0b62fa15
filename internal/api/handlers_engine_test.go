package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/evaluator"
	"github.com/windward/autoflight/internal/facility"
	"github.com/windward/autoflight/internal/logbook"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/queue"
	"github.com/windward/autoflight/internal/rules"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
)

type fakeFacilitySource struct{}

func (fakeFacilitySource) FetchFacilityGraph(ctx context.Context, icao string) (*facility.Graph, error) {
	return nil, nil
}

func newTestEvaluator(t *testing.T) *evaluator.Evaluator {
	t.Helper()
	dir := t.TempDir()
	sim := simlink.NewMockSimulator(testLogger())
	sim.Connect(context.Background())
	d := dispatch.NewDispatcher(sim, testLogger())
	q := queue.New(d, testLogger())
	ts := tuning.NewStore(filepath.Join(dir, "tuning.json"), testLogger())
	fstore := facility.NewStore(dir, fakeFacilitySource{}, testLogger())
	actrl := atc.NewController(fstore, testLogger())
	lb := logbook.NewStore(filepath.Join(dir, "attempts.json"), testLogger())
	return evaluator.New(phase.NewMachine(), rules.NewEngine(), actrl, d, q, ts, lb, nil, filepath.Join(dir, "state.json"), testLogger())
}

func TestEngineStatusReportsEnabled(t *testing.T) {
	eval := newTestEvaluator(t)
	h := NewEngineHandler(eval)

	req := httptest.NewRequest(http.MethodGet, "/api/engine/status", nil)
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	var got map[string]bool
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["enabled"] != eval.Enabled() {
		t.Fatalf("expected status to reflect Enabled(), got %+v", got)
	}
}

func TestEngineEnableThenDisable(t *testing.T) {
	eval := newTestEvaluator(t)
	h := NewEngineHandler(eval)

	req := httptest.NewRequest(http.MethodPost, "/api/engine/enable", nil)
	rr := httptest.NewRecorder()
	h.Enable(rr, req)
	if !eval.Enabled() {
		t.Fatal("expected engine enabled")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/engine/disable", nil)
	rr = httptest.NewRecorder()
	h.Disable(rr, req)
	if eval.Enabled() {
		t.Fatal("expected engine disabled")
	}
}

func TestEngineSetCruiseAltitude(t *testing.T) {
	eval := newTestEvaluator(t)
	h := NewEngineHandler(eval)

	body, _ := json.Marshal(map[string]float64{"altitudeMsl": 9500})
	req := httptest.NewRequest(http.MethodPost, "/api/engine/cruise-altitude", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.SetCruiseAltitude(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestEngineSetCruiseAltitudeRejectsMalformedBody(t *testing.T) {
	eval := newTestEvaluator(t)
	h := NewEngineHandler(eval)

	req := httptest.NewRequest(http.MethodPost, "/api/engine/cruise-altitude", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.SetCruiseAltitude(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
