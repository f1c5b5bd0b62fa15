package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/windward/autoflight/internal/atc"
	"github.com/windward/autoflight/internal/facility"
)

type fakeAtcSource struct {
	graph *facility.Graph
}

func (f *fakeAtcSource) FetchFacilityGraph(ctx context.Context, icao string) (*facility.Graph, error) {
	return f.graph, nil
}

func toyAtcGraph() *facility.Graph {
	return &facility.Graph{
		ICAO: "KSEA",
		Nodes: []facility.Node{
			{Index: 0, Lat: 47.00, Lon: -122.00, Type: facility.NodeParking},
			{Index: 1, Lat: 47.01, Lon: -122.00, Type: facility.NodeTaxiway},
			{Index: 2, Lat: 47.02, Lon: -122.00, Type: facility.NodeRunwayHold, Name: "16R"},
		},
		Edges: []facility.Edge{
			{From: 0, To: 1, Taxiway: "Alpha", DistanceFt: 300},
			{From: 1, To: 2, Taxiway: "Alpha", DistanceFt: 300},
		},
		Runways: []facility.RunwayEntry{
			{Ident: "16R", HeadingDeg: 160, HoldNodeIdx: 2},
		},
	}
}

func newTestATCHandler(t *testing.T) (*ATCHandler, *atc.Controller) {
	t.Helper()
	store := facility.NewStore(t.TempDir(), &fakeAtcSource{graph: toyAtcGraph()}, testLogger())
	ctrl := atc.NewController(store, testLogger())
	return NewATCHandler(ctrl), ctrl
}

func TestATCStatusReportsCurrentPhase(t *testing.T) {
	h, ctrl := newTestATCHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/atc/status", nil)
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	var got map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["phase"] != ctrl.Current().String() {
		t.Fatalf("expected phase %q, got %v", ctrl.Current().String(), got["phase"])
	}
}

func TestATCRequestTaxiAdvancesToTaxiing(t *testing.T) {
	h, ctrl := newTestATCHandler(t)
	ctrl.Activate()

	body, _ := json.Marshal(map[string]interface{}{
		"icao":        "KSEA",
		"runwayIdent": "16R",
		"lat":         47.00,
		"lon":         -122.00,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/atc/taxi", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.RequestTaxi(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctrl.Current() != atc.Taxiing {
		t.Fatalf("expected TAXIING, got %v", ctrl.Current())
	}
}

func TestATCRequestTaxiRejectsMalformedBody(t *testing.T) {
	h, _ := newTestATCHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/atc/taxi", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.RequestTaxi(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestATCDeactivateReturnsToInactive(t *testing.T) {
	h, ctrl := newTestATCHandler(t)
	ctrl.Activate()

	req := httptest.NewRequest(http.MethodPost, "/api/atc/deactivate", nil)
	rr := httptest.NewRecorder()
	h.Deactivate(rr, req)

	if ctrl.Current() != atc.Inactive {
		t.Fatalf("expected INACTIVE, got %v", ctrl.Current())
	}
}
