// Package navdb is the HTTP/JSON client for the navigation-database
// collaborator (spec.md §6): a read-only local service serving airport,
// nearby-airport, and procedure data. Grounded on Valkyrie's
// integration.SilenusClient get/decode pattern
// (internal/integration/asgard.go in the source tree).
package navdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/windward/autoflight/internal/facility"
)

// Client queries the navigation database over HTTP/JSON.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a navdb client with the given base URL and timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// airportResponse mirrors GET /airport/{icao}.
type airportResponse struct {
	ICAO      string          `json:"icao"`
	Name      string          `json:"name"`
	Elevation float64         `json:"elevation"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Runways   []runwayPayload `json:"runways"`
}

type runwayPayload struct {
	Ident   string  `json:"ident"`
	Heading float64 `json:"heading"`
	Length  float64 `json:"length"`
}

// nearbyResponse mirrors GET /nearby/airports.
type nearbyResponse struct {
	Items []nearbyAirport `json:"items"`
}

type nearbyAirport struct {
	ICAO     string  `json:"icao"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Distance float64 `json:"distance"`
}

// FetchFacilityGraph satisfies facility.Source: it builds a minimal
// FacilityGraph (parking apron + runway-hold nodes, no taxiway topology)
// from the airport record, since the navigation database does not expose
// ground taxiway geometry directly (§6 lists only airport/runway/
// procedure endpoints).
func (c *Client) FetchFacilityGraph(ctx context.Context, icao string) (*facility.Graph, error) {
	var resp airportResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/airport/%s", icao), &resp); err != nil {
		return nil, err
	}

	g := &facility.Graph{ICAO: icao}
	g.Nodes = append(g.Nodes, facility.Node{Index: 0, Lat: resp.Lat, Lon: resp.Lon, Name: "apron", Type: facility.NodeParking})
	g.Parking = append(g.Parking, facility.ParkingEntry{Name: "apron", NodeIdx: 0})

	for i, r := range resp.Runways {
		idx := i + 1
		g.Nodes = append(g.Nodes, facility.Node{Index: idx, Lat: resp.Lat, Lon: resp.Lon, Name: r.Ident, Type: facility.NodeRunwayHold})
		g.Edges = append(g.Edges, facility.Edge{From: 0, To: idx, DistanceFt: 500})
		g.Runways = append(g.Runways, facility.RunwayEntry{Ident: r.Ident, HeadingDeg: r.Heading, HoldNodeIdx: idx, NodeIndex: idx})
	}

	return g, nil
}

// FindNearestAirport satisfies airport.NearestAirportFinder.
func (c *Client) FindNearestAirport(ctx context.Context, lat, lon, radiusNM float64) (string, bool, error) {
	path := fmt.Sprintf("/nearby/airports?lat=%f&lon=%f&range=%f&limit=1", lat, lon, radiusNM)
	var resp nearbyResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return "", false, err
	}
	if len(resp.Items) == 0 {
		return "", false, nil
	}
	return resp.Items[0].ICAO, true, nil
}

// RunwaysFor satisfies airport.NearestAirportFinder.
func (c *Client) RunwaysFor(ctx context.Context, icao string) ([]facility.RunwayEntry, error) {
	var resp airportResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/airport/%s", icao), &resp); err != nil {
		return nil, err
	}
	out := make([]facility.RunwayEntry, 0, len(resp.Runways))
	for _, r := range resp.Runways {
		out = append(out, facility.RunwayEntry{Ident: r.Ident, HeadingDeg: r.Heading})
	}
	return out, nil
}

// ProcedureLeg is one waypoint of an arrival/departure procedure (GET
// /procedure/{id}/legs).
type ProcedureLeg struct {
	Ident string  `json:"ident"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
}

// Procedures fetches the named-procedure list for icao (GET
// /procedures/{icao}).
func (c *Client) Procedures(ctx context.Context, icao string) ([]string, error) {
	var resp struct {
		Procedures []string `json:"procedures"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/procedures/%s", icao), &resp); err != nil {
		return nil, err
	}
	return resp.Procedures, nil
}

// ProcedureLegs fetches the waypoint sequence for a procedure id (GET
// /procedure/{id}/legs).
func (c *Client) ProcedureLegs(ctx context.Context, id string) ([]ProcedureLeg, error) {
	var legs []ProcedureLeg
	if err := c.getJSON(ctx, fmt.Sprintf("/procedure/%s/legs", id), &legs); err != nil {
		return nil, err
	}
	return legs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("navdb: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
