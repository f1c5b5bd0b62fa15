// Package atc implements the ground-operations ATC controller (spec.md
// §4.9): a state machine over taxi clearance, hold-short, and takeoff
// clearance, driven by operator requests, the facility graph/router, and
// the flight-phase machine's reported transitions. Its waypoint cursor is
// grounded on Valkyrie's Navigator.processNavigation waypoint-advance
// pattern (internal/navigation/navigator.go in the source tree).
package atc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/facility"
	"github.com/windward/autoflight/internal/geo"
	"github.com/windward/autoflight/internal/metrics"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/router"
)

// ATCPhase is one state of the ATC ground-ops machine.
type ATCPhase int

const (
	Inactive ATCPhase = iota
	Parked
	TaxiClearancePending
	Taxiing
	HoldShort
	TakeoffClearancePending
	ClearedTakeoff
	Airborne
	LandingRollout
)

func (p ATCPhase) String() string {
	switch p {
	case Inactive:
		return "INACTIVE"
	case Parked:
		return "PARKED"
	case TaxiClearancePending:
		return "TAXI_CLEARANCE_PENDING"
	case Taxiing:
		return "TAXIING"
	case HoldShort:
		return "HOLD_SHORT"
	case TakeoffClearancePending:
		return "TAKEOFF_CLEARANCE_PENDING"
	case ClearedTakeoff:
		return "CLEARED_TAKEOFF"
	case Airborne:
		return "AIRBORNE"
	case LandingRollout:
		return "LANDING_ROLLOUT"
	default:
		return "UNKNOWN"
	}
}

// waypointArrivalFt is how close (feet) the aircraft must come to a route
// node to count as having reached it, mirrored from the Navigator's
// WaypointTolerance field.
const waypointArrivalFt = 150.0

// Controller owns the ATC state machine, the active taxi route, and the
// waypoint cursor through it.
type Controller struct {
	mu sync.Mutex

	phase ATCPhase

	facilities *facility.Store
	logger     *logrus.Logger

	icao   string
	route  *router.Route
	cursor int

	runwayHeadingDeg float64
	hasRunwayHeading bool

	detectedICAO    string
	detectedRunways []facility.RunwayEntry

	instruction string
	lastError   string

	// lastFlightPhase is the flight phase passed to the previous
	// ObservePhase call.
	lastFlightPhase phase.Phase
}

// setPhaseLocked transitions the ATC phase and records the change, and
// must be called with c.mu held.
func (c *Controller) setPhaseLocked(next ATCPhase) {
	if next == c.phase {
		return
	}
	metrics.RecordATCPhaseTransition(c.phase.String(), next.String())
	c.phase = next
}

// NewController creates an ATC controller reading facility graphs from
// facilities.
func NewController(facilities *facility.Store, logger *logrus.Logger) *Controller {
	return &Controller{
		phase:      Inactive,
		facilities: facilities,
		logger:     logger,
	}
}

// Current returns the current ATC phase.
func (c *Controller) Current() ATCPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Instruction returns the most recent instruction string issued to the
// operator (a taxi instruction or an error message).
func (c *Controller) Instruction() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instruction
}

// Activate moves Inactive -> Parked.
func (c *Controller) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPhaseLocked(Parked)
}

// Deactivate resets to Inactive from any state.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPhaseLocked(Inactive)
	c.route = nil
	c.cursor = 0
	c.instruction = ""
	c.hasRunwayHeading = false
}

// SetDetectedAirport records the airport detector's (C10) most recent
// find and activates the controller if it is currently Inactive
// (spec.md §4.10).
func (c *Controller) SetDetectedAirport(icao string, runways []facility.RunwayEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detectedICAO = icao
	c.detectedRunways = runways
	if c.phase == Inactive {
		c.setPhaseLocked(Parked)
	}
}

// DetectedRunways returns the runway list recorded by the last
// SetDetectedAirport call.
func (c *Controller) DetectedRunways() []facility.RunwayEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detectedRunways
}

// RequestTaxiClearance attempts to resolve a facility graph, the
// aircraft's nearest node, the runway-hold node, and an A* route, then
// transitions to Taxiing on success or back to Parked with an error
// instruction on any failure (spec.md §4.9).
func (c *Controller) RequestTaxiClearance(ctx context.Context, icao, runwayIdent string, lat, lon float64) {
	c.mu.Lock()
	if c.phase != Parked {
		c.mu.Unlock()
		return
	}
	c.setPhaseLocked(TaxiClearancePending)
	c.mu.Unlock()

	correlationID := uuid.New().String()
	logger := c.logger.WithFields(logrus.Fields{"correlationId": correlationID, "icao": icao, "runway": runwayIdent})
	logger.Info("taxi clearance requested")

	graph := c.facilities.RequestFacilityGraph(ctx, icao)
	if graph == nil {
		c.fail(fmt.Sprintf("unable to resolve facility data for %s", icao))
		return
	}

	startIdx, _ := router.FindNearestNode(graph, lat, lon)
	goalIdx := router.FindRunwayNode(graph, runwayIdent)
	if goalIdx < 0 {
		c.fail(fmt.Sprintf("runway %s not found at %s", runwayIdent, icao))
		return
	}

	planStart := time.Now()
	route, err := router.AStarRoute(graph, startIdx, goalIdx)
	if err != nil {
		metrics.RecordRouteRequest("failure", time.Since(planStart))
		c.fail(err.Error())
		return
	}
	metrics.RecordRouteRequest("success", time.Since(planStart))

	heading, hasHeading := 0.0, false
	if entry, ok := graph.RunwayByIdent(strings.ToUpper(runwayIdent)); ok {
		heading, hasHeading = runwayHeading(entry), true
	}

	c.mu.Lock()
	c.icao = icao
	c.route = route
	c.cursor = 0
	c.instruction = route.Instruction
	c.runwayHeadingDeg = heading
	c.hasRunwayHeading = hasHeading
	c.setPhaseLocked(Taxiing)
	c.mu.Unlock()
	logger.Info("taxi clearance granted")
}

// ActiveWaypoint returns the next unreached waypoint on the active taxi
// route while Taxiing, consumed by the rule engine's "Taxi (under ATC
// control)" rule (spec.md §4.7).
func (c *Controller) ActiveWaypoint() (lat, lon float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Taxiing || c.route == nil || c.cursor >= len(c.route.Waypoints) {
		return 0, 0, false
	}
	wp := c.route.Waypoints[c.cursor]
	return wp[0], wp[1], true
}

// TargetRunwayHeading returns the heading of the runway the active taxi
// clearance targets, consumed by the rule engine's proportional steering
// term (spec.md §4.7 "Taxi (under ATC control)").
func (c *Controller) TargetRunwayHeading() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runwayHeadingDeg, c.hasRunwayHeading
}

func (c *Controller) fail(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPhaseLocked(Parked)
	c.lastError = reason
	c.instruction = "unable to taxi: " + reason
	c.logger.WithField("reason", reason).Warn("taxi clearance resolution failed")
}

// AdvanceWaypoint updates the waypoint cursor against the current
// position while Taxiing, transitioning to HoldShort once the cursor
// reaches the final (runway-hold) node.
func (c *Controller) AdvanceWaypoint(lat, lon float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Taxiing || c.route == nil || c.cursor >= len(c.route.Waypoints) {
		return
	}

	target := c.route.Waypoints[c.cursor]
	dist := geo.HaversineDistance(lat, lon, target[0], target[1])
	if dist.Ft > waypointArrivalFt {
		return
	}

	c.cursor++
	if c.cursor >= len(c.route.Waypoints) {
		c.setPhaseLocked(HoldShort)
		c.instruction = "holding short, ready for departure"
	}
}

// RequestTakeoffClearance moves HoldShort -> TakeoffClearancePending.
func (c *Controller) RequestTakeoffClearance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == HoldShort {
		c.setPhaseLocked(TakeoffClearancePending)
	}
}

// IssueTakeoffClearance moves TakeoffClearancePending -> ClearedTakeoff.
func (c *Controller) IssueTakeoffClearance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == TakeoffClearancePending {
		c.setPhaseLocked(ClearedTakeoff)
	}
}

// ObservePhase reacts to the flight-phase machine's current phase:
// Liftoff moves ClearedTakeoff -> Airborne; Landing moves Airborne ->
// LandingRollout; a rejected-takeoff revert to Roll while CLEARED_TAKEOFF
// sends ATC back to HoldShort (spec.md §9 open question (b): the
// rejected-takeoff path reverts the flight phase to ROLL while ATC
// remains grounded at HOLD_SHORT rather than following it to AIRBORNE).
func (c *Controller) ObservePhase(p phase.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.lastFlightPhase
	c.lastFlightPhase = p
	switch {
	case c.phase == ClearedTakeoff && p == phase.Liftoff:
		c.setPhaseLocked(Airborne)
	case c.phase == ClearedTakeoff && p == phase.Roll && prev == phase.Rotate:
		c.setPhaseLocked(HoldShort)
		c.instruction = "rejected takeoff, holding short"
	case c.phase == Airborne && p == phase.Landing:
		c.setPhaseLocked(LandingRollout)
	}
}

// PickRunway chooses the runway whose heading minimizes
// |angleError(aircraftHeading, runwayHeading)| (spec.md §4.9 "Runway
// picker", scenario S4).
func PickRunway(runways []facility.RunwayEntry, aircraftHeading float64) (facility.RunwayEntry, bool) {
	if len(runways) == 0 {
		return facility.RunwayEntry{}, false
	}
	best := runways[0]
	bestErr := absf(geo.AngleError(aircraftHeading, runwayHeading(best)))
	for _, r := range runways[1:] {
		e := absf(geo.AngleError(aircraftHeading, runwayHeading(r)))
		if e < bestErr {
			best = r
			bestErr = e
		}
	}
	return best, true
}

// runwayHeading returns r.HeadingDeg if set, else parses it from the
// ident: strip a leading "RW", take the first two digits, times 10.
func runwayHeading(r facility.RunwayEntry) float64 {
	if r.HeadingDeg != 0 {
		return r.HeadingDeg
	}
	ident := strings.TrimPrefix(strings.ToUpper(r.Ident), "RW")
	if len(ident) < 2 {
		return 0
	}
	n, err := strconv.Atoi(ident[:2])
	if err != nil {
		return 0
	}
	return float64(n) * 10
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
