package rules

import (
	"testing"
	"time"

	"github.com/windward/autoflight/internal/dispatch"
	"github.com/windward/autoflight/internal/phase"
	"github.com/windward/autoflight/internal/simlink"
	"github.com/windward/autoflight/internal/tuning"
)

// TestSafetyClampElevator reproduces spec scenario S5: an elevator
// command of -120 is clamped to -90 and flags safetyActive with a reason
// mentioning elevator saturation.
func TestSafetyClampElevator(t *testing.T) {
	raw := []dispatch.Command{dispatch.Valued("AXIS_ELEVATOR_SET", -120)}
	out, active, reason := applySafetyClamp(raw)
	if len(out) != 1 || out[0].Value != -90 {
		t.Fatalf("expected clamped value -90, got %+v", out)
	}
	if !active {
		t.Fatal("expected safetyActive true")
	}
	if reason == "" {
		t.Fatal("expected non-empty safetyReason")
	}
	if !out[0].PreValidated {
		t.Fatal("expected clamped command marked pre-validated")
	}
}

func TestSafetyClampPassesThroughInBounds(t *testing.T) {
	raw := []dispatch.Command{dispatch.Valued("AXIS_ELEVATOR_SET", -12)}
	out, active, _ := applySafetyClamp(raw)
	if out[0].Value != -12 {
		t.Fatalf("expected untouched value, got %v", out[0].Value)
	}
	if active {
		t.Fatal("expected safetyActive false for in-bounds command")
	}
}

// TestEvaluateRotatePhaseRampsElevator reproduces spec.md §4.7 ROTATE:
// elevator(t) = max(rotateElevator, -t*rotateRampRate), floored at
// rotateElevator once enough time has elapsed since entering the phase.
func TestEvaluateRotatePhaseRampsElevator(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	f := simlink.Frame{OnGroundReported: true}

	early := e.Evaluate(phase.Rotate, f, tp, time.Now(), Context{PhaseElapsed: 200 * time.Millisecond})
	elevator, ok := commandValue(early.Commands, "AXIS_ELEVATOR_SET")
	if !ok {
		t.Fatal("expected an elevator command")
	}
	if elevator != -tp.RotateRampRate*0.2 {
		t.Fatalf("expected ramped elevator %v, got %v", -tp.RotateRampRate*0.2, elevator)
	}

	late := e.Evaluate(phase.Rotate, f, tp, time.Now().Add(time.Second), Context{PhaseElapsed: 5 * time.Second})
	elevator, ok = commandValue(late.Commands, "AXIS_ELEVATOR_SET")
	if !ok {
		t.Fatal("expected an elevator command")
	}
	if elevator != tp.RotateElevator {
		t.Fatalf("expected elevator floored at rotateElevator %v, got %v", tp.RotateElevator, elevator)
	}

	if _, ok := commandValue(late.Commands, "THROTTLE_SET"); !ok {
		t.Fatal("expected a throttle command")
	}
}

func commandValue(cmds []dispatch.Command, name string) (float64, bool) {
	for _, c := range cmds {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

func TestEvaluateThrottlesRepeatedIdenticalEmissions(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	f := simlink.Frame{OnGroundReported: true}
	now := time.Now()
	rc := Context{PhaseElapsed: 5 * time.Second}

	d1 := e.Evaluate(phase.Rotate, f, tp, now, rc)
	if len(d1.Commands) == 0 {
		t.Fatal("expected commands on first tick")
	}

	d2 := e.Evaluate(phase.Rotate, f, tp, now.Add(50*time.Millisecond), rc)
	if len(d2.Commands) != 0 {
		t.Fatalf("expected repeated identical emissions throttled within 200ms, got %+v", d2.Commands)
	}

	d3 := e.Evaluate(phase.Rotate, f, tp, now.Add(250*time.Millisecond), rc)
	if len(d3.Commands) == 0 {
		t.Fatal("expected re-emission once the throttle interval has elapsed")
	}
}

func TestEvaluateParkedEmitsNothingWithoutTaxiRoute(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	d := e.Evaluate(phase.Parked, simlink.Frame{}, tp, time.Now(), Context{})
	if len(d.Commands) != 0 {
		t.Fatalf("expected no commands while parked with no taxi clearance, got %+v", d.Commands)
	}
}

// TestEvaluateParkedTaxisUnderATCControl reproduces spec.md §4.7 "Taxi
// (under ATC control)": once the ATC controller has cleared a route, the
// rule engine steers toward the next waypoint even while PARKED.
func TestEvaluateParkedTaxisUnderATCControl(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	f := simlink.Frame{Latitude: 47.0, Longitude: -122.0, HeadingTrue: 0}
	rc := Context{TaxiWaypointLat: 47.01, TaxiWaypointLon: -122.0, HasTaxiWaypoint: true}

	d := e.Evaluate(phase.Parked, f, tp, time.Now(), rc)
	if _, ok := commandValue(d.Commands, "THROTTLE_SET"); !ok {
		t.Fatalf("expected a taxi throttle command, got %+v", d.Commands)
	}
	if _, ok := commandValue(d.Commands, "AXIS_RUDDER_SET"); !ok {
		t.Fatalf("expected a taxi steering command, got %+v", d.Commands)
	}
}

// TestEvaluateBeforeRollEmitsAxisCentering reproduces spec.md §4.6's
// "axis centering has been emitted once" precondition for BEFORE_ROLL ->
// ROLL.
func TestEvaluateBeforeRollEmitsAxisCentering(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	d := e.Evaluate(phase.BeforeRoll, simlink.Frame{}, tp, time.Now(), Context{})

	elevator, ok := commandValue(d.Commands, "AXIS_ELEVATOR_SET")
	if !ok || elevator == 0 {
		t.Fatalf("expected a small nonzero elevator centering command, got %+v", d.Commands)
	}
	aileron, ok := commandValue(d.Commands, "AXIS_AILERONS_SET")
	if !ok || aileron == 0 {
		t.Fatalf("expected a small nonzero aileron centering command, got %+v", d.Commands)
	}
}

func TestEvaluateDepartureHandsOffToAutopilot(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	rc := Context{CruiseAltitudeMSL: 10000}
	d := e.Evaluate(phase.Departure, simlink.Frame{HeadingTrue: 90}, tp, time.Now(), rc)

	names := map[string]bool{}
	for _, c := range d.Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"AP_MASTER", "AP_HDG_HOLD", "AP_VS_HOLD", "AP_AIRSPEED_HOLD", "HEADING_BUG_SET", "AP_ALT_VAR_SET"} {
		if !names[want] {
			t.Fatalf("expected autopilot handoff command %s, got %+v", want, d.Commands)
		}
	}
	if alt, _ := commandValue(d.Commands, "AP_ALT_VAR_SET"); alt != 10000 {
		t.Fatalf("expected cruise altitude 10000, got %v", alt)
	}
	if hdg, _ := commandValue(d.Commands, "HEADING_BUG_SET"); hdg != 90 {
		t.Fatalf("expected heading bug set to current heading 90, got %v", hdg)
	}
}

func TestEvaluateDepartureHandoffIsSingleShot(t *testing.T) {
	e := NewEngine()
	tp := tuning.Defaults()
	rc := Context{CruiseAltitudeMSL: 10000, PhaseElapsed: 2 * time.Second}
	d := e.Evaluate(phase.Departure, simlink.Frame{HeadingTrue: 90}, tp, time.Now(), rc)

	if len(d.Commands) != 0 {
		t.Fatalf("expected no commands once past the handoff window, got %+v", d.Commands)
	}
}
